// internal/domain/domain.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxNameLength bounds first and last names of a member.
const MaxNameLength = 100

// Member is the identity record of a club member. Member numbers are
// system-assigned, strictly increasing and never reused, even after the
// member is deleted.
type Member struct {
	Number    int64     `json:"member_number"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Birthday  time.Time `json:"birthday"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership is one join/cancel cycle of a member. End is nil while the
// membership is open and is set exactly once on cancellation.
type Membership struct {
	ID           uuid.UUID  `json:"id"`
	MemberNumber int64      `json:"member_number"`
	Begin        time.Time  `json:"begin"`
	End          *time.Time `json:"end,omitempty"`
}

// Open reports whether the membership has not been cancelled yet.
func (m *Membership) Open() bool {
	return m.End == nil
}

// Deposit is a single cash deposit attached to the membership that was
// open when it was recorded. DepositedAt is tracked for year aggregation
// only and is not part of the public record.
type Deposit struct {
	ID           uuid.UUID       `json:"id"`
	MembershipID uuid.UUID       `json:"membership_id"`
	MemberNumber int64           `json:"member_number"`
	Amount       decimal.Decimal `json:"amount"`
	DepositedAt  time.Time       `json:"-"`
}

// DepositStatistic is a derived per-member per-year deposit total. It is
// recomputed on every query and never stored.
type DepositStatistic struct {
	MemberNumber int64           `json:"member_number"`
	Year         int             `json:"year"`
	Total        decimal.Decimal `json:"total"`
}
