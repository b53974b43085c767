// internal/club/service.go
package club

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"clubledger/internal/domain"
)

// Service is the invariant-enforcing data-access layer for the club's
// membership and dues bookkeeping. Every operation except Initialize
// fails with domain.ErrInvalidState until Initialize has completed.
type Service interface {
	Initialize(ctx context.Context) error
	AddMember(ctx context.Context, firstName, lastName string, birthday time.Time) (int64, error)
	DeleteMember(ctx context.Context, number int64) error
	JoinMember(ctx context.Context, number int64) (*domain.Membership, error)
	CancelMembership(ctx context.Context, number int64) (*domain.Membership, error)
	Deposit(ctx context.Context, number int64, amount decimal.Decimal) error
	DepositStatistics(ctx context.Context) ([]domain.DepositStatistic, error)

	// Close releases the storage collaborator. The service is unusable
	// afterwards.
	Close() error
}
