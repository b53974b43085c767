// internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"clubledger/internal/domain"
)

// ReadTx is a snapshot view of the record sets. Every lookup observes the
// same committed state; none of it changes while the transaction is open.
// Lookups return nil (not an error) when a record is absent.
type ReadTx interface {
	Member(number int64) (*domain.Member, error)
	MemberByLastName(lastName string) (*domain.Member, error)
	Members() ([]domain.Member, error)

	// OpenMembership returns the member's membership with no end set.
	OpenMembership(number int64) (*domain.Membership, error)
	// Memberships returns the member's memberships ordered by begin.
	Memberships(number int64) ([]domain.Membership, error)

	Deposits() ([]domain.Deposit, error)
}

// Tx extends ReadTx with mutations. All writes commit atomically when the
// Update closure returns nil and are discarded otherwise.
type Tx interface {
	ReadTx

	// NextMemberNumber allocates and returns the next member number,
	// advancing the counter. Numbers are never reused.
	NextMemberNumber() (int64, error)

	InsertMember(m domain.Member) error
	// DeleteMember removes the member and cascades over its memberships
	// and deposits.
	DeleteMember(number int64) error

	InsertMembership(ms domain.Membership) error
	// CloseMembership sets the end timestamp of the given membership.
	CloseMembership(id uuid.UUID, end time.Time) error

	InsertDeposit(d domain.Deposit) error
}

// Store is the durable storage collaborator of the ledger. View runs fn
// against a consistent snapshot; Update runs fn as one atomic
// read/modify/write. Implementations: MemoryStore, PostgresStore.
type Store interface {
	View(ctx context.Context, fn func(ReadTx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}
