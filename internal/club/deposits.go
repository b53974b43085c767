// internal/club/deposits.go
package club

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"clubledger/internal/domain"
	"clubledger/internal/store"
)

// Deposit records a cash deposit against the member's currently open
// membership. The active-membership check and the insert run under the
// member's lock in one atomic update, so a concurrent cancel can never
// leave a deposit attached to a membership that was already closed.
func (s *service) Deposit(ctx context.Context, number int64, amount decimal.Decimal) (err error) {
	ctx, span := s.tracer.Start(ctx, "club.deposit",
		trace.WithAttributes(attribute.Int64("member.number", number)))
	defer span.End()
	defer func() { s.count(ctx, "deposit", err) }()

	if err = s.guard.check(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return &domain.FieldError{Field: "amount", Reason: "must be positive"}
	}

	l := s.locks.get(number)
	l.Lock()
	defer l.Unlock()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		m, err := tx.Member(number)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.ErrUnknownMember(number)
		}
		open, err := tx.OpenMembership(number)
		if err != nil {
			return err
		}
		if open == nil {
			return domain.ErrNoMember
		}
		return tx.InsertDeposit(domain.Deposit{
			ID:           uuid.New(),
			MembershipID: open.ID,
			MemberNumber: number,
			Amount:       amount,
			DepositedAt:  s.now(),
		})
	})
	if err != nil {
		return err
	}

	if s.deposited != nil {
		f, _ := amount.Float64()
		s.deposited.Add(ctx, f, metric.WithAttributes(attribute.Int64("member.number", number)))
	}
	s.log.Info().Int64("member", number).Str("amount", amount.String()).Msg("deposit recorded")
	return nil
}
