// internal/club/memberships.go
package club

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clubledger/internal/domain"
	"clubledger/internal/store"
)

// JoinMember opens a new membership for the member. The member must
// exist and must not already have an open membership. The existence
// check, the state check and the insert are one atomic unit under the
// member's lock.
func (s *service) JoinMember(ctx context.Context, number int64) (ms *domain.Membership, err error) {
	ctx, span := s.tracer.Start(ctx, "club.join_member",
		trace.WithAttributes(attribute.Int64("member.number", number)))
	defer span.End()
	defer func() { s.count(ctx, "join_member", err) }()

	if err = s.guard.check(); err != nil {
		return nil, err
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
		if open != nil {
			return domain.ErrAlreadyMember
		}

		begin := s.now()
		// Keep the history chronological even if the clock stepped
		// backwards since the last cancellation.
		history, err := tx.Memberships(number)
		if err != nil {
			return err
		}
		if n := len(history); n > 0 {
			last := history[n-1]
			if last.End != nil && !begin.After(*last.End) {
				// Microsecond granularity survives the TIMESTAMPTZ round trip.
				begin = last.End.Add(time.Microsecond)
			}
		}

		ms = &domain.Membership{
			ID:           uuid.New(),
			MemberNumber: number,
			Begin:        begin,
		}
		return tx.InsertMembership(*ms)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("member", number).Str("membership", ms.ID.String()).Msg("member joined")
	return ms, nil
}

// CancelMembership closes the member's open membership by setting its
// end timestamp, exactly once. The member must exist and must currently
// be active.
func (s *service) CancelMembership(ctx context.Context, number int64) (ms *domain.Membership, err error) {
	ctx, span := s.tracer.Start(ctx, "club.cancel_membership",
		trace.WithAttributes(attribute.Int64("member.number", number)))
	defer span.End()
	defer func() { s.count(ctx, "cancel_membership", err) }()

	if err = s.guard.check(); err != nil {
		return nil, err
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

		end := s.now()
		// end must be strictly after begin.
		if !end.After(open.Begin) {
			end = open.Begin.Add(time.Microsecond)
		}
		if err := tx.CloseMembership(open.ID, end); err != nil {
			return err
		}
		closed := *open
		closed.End = &end
		ms = &closed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("member", number).Str("membership", ms.ID.String()).Msg("membership cancelled")
	return ms, nil
}
