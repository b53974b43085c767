// internal/club/registry.go
package club

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clubledger/internal/domain"
	"clubledger/internal/store"
)

// AddMember validates the fields, checks the last name against all
// currently existing members and allocates the next member number. The
// uniqueness check and the allocation run under the registry mutex plus
// one atomic store update, so concurrent calls can neither produce
// duplicate numbers nor two members with the same last name.
func (s *service) AddMember(ctx context.Context, firstName, lastName string, birthday time.Time) (number int64, err error) {
	ctx, span := s.tracer.Start(ctx, "club.add_member")
	defer span.End()
	defer func() { s.count(ctx, "add_member", err) }()

	if err = s.guard.check(); err != nil {
		return 0, err
	}
	if err = validateName("firstName", firstName); err != nil {
		return 0, err
	}
	if err = validateName("lastName", lastName); err != nil {
		return 0, err
	}
	if birthday.IsZero() {
		return 0, &domain.FieldError{Field: "birthday", Reason: "must be set"}
	}

	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		existing, err := tx.MemberByLastName(lastName)
		if err != nil {
			return fmt.Errorf("check last name: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%q: %w", lastName, domain.ErrDuplicateName)
		}

		number, err = tx.NextMemberNumber()
		if err != nil {
			return err
		}
		return tx.InsertMember(domain.Member{
			Number:    number,
			FirstName: firstName,
			LastName:  lastName,
			Birthday:  birthday,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int64("member.number", number))
	s.log.Info().Int64("member", number).Str("last_name", lastName).Msg("member added")
	return number, nil
}

// DeleteMember removes the member and cascades over its memberships and
// deposits in one atomic update. It holds both the registry mutex (the
// set of existing last names changes) and the member's own lock.
func (s *service) DeleteMember(ctx context.Context, number int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "club.delete_member",
		trace.WithAttributes(attribute.Int64("member.number", number)))
	defer span.End()
	defer func() { s.count(ctx, "delete_member", err) }()

	if err = s.guard.check(); err != nil {
		return err
	}

	s.registryMu.Lock()
	defer s.registryMu.Unlock()
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
		return tx.DeleteMember(number)
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("member", number).Msg("member deleted")
	return nil
}

func validateName(field, value string) error {
	if value == "" {
		return &domain.FieldError{Field: field, Reason: "must not be empty"}
	}
	if len(value) > domain.MaxNameLength {
		return &domain.FieldError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", domain.MaxNameLength)}
	}
	return nil
}
