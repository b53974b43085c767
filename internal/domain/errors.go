// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// The closed set of failure kinds every operation of the ledger can
// report. Callers branch with errors.Is; nothing here is transient or
// retryable.
var (
	// ErrInvalidState signals lifecycle misuse: an operation before
	// Initialize, or a second Initialize.
	ErrInvalidState = errors.New("invalid lifecycle state")

	// ErrInvalidArgument signals a malformed field, an unknown member
	// number or a non-positive amount.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateName signals a last name that is already taken by a
	// currently existing member.
	ErrDuplicateName = errors.New("last name already in use")

	// ErrAlreadyMember signals a join for a member that already has an
	// active membership.
	ErrAlreadyMember = errors.New("member already has an active membership")

	// ErrNoMember signals a cancel or deposit for a member without an
	// active membership.
	ErrNoMember = errors.New("member has no active membership")
)

// FieldError is an ErrInvalidArgument that names the violated field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidArgument
}

// ErrUnknownMember wraps ErrInvalidArgument for a member number that does
// not exist.
func ErrUnknownMember(number int64) error {
	return fmt.Errorf("unknown member %d: %w", number, ErrInvalidArgument)
}
