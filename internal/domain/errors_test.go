package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldErrorIsInvalidArgument(t *testing.T) {
	err := &FieldError{Field: "lastName", Reason: "must not be empty"}
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "invalid lastName: must not be empty", err.Error())
}

func TestUnknownMemberIsInvalidArgument(t *testing.T) {
	err := ErrUnknownMember(42)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "42")
}

func TestErrorKindsAreDistinct(t *testing.T) {
	kinds := []error{ErrInvalidState, ErrInvalidArgument, ErrDuplicateName, ErrAlreadyMember, ErrNoMember}
	for i, a := range kinds {
		for j, b := range kinds {
			if i != j {
				assert.False(t, errors.Is(a, b))
			}
		}
	}
}
