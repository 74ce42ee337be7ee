package domainerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("load: %w", NotFound("payment", "p-1"))
	require.True(t, errors.Is(wrapped, ErrNotFound))
	require.False(t, errors.Is(wrapped, ErrInvalidTransition))

	var nf *NotFoundError
	require.True(t, errors.As(wrapped, &nf))
	require.Equal(t, "p-1", nf.ID)

	require.True(t, errors.Is(InvalidTransition("payment", "p-1", "approveRefund", "none"), ErrInvalidTransition))
	require.True(t, errors.Is(Invariant("payment", "p-1", "negative remainder"), ErrInvariant))
}

func TestFieldErrors(t *testing.T) {
	t.Parallel()

	fields := FieldErrors{}
	require.NoError(t, fields.OrNil())

	fields.Add("rentAmount", "must be positive")
	fields.Add("duration", "unit must be months or years")
	err := fields.OrNil()

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "rentAmount")
	require.Equal(t, "validation error: duration: unit must be months or years; rentAmount: must be positive", err.Error())
}
