package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeString(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{SVDB_OK, "SVDB_OK"},
		{SVDB_MISMATCH_ARITY, "SVDB_MISMATCH_ARITY"},
		{SVDB_MISMATCH_TYPE, "SVDB_MISMATCH_TYPE"},
		{SVDB_NOTFOUND_FUNCTION, "SVDB_NOTFOUND_FUNCTION"},
		{SVDB_CONSTRAINT_UNIQUE, "SVDB_CONSTRAINT_UNIQUE"},
		{SVDB_MISUSE_FROZEN, "SVDB_MISUSE_FROZEN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.String())
		})
	}
}

func TestErrorCodeStringUnknown(t *testing.T) {
	assert.Contains(t, ErrorCode(9999).String(), "9999")
}

func TestErrorCodePrimary(t *testing.T) {
	assert.Equal(t, SVDB_MISMATCH, SVDB_MISMATCH_ARITY.Primary())
	assert.Equal(t, SVDB_MISMATCH, SVDB_MISMATCH_TYPE.Primary())
	assert.Equal(t, SVDB_NOTFOUND, SVDB_NOTFOUND_FUNCTION.Primary())
	assert.Equal(t, SVDB_CONSTRAINT, SVDB_CONSTRAINT_UNIQUE.Primary())
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Errorf(SVDB_MISMATCH_ARITY, "add expects 2 arguments, got 1")
	require.ErrorIs(t, err, ErrArityMismatch)
	require.NotErrorIs(t, err, ErrTypeMismatch)

	wrapped := fmt.Errorf("eval: %w", err)
	require.ErrorIs(t, wrapped, ErrArityMismatch)
	assert.Equal(t, SVDB_MISMATCH_ARITY, ErrorCodeOf(wrapped))
	assert.True(t, IsErrorCode(wrapped, SVDB_MISMATCH_ARITY))
}

func TestErrorCodeOf(t *testing.T) {
	assert.Equal(t, SVDB_OK, ErrorCodeOf(nil))
	assert.Equal(t, SVDB_ERROR, ErrorCodeOf(errors.New("plain")))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(SVDB_INTERNAL, cause, "callable %s failed", "f")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "[SVDB_INTERNAL] callable f failed: boom", err.Error())
}
