package pgexec

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code pq.ErrorCode
		want Cause
	}{
		{"22001", StringDataTooLong},
		{"22021", InvalidEncoding},
		{"22P02", InvalidTextRepresentation},
		{"23502", NotNullViolation},
		{"23505", UniqueViolation},
		{"23514", CheckViolation},
		{"40001", SerializationFailure},
		{"57014", Timeout},
		{"08003", ConnectionDoesNotExist},
		// Any other class 08 code still classifies as a connection failure.
		{"08006", ConnectionDoesNotExist},
		{"42703", Unknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := &pq.Error{Code: tt.code, Message: "boom"}
			assert.Equal(t, tt.want, Classify(err))
			// Wrapping does not hide the code.
			assert.Equal(t, tt.want, Classify(fmt.Errorf("saving: %w", err)))
		})
	}
	assert.Equal(t, Unknown, Classify(errors.New("no sqlstate here")))
	assert.Equal(t, "", SQLState(errors.New("no sqlstate here")))
}

func TestSaveError(t *testing.T) {
	root := &pq.Error{Code: "23505", Message: "duplicate key"}
	err := NewSaveError(fmt.Errorf("inserting account: %w", root))

	assert.Equal(t, UniqueViolation, err.Cause)
	assert.Equal(t, "23505", err.SQLState)
	assert.Contains(t, err.Error(), "unique-violation")
	assert.Contains(t, err.Error(), "23505")

	// The raw driver error stays reachable through the chain.
	var pqerr *pq.Error
	require.True(t, errors.As(err, &pqerr))
	assert.Equal(t, root, pqerr)

	assert.True(t, IsSaveError(err))
	assert.True(t, IsSaveError(fmt.Errorf("outer: %w", err)))
	assert.False(t, IsSaveError(root))
	assert.False(t, IsSaveError(nil))

	assert.Equal(t, UniqueViolation, CauseOf(err))
	assert.Equal(t, Unknown, CauseOf(root))
}

func TestSaveErrorWithoutState(t *testing.T) {
	err := NewSaveError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, Unknown, err.Cause)
	assert.Equal(t, "", err.SQLState)
	assert.NotContains(t, err.Error(), "sqlstate=")
}
