package engineerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "typed", err: Wrap(KindRetrieval, "retriever.Retrieve", base), want: KindRetrieval},
		{name: "wrapped with fmt", err: fmt.Errorf("query: %w", Validation("executor.Query", "too long")), want: KindValidation},
		{name: "plain error", err: base, want: KindInternal},
		{name: "nil", err: nil, want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorsIs(t *testing.T) {
	base := errors.New("timeout")
	err := fmt.Errorf("round 1: %w", Wrapf(KindGeneration, "collab.round", base, "expert %s", "tax"))

	assert.True(t, errors.Is(err, ErrGeneration))
	assert.False(t, errors.Is(err, ErrRetrieval))
	assert.True(t, errors.Is(err, base))
	assert.True(t, errors.Is(err, &Error{Kind: KindGeneration, Op: "collab.round"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindGeneration, Op: "executor.Query"}))
	assert.True(t, Is(err, KindGeneration))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "executor.Query: validation_error: query is empty", Validation("executor.Query", "query is empty").Error())
	assert.Equal(t, "session_failure: too few experts", New(KindSessionFailure, "", "too few experts").Error())
	assert.Equal(t, "retriever.Retrieve: retrieval_error: searching chunks: db down",
		Wrapf(KindRetrieval, "retriever.Retrieve", errors.New("db down"), "searching chunks").Error())
}
