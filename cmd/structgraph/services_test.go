package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"structgraph/internal/model"
)

func TestExitCodeFor_Success(t *testing.T) {
	require.Equal(t, 0, exitCodeFor(nil))
}

func TestExitCodeFor_ValidationError(t *testing.T) {
	err := &model.ValidationError{File: "a.go", Message: "bad syntax"}
	require.Equal(t, 3, exitCodeFor(err))
}

func TestExitCodeFor_InvalidInput(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", model.ErrInvalidInput)
	require.Equal(t, 1, exitCodeFor(err))
}

func TestExitCodeFor_InvalidPattern(t *testing.T) {
	require.Equal(t, 1, exitCodeFor(model.ErrInvalidPattern))
}

func TestExitCodeFor_MatcherFailureClasses(t *testing.T) {
	require.Equal(t, 2, exitCodeFor(model.ErrMatcher))
	require.Equal(t, 2, exitCodeFor(model.ErrMatcherTimeout))
	require.Equal(t, 2, exitCodeFor(model.ErrMatcherNotFound))
	require.Equal(t, 2, exitCodeFor(model.ErrStorage))
	require.Equal(t, 2, exitCodeFor(model.ErrConflict))
}

func TestExitCodeFor_UnknownErrorDefaultsToRuntimeFailure(t *testing.T) {
	require.Equal(t, 2, exitCodeFor(fmt.Errorf("something unexpected")))
}
