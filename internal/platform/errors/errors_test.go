package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := ValidationError("col_span must be between 1 and 12")

	assert.Equal(t, TypeValidation, err.Type)
	assert.Equal(t, "col_span must be between 1 and 12", err.Message)
	assert.Nil(t, err.Cause)
	assert.NotNil(t, err.Context)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Contains(t, err.Error(), "validation")
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("region not found")

	assert.Equal(t, TypeNotFound, err.Type)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
	assert.Contains(t, err.Error(), "not_found")
}

func TestOverlapConflictError_NamesPosition(t *testing.T) {
	err := OverlapConflictError(2, 5)

	assert.Equal(t, TypeOverlapConflict, err.Type)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus())
	assert.Contains(t, err.Message, "row 2, col 5")
	assert.Equal(t, 2, err.Context["grid_row"])
	assert.Equal(t, 5, err.Context["grid_col"])
}

func TestVersionConflictError(t *testing.T) {
	err := VersionConflictError("region was modified concurrently")

	assert.Equal(t, TypeVersionConflict, err.Type)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus())
}

func TestStoreError_KeepsCauseOutOfResponse(t *testing.T) {
	cause := fmt.Errorf("connection reset by peer")
	err := StoreError("insert region", cause)

	assert.Equal(t, TypeStore, err.Type)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.ErrorIs(t, err, cause)

	resp := err.ToResponse()
	assert.Equal(t, "store operation failed: insert region", resp.Error)
	assert.NotContains(t, resp.Error, "connection reset")
}

func TestSagaErrors(t *testing.T) {
	cause := errors.New("boom")

	step := SagaStepFailureError("create-1", cause)
	assert.Equal(t, TypeSagaStepFailure, step.Type)
	assert.Equal(t, "create-1", step.Context["step_id"])
	assert.ErrorIs(t, step, cause)

	rb := SagaRollbackFailureError("create-1", cause)
	assert.Equal(t, TypeSagaRollbackFailure, rb.Type)
}

func TestIs_MatchesSentinelOfSameType(t *testing.T) {
	err := fmt.Errorf("update region: %w", VersionConflictError("stale"))

	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NotErrorIs(t, err, ErrOverlapConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestIs_DoesNotMatchNonSentinel(t *testing.T) {
	a := ValidationError("a")
	b := ValidationError("b")

	assert.False(t, errors.Is(a, b))
}

func TestWithField(t *testing.T) {
	err := NotFoundError("layout not found").
		WithField("layout_id", "abc").
		WithContext("tenant_id", "t1")

	assert.Equal(t, "abc", err.Context["layout_id"])
	assert.Equal(t, "t1", err.Context["tenant_id"])
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("structured error passes through", func(t *testing.T) {
		original := ValidationError("bad")
		wrapped := fmt.Errorf("context: %w", original)

		got := AsStructuredError(wrapped)
		require.NotNil(t, got)
		assert.Same(t, original, got)
	})

	t.Run("plain error becomes store error", func(t *testing.T) {
		got := AsStructuredError(errors.New("driver exploded"))
		require.NotNil(t, got)
		assert.Equal(t, TypeStore, got.Type)
		assert.NotContains(t, got.ToResponse().Error, "driver exploded")
	})
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, TypeOverlapConflict, TypeOf(fmt.Errorf("x: %w", OverlapConflictError(0, 0))))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
}
