package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrInvalidConfig.StatusCode())
	assert.Equal(t, http.StatusUnprocessableEntity, ErrValidation.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("SOMETHING_ELSE").StatusCode())
}

func TestInvalidPlacementUnwraps(t *testing.T) {
	sentinel := stderrors.New("unknown strategy")
	apiErr := InvalidPlacement("strategy", sentinel)

	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "strategy", apiErr.Field)
	assert.True(t, stderrors.Is(apiErr, sentinel))
	assert.Contains(t, apiErr.Error(), "field: strategy")
}

func TestFromError(t *testing.T) {
	wrapped := fmt.Errorf("building timeline: %w", BadRequest("limit must be positive"))
	apiErr := FromError(wrapped)
	require.NotNil(t, apiErr)
	assert.Equal(t, ErrBadRequest, apiErr.Code)

	plain := FromError(stderrors.New("boom"))
	assert.Equal(t, ErrInternalError, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}
