package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Is(t *testing.T) {
	verr := NewValidationError("upiId", "is required")
	wrapped := fmt.Errorf("request reimbursement: %w", verr)

	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.False(t, errors.Is(wrapped, ErrInvalidState))

	var target *ValidationError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "upiId", target.Fields[0].Field)
}

func TestValidationError_OrNil(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.OrNil())

	verr.Add("expenses", "at least one expense is required")
	verr.Add("travelFrom", "is required")
	err := verr.OrNil()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expenses: at least one expense is required")
	assert.Contains(t, err.Error(), "travelFrom: is required")
}
