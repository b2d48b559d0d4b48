package workflow

import (
	"fmt"

	"github.com/garyjia/travel-claims/internal/domain/apperr"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = fmt.Errorf("%w: transition not permitted", apperr.ErrInvalidState)

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = fmt.Errorf("%w: guard condition failed", apperr.ErrInvalidState)
)
