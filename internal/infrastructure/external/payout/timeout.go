package payout

import (
	"context"
	"time"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

// TimeoutGateway bounds every call to the wrapped gateway
type TimeoutGateway struct {
	next    port.PayoutGateway
	timeout time.Duration
}

// NewTimeoutGateway wraps next. A non-positive timeout leaves calls unbounded.
func NewTimeoutGateway(next port.PayoutGateway, timeout time.Duration) *TimeoutGateway {
	return &TimeoutGateway{next: next, timeout: timeout}
}

func (g *TimeoutGateway) SubmitPayout(ctx context.Context, req *entity.PayoutRequest) (*entity.PayoutResult, error) {
	if g.timeout <= 0 {
		return g.next.SubmitPayout(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.next.SubmitPayout(ctx, req)
}

var _ port.PayoutGateway = (*TimeoutGateway)(nil)
