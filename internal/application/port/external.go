package port

import (
	"context"

	"github.com/garyjia/travel-claims/internal/domain/entity"
)

// PayoutGateway is the external payout collaborator. Calls are made once and never retried.
type PayoutGateway interface {
	SubmitPayout(ctx context.Context, req *entity.PayoutRequest) (*entity.PayoutResult, error)
}

// IdentityVerifier turns a bearer credential into a caller identity
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*entity.Actor, error)
}
