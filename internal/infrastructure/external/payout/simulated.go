package payout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

// SimulatedGateway answers payout requests locally without moving money.
// Transfer ids follow the claim_<unix millis> shape of the original payout provider.
type SimulatedGateway struct {
	fail   bool
	now    func() time.Time
	logger *zap.Logger
}

// SimulatedOption configures a SimulatedGateway
type SimulatedOption func(*SimulatedGateway)

// WithFailure makes every payout report failure
func WithFailure(fail bool) SimulatedOption {
	return func(g *SimulatedGateway) {
		g.fail = fail
	}
}

// WithClock overrides the time source used for transfer ids
func WithClock(now func() time.Time) SimulatedOption {
	return func(g *SimulatedGateway) {
		g.now = now
	}
}

// NewSimulatedGateway creates a simulated payout collaborator
func NewSimulatedGateway(logger *zap.Logger, opts ...SimulatedOption) *SimulatedGateway {
	g := &SimulatedGateway{
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubmitPayout validates the beneficiary and returns a transfer id
func (g *SimulatedGateway) SubmitPayout(ctx context.Context, req *entity.PayoutRequest) (*entity.PayoutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("payout request is nil")
	}
	if !req.Amount.IsPositive() {
		return &entity.PayoutResult{Success: false, Message: "amount must be positive"}, nil
	}
	if req.UPIID == "" && req.BankDetails == nil {
		return &entity.PayoutResult{Success: false, Message: "beneficiary details missing"}, nil
	}

	if g.fail {
		g.logger.Warn("Simulated payout rejected",
			zap.String("reference", req.Reference),
			zap.String("amount", req.Amount.StringFixed(2)))
		return &entity.PayoutResult{Success: false, Message: "payout rejected by provider"}, nil
	}

	result := &entity.PayoutResult{
		Success:    true,
		TransferID: fmt.Sprintf("claim_%d", g.now().UnixMilli()),
		Message:    "Payout simulated successfully",
	}

	g.logger.Info("Simulated payout success",
		zap.String("reference", req.Reference),
		zap.String("transfer_id", result.TransferID),
		zap.String("method", req.Method.String()),
		zap.String("amount", req.Amount.StringFixed(2)))

	return result, nil
}

// Verify interface compliance
var _ port.PayoutGateway = (*SimulatedGateway)(nil)
