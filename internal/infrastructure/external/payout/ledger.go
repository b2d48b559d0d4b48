package payout

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

const ledgerSheet = "Payouts"

var ledgerHeaders = []string{"Paid At", "Claim", "Beneficiary Name", "Method", "Account", "Amount", "Transfer ID"}

// LedgerGateway records every successful payout of the wrapped gateway as a row
// in an XLSX workbook
type LedgerGateway struct {
	next   port.PayoutGateway
	path   string
	now    func() time.Time
	logger *zap.Logger

	mu sync.Mutex
}

// NewLedgerGateway wraps next and appends confirmed payouts to the workbook at path
func NewLedgerGateway(next port.PayoutGateway, path string, logger *zap.Logger) *LedgerGateway {
	return &LedgerGateway{
		next:   next,
		path:   path,
		now:    time.Now,
		logger: logger,
	}
}

// SubmitPayout forwards to the wrapped gateway. A ledger write failure is logged
// and does not fail the payout, because money has already moved.
func (l *LedgerGateway) SubmitPayout(ctx context.Context, req *entity.PayoutRequest) (*entity.PayoutResult, error) {
	result, err := l.next.SubmitPayout(ctx, req)
	if err != nil || result == nil || !result.Success {
		return result, err
	}

	if err := l.append(req, result); err != nil {
		l.logger.Error("Failed to append payout ledger row",
			zap.String("path", l.path),
			zap.String("transfer_id", result.TransferID),
			zap.Error(err))
	}
	return result, nil
}

func (l *LedgerGateway) append(req *entity.PayoutRequest, result *entity.PayoutResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	if err != nil {
		return fmt.Errorf("failed to read ledger rows: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}

	amount, _ := req.Amount.Round(2).Float64()
	row := []interface{}{
		l.now().UTC().Format(time.RFC3339),
		req.Reference,
		req.Name,
		req.Method.String(),
		beneficiary(req),
		amount,
		result.TransferID,
	}
	if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
		return fmt.Errorf("failed to write ledger row: %w", err)
	}

	if err := f.SaveAs(l.path); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// open loads the workbook or creates it with a styled header row
func (l *LedgerGateway) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(l.path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name ledger sheet: %w", err)
	}

	header := make([]interface{}, len(ledgerHeaders))
	for i, h := range ledgerHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write ledger header: %w", err)
	}

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(ledgerHeaders))
	if err := f.SetCellStyle(ledgerSheet, "A1", lastCol+"1", boldStyle); err != nil {
		l.logger.Warn("Failed to style ledger header", zap.Error(err))
	}

	l.logger.Info("Created payout ledger", zap.String("path", l.path))
	return f, nil
}

func beneficiary(req *entity.PayoutRequest) string {
	if req.UPIID != "" {
		return req.UPIID
	}
	if req.BankDetails != nil {
		return req.BankDetails.AccountNumber + " / " + req.BankDetails.IFSCCode
	}
	return ""
}

// Verify interface compliance
var _ port.PayoutGateway = (*LedgerGateway)(nil)
