package storage

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
)

// DefaultMaxReceiptBytes caps a single uploaded receipt
const DefaultMaxReceiptBytes = 10 << 20

var receiptTypes = []string{"application/pdf", "image/jpeg", "image/png", "image/webp"}

// ReceiptInspector sniffs uploaded receipts and rejects anything that is not
// a readable PDF or image
type ReceiptInspector struct {
	maxBytes int
	logger   *zap.Logger
}

// NewReceiptInspector creates an inspector. maxBytes <= 0 uses DefaultMaxReceiptBytes.
func NewReceiptInspector(maxBytes int, logger *zap.Logger) *ReceiptInspector {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxReceiptBytes
	}
	return &ReceiptInspector{
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Inspect detects the content type and, for PDFs, checks the document opens
func (i *ReceiptInspector) Inspect(content []byte) (*port.ReceiptInspection, error) {
	if len(content) == 0 {
		return nil, apperr.NewValidationError("receipt", "file is empty")
	}
	if len(content) > i.maxBytes {
		return nil, apperr.NewValidationError("receipt", fmt.Sprintf("file exceeds %d bytes", i.maxBytes))
	}

	mtype := mimetype.Detect(content)
	if !mimetype.EqualsAny(mtype.String(), receiptTypes...) {
		return nil, apperr.NewValidationError("receipt", fmt.Sprintf("unsupported file type %s", mtype.String()))
	}

	inspection := &port.ReceiptInspection{
		ContentType: mtype.String(),
		Extension:   mtype.Extension(),
		Pages:       1,
	}

	if mtype.Is("application/pdf") {
		doc, err := fitz.NewFromMemory(content)
		if err != nil {
			i.logger.Warn("Rejected unreadable PDF receipt", zap.Error(err))
			return nil, apperr.NewValidationError("receipt", "PDF could not be opened")
		}
		defer doc.Close()

		inspection.Pages = doc.NumPage()
		if inspection.Pages == 0 {
			return nil, apperr.NewValidationError("receipt", "PDF has no pages")
		}
	}

	return inspection, nil
}

// Verify interface compliance
var _ port.ReceiptInspector = (*ReceiptInspector)(nil)
