package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceiptPath(t *testing.T) {
	assert.Equal(t, "claims/abc-123/receipt_0.pdf", ReceiptPath("abc-123", 0, ".pdf"))
	assert.Equal(t, "claims/abc-123/receipt_2.jpg", ReceiptPath("abc-123", 2, "JPG"))
	assert.Equal(t, "claims/etcpasswd/receipt_1", ReceiptPath("../etc/passwd", 1, ""))
}
