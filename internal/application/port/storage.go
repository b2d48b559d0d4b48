package port

import (
	"context"
	"io"
)

// BlobStore is an opaque receipt store keyed by slash separated paths
type BlobStore interface {
	Save(ctx context.Context, path string, content []byte, contentType string) error
	Open(ctx context.Context, path string) (io.ReadCloser, *BlobInfo, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
}

// BlobInfo describes a stored blob
type BlobInfo struct {
	Path        string
	Size        int64
	ContentType string
}

// ReceiptInspection is the result of sniffing an uploaded receipt
type ReceiptInspection struct {
	ContentType string
	Extension   string
	Pages       int
}

// ReceiptInspector validates uploaded receipt content
type ReceiptInspector interface {
	Inspect(content []byte) (*ReceiptInspection, error)
}
