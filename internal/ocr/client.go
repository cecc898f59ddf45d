package ocr

import (
	"context"

	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

// InvokeOptions carries the caller-supplied hints for one OCR invocation.
type InvokeOptions struct {
	Language     string // ISO 639 hint, e.g. "deu", "fra"
	LocationHint string // country hint, e.g. "CH"
	Filename     string
}

// Client converts a receipt blob (image or PDF) into the vendor OCR payload.
// Implementations do not retry; a failure surfaces immediately and the user
// gets a retry affordance instead of an automatic loop.
type Client interface {
	Invoke(ctx context.Context, blob []byte, opts InvokeOptions) (*models.RawOcrResult, error)
}
