package ai

import "context"

// Provider is a vision model capable of reading a receipt image and returning
// the vendor payload as raw JSON text.
type Provider interface {
	// ExtractData sends the prompt plus the image to the model and returns
	// the raw model output.
	ExtractData(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)

	// Name identifies the provider for logs and the health report.
	Name() string
}
