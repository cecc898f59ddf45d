package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spesenwerk/receipt-ocr-service/internal/ocr"
)

type stubProvider struct {
	response string
	err      error
	gotMime  string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) ExtractData(_ context.Context, _ string, _ []byte, mimeType string) (string, error) {
	s.gotMime = mimeType
	return s.response, s.err
}

const payloadJSON = `{
  "entities": {
    "receiptNumber": {"value": "RS-2024/001", "confidenceScore": 0.95},
    "totalAmount":   {"value": "54.30", "confidenceScore": 0.9}
  },
  "text": "Migros\r\nTotal   54.30",
  "taxLines": [{"rate": 8.1, "base": 50.00, "amount": 4.05}],
  "confidence": 0.9,
  "language": "deu"
}`

func TestParsePayload(t *testing.T) {
	result, err := parsePayload(payloadJSON)
	require.NoError(t, err)
	assert.Equal(t, "RS-2024/001", result.Entities["receiptNumber"].Value)
	assert.InDelta(t, 0.95, result.Entities["receiptNumber"].ConfidenceScore, 0.0001)
	assert.Len(t, result.TaxLines, 1)
	assert.InDelta(t, 0.9, result.Confidence, 0.0001)
}

func TestParsePayloadStripsMarkdownFences(t *testing.T) {
	result, err := parsePayload("```json\n" + payloadJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "RS-2024/001", result.Entities["receiptNumber"].Value)

	result, err = parsePayload("```\n" + payloadJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "deu", result.Language)
}

func TestParsePayloadDefaultsEntities(t *testing.T) {
	result, err := parsePayload(`{"text": "unreadable", "confidence": 0.1}`)
	require.NoError(t, err)
	assert.NotNil(t, result.Entities)
}

func TestParsePayloadRejectsNonJSON(t *testing.T) {
	_, err := parsePayload("I could not read this receipt, sorry.")
	assert.Error(t, err)
}

func TestInvokeNormalizesTranscript(t *testing.T) {
	provider := &stubProvider{response: payloadJSON}
	extractor := NewExtractor(provider)

	// %PDF magic skips image preprocessing and keeps the PDF mime type
	result, err := extractor.Invoke(context.Background(), []byte("%PDF-1.4 rest"), ocr.InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", provider.gotMime)
	assert.Equal(t, "Migros\nTotal 54.30", result.Text)
}

func TestInvokeLanguageHintFallback(t *testing.T) {
	provider := &stubProvider{response: `{"text": "x", "confidence": 0.5}`}
	extractor := NewExtractor(provider)

	result, err := extractor.Invoke(context.Background(), []byte("%PDF-1.4"), ocr.InvokeOptions{Language: "fra"})
	require.NoError(t, err)
	assert.Equal(t, "fra", result.Language, "payload without language falls back to the request hint")
}

func TestInvokeProviderError(t *testing.T) {
	provider := &stubProvider{err: errors.New("rate limited")}
	extractor := NewExtractor(provider)

	_, err := extractor.Invoke(context.Background(), []byte("%PDF-1.4"), ocr.InvokeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stub")
}
