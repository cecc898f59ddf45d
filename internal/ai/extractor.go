package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spesenwerk/receipt-ocr-service/internal/models"
	"github.com/spesenwerk/receipt-ocr-service/internal/ocr"
)

// Extractor turns a receipt blob into the vendor OCR payload by sending the
// image to a vision provider with a payload-shaped prompt. It implements
// ocr.Client so the pipeline does not care which provider is behind it.
type Extractor struct {
	provider     Provider
	preprocessor *ocr.Preprocessor
}

// NewExtractor creates an OCR extractor backed by the given provider.
func NewExtractor(provider Provider) *Extractor {
	return &Extractor{
		provider:     provider,
		preprocessor: ocr.NewPreprocessor(),
	}
}

// Invoke runs one OCR extraction. No automatic retry: a failure surfaces to
// the caller, which offers the user a manual retry instead.
func (e *Extractor) Invoke(ctx context.Context, blob []byte, opts ocr.InvokeOptions) (*models.RawOcrResult, error) {
	mimeType := http.DetectContentType(blob)
	if mimeType != "application/pdf" {
		blob = e.preprocessor.Preprocess(blob)
		mimeType = "image/jpeg"
	}

	prompt := buildPayloadPrompt(opts)

	response, err := e.provider.ExtractData(ctx, prompt, blob, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%s extraction failed: %w", e.provider.Name(), err)
	}

	result, err := parsePayload(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", e.provider.Name(), err)
	}

	result.Text = ocr.NormalizeTranscript(result.Text)
	if result.Language == "" {
		result.Language = opts.Language
	}
	return result, nil
}

// buildPayloadPrompt instructs the model to emit the vendor payload shape the
// extraction cascade consumes.
func buildPayloadPrompt(opts ocr.InvokeOptions) string {
	currentYear := time.Now().Year()

	language := opts.Language
	if language == "" {
		language = "deu"
	}
	location := opts.LocationHint
	if location == "" {
		location = "CH"
	}

	return fmt.Sprintf(`You are an OCR engine for retail and restaurant receipts (region hint: %s, language hint: %s). Read the document carefully and transcribe it.

Return ONLY valid JSON (no markdown, no comments) in exactly this shape:
{
  "entities": {
    "receiptNumber":   {"value": "...", "confidenceScore": 0.0},
    "invoiceNumber":   {"value": "...", "confidenceScore": 0.0},
    "merchantName":    {"value": "...", "confidenceScore": 0.0},
    "merchantAddress": {"value": "...", "confidenceScore": 0.0},
    "merchantPhone":   {"value": "...", "confidenceScore": 0.0},
    "merchantWebsite": {"value": "...", "confidenceScore": 0.0},
    "vatNumber":       {"value": "...", "confidenceScore": 0.0},
    "transactionDate": {"value": "YYYY-MM-DD", "confidenceScore": 0.0},
    "subtotalAmount":  {"value": "...", "confidenceScore": 0.0},
    "taxAmount":       {"value": "...", "confidenceScore": 0.0},
    "totalAmount":     {"value": "...", "confidenceScore": 0.0},
    "paidAmount":      {"value": "...", "confidenceScore": 0.0},
    "changeAmount":    {"value": "...", "confidenceScore": 0.0}
  },
  "text": "the complete raw transcript, line by line",
  "amounts": [{"label": "text next to the amount", "value": "12.30"}],
  "taxLines": [{"rate": 8.1, "base": 100.00, "amount": 8.10, "category": "standard"}],
  "lineItems": [{"name": "...", "quantity": 1, "unitPrice": 4.50, "totalPrice": 4.50}],
  "confidence": 0.0,
  "language": "deu|fra|ita|eng"
}

Rules:
1. Omit an entity entirely when you cannot read it. NEVER invent values.
2. Keep amounts exactly as printed (including apostrophes or commas).
3. VAT/MWST/TVA identification numbers look like CHE-123.456.789.
4. The receipt number is labeled "Beleg", "Beleg-Nr", "Bon", "Quittung",
   "Receipt", "Nr", "Nummer" or "#". Do not confuse it with article numbers.
5. Default year when the date shows none: %d.
6. "taxLines" lists every printed VAT rate line (rate, taxable base, tax
   amount). Leave it empty when the receipt shows none.
7. "amounts" lists every detected monetary token with its label text.
8. confidence is your overall reading confidence between 0 and 1.

Transcribe the receipt now.`, location, language, currentYear)
}

// parsePayload converts the model JSON into a RawOcrResult, tolerating the
// markdown fences some models insist on adding.
func parsePayload(response string) (*models.RawOcrResult, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result models.RawOcrResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	if result.Entities == nil {
		result.Entities = map[string]models.Entity{}
	}
	return &result, nil
}
