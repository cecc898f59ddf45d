package extract

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

// FieldExtractor derives the fields of a NormalizedReceipt from the raw
// vendor payload using an ordered strategy cascade per field. It is a pure
// function of its input except for the clock and random source, which feed
// only the receipt-number fallback and are injectable for tests.
type FieldExtractor struct {
	now  func() time.Time
	intn func(n int) int
}

// NewFieldExtractor creates an extractor on the real clock.
func NewFieldExtractor() *FieldExtractor {
	return &FieldExtractor{now: time.Now, intn: rand.Intn}
}

// NewFieldExtractorAt creates an extractor with an injected clock and random
// source, for deterministic fallback numbers in tests.
func NewFieldExtractorAt(now func() time.Time, intn func(int) int) *FieldExtractor {
	return &FieldExtractor{now: now, intn: intn}
}

// Extract runs every field cascade over the payload. Fields with no usable
// source stay unset; only the receipt number gets a synthetic fallback, every
// other gap is the form's job to prompt for.
func (e *FieldExtractor) Extract(raw *models.RawOcrResult) *models.NormalizedReceipt {
	receipt := &models.NormalizedReceipt{
		RawText:    raw.Text,
		Confidence: raw.Confidence,
	}

	receipt.ReceiptNumber, receipt.ReceiptNumberGenerated = e.extractReceiptNumber(raw)
	receipt.Merchant = extractMerchant(raw)
	receipt.TransactionDate = extractTransactionDate(raw)
	receipt.Amounts = extractAmounts(raw)
	receipt.PaymentMethod = InferPaymentMethod(raw.Text)

	return receipt
}

// receiptNumberStrategies: primary entity, alias entity, then the multi-
// language regex cascade over the transcript.
var receiptNumberStrategies = []Strategy{
	entityCleaned(CleanReceiptNumber, "receiptNumber"),
	entityCleaned(CleanReceiptNumber, "invoiceNumber"),
	regexText(receiptNumberPatterns...),
}

// extractReceiptNumber returns the number plus whether it had to be
// generated; extracted and synthetic numbers are scored differently.
func (e *FieldExtractor) extractReceiptNumber(raw *models.RawOcrResult) (string, bool) {
	if value, ok := firstMatch(raw, receiptNumberStrategies); ok {
		return CleanReceiptNumber(value), false
	}
	return e.FallbackReceiptNumber(), true
}

// FallbackReceiptNumber generates the synthetic receipt number used when
// every extraction strategy fails: R-YYYYMMDD-NNNN with a random 4-digit
// suffix.
func (e *FieldExtractor) FallbackReceiptNumber() string {
	return fmt.Sprintf("R-%s-%04d", e.now().Format("20060102"), e.intn(10000))
}

func extractMerchant(raw *models.RawOcrResult) models.Merchant {
	m := models.Merchant{}
	if v, ok := firstMatch(raw, []Strategy{entity("merchantName", "vendorName")}); ok {
		m.Name = v
	}
	if v, ok := firstMatch(raw, []Strategy{entity("merchantAddress")}); ok {
		m.Address = v
	}
	if v, ok := firstMatch(raw, []Strategy{entity("merchantPhone")}); ok {
		m.Phone = v
	}
	if v, ok := firstMatch(raw, []Strategy{entity("merchantWebsite")}); ok {
		m.Website = strings.ToLower(v)
	}

	// VAT number: structured entity first, then the CHE pattern anywhere in
	// the transcript; either way the canonical CHE-nnn.nnn.nnn form wins.
	if v, ok := firstMatch(raw, []Strategy{entity("vatNumber", "uid")}); ok {
		m.VATNumber = NormalizeSwissVAT(v)
	}
	if m.VATNumber == "" {
		m.VATNumber = NormalizeSwissVAT(raw.Text)
	}
	return m
}

func extractTransactionDate(raw *models.RawOcrResult) time.Time {
	if v, ok := firstMatch(raw, []Strategy{entity("transactionDate", "date")}); ok {
		if t := ParseDate(v); !t.IsZero() {
			return t
		}
	}
	return FindDateInText(raw.Text)
}

// extractAmounts pulls the structured amount entities. Values stay unrounded
// here; the normalization stage owns rounding so derived computations see the
// rounded inputs in the documented order.
func extractAmounts(raw *models.RawOcrResult) models.Amounts {
	amounts := models.Amounts{}
	read := func(names ...string) (v interface{}, ok bool) {
		if s, found := firstMatch(raw, []Strategy{entity(names...)}); found {
			return s, true
		}
		return nil, false
	}

	if v, ok := read("subtotalAmount", "subtotal"); ok {
		if d, parsed := ParseAmount(v); parsed {
			amounts.Subtotal = d
		}
	}
	if v, ok := read("taxAmount", "tax", "vatAmount"); ok {
		if d, parsed := ParseAmount(v); parsed {
			amounts.Tax = d
		}
	}
	if v, ok := read("totalAmount", "total"); ok {
		if d, parsed := ParseAmount(v); parsed {
			amounts.Total = d
		}
	}
	if v, ok := read("paidAmount", "paid"); ok {
		if d, parsed := ParseAmount(v); parsed {
			amounts.Paid = d
		}
	}
	if v, ok := read("changeAmount", "change"); ok {
		if d, parsed := ParseAmount(v); parsed {
			amounts.Change = d
		}
	}
	if v, ok := read("roundingAmount", "rounding"); ok {
		if d, parsed := ParseAmount(v); parsed {
			amounts.Rounding = d
		}
	}
	return amounts
}
