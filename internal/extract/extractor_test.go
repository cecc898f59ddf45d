package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

func entityMap(pairs map[string]string) map[string]models.Entity {
	out := make(map[string]models.Entity, len(pairs))
	for k, v := range pairs {
		out[k] = models.Entity{Value: v, ConfidenceScore: 0.9}
	}
	return out
}

func fixedExtractor() *FieldExtractor {
	now := func() time.Time { return time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC) }
	return NewFieldExtractorAt(now, func(int) int { return 7 })
}

func TestExtractReceiptNumberFromPrimaryEntity(t *testing.T) {
	raw := &models.RawOcrResult{
		Entities: entityMap(map[string]string{"receiptNumber": " RS-2024/001 *"}),
	}
	receipt := fixedExtractor().Extract(raw)
	assert.Equal(t, "RS-2024/001", receipt.ReceiptNumber)
	assert.False(t, receipt.ReceiptNumberGenerated)
}

func TestExtractReceiptNumberFallsThroughToAlias(t *testing.T) {
	raw := &models.RawOcrResult{
		Entities: entityMap(map[string]string{
			"receiptNumber": "***", // cleans to nothing
			"invoiceNumber": "INV-5521",
		}),
	}
	receipt := fixedExtractor().Extract(raw)
	assert.Equal(t, "INV-5521", receipt.ReceiptNumber)
}

func TestExtractReceiptNumberFromTranscript(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"german beleg", "Coop City\nBeleg-Nr: B-445/2\nTotal 12.50", "B-445/2"},
		{"german quittung", "Quittung Nr. 2024-118", "2024-118"},
		{"french numero", "Numéro: 778-A\nMerci", "778-A"},
		{"english receipt", "Receipt No. 556677", "556677"},
		{"bare prefixed code", "Migros\nRE-20240117\nTotal", "RE-20240117"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt := fixedExtractor().Extract(&models.RawOcrResult{Text: tt.text})
			assert.Equal(t, tt.want, receipt.ReceiptNumber)
		})
	}
}

func TestExtractReceiptNumberFallback(t *testing.T) {
	receipt := fixedExtractor().Extract(&models.RawOcrResult{Text: "unreadable smudge"})
	assert.Equal(t, "R-20240117-0007", receipt.ReceiptNumber)
	assert.True(t, receipt.ReceiptNumberGenerated)
}

func TestFallbackReceiptNumberFormat(t *testing.T) {
	e := NewFieldExtractorAt(
		func() time.Time { return time.Date(2023, 12, 5, 8, 30, 0, 0, time.UTC) },
		func(int) int { return 9999 },
	)
	assert.Equal(t, "R-20231205-9999", e.FallbackReceiptNumber())
}

func TestExtractMerchant(t *testing.T) {
	raw := &models.RawOcrResult{
		Entities: entityMap(map[string]string{
			"merchantName":    "Migros Zürich HB",
			"merchantAddress": "Bahnhofplatz 15, 8001 Zürich",
			"vatNumber":       "CHE 116 281 710 MWST",
		}),
	}
	receipt := fixedExtractor().Extract(raw)
	assert.Equal(t, "Migros Zürich HB", receipt.Merchant.Name)
	assert.Equal(t, "Bahnhofplatz 15, 8001 Zürich", receipt.Merchant.Address)
	assert.Equal(t, "CHE-116.281.710", receipt.Merchant.VATNumber)
}

func TestExtractMerchantVATFromTranscript(t *testing.T) {
	raw := &models.RawOcrResult{
		Entities: entityMap(map[string]string{"merchantName": "Coop"}),
		Text:     "Coop Genossenschaft\nMwSt-Nr. CHE-123.456.789\nTotal 9.90",
	}
	receipt := fixedExtractor().Extract(raw)
	assert.Equal(t, "CHE-123.456.789", receipt.Merchant.VATNumber)
}

func TestExtractTransactionDate(t *testing.T) {
	raw := &models.RawOcrResult{
		Entities: entityMap(map[string]string{"transactionDate": "2024-01-17"}),
	}
	receipt := fixedExtractor().Extract(raw)
	assert.Equal(t, "2024-01-17", receipt.TransactionDate.Format("2006-01-02"))

	// entity absent, transcript scan takes over
	raw = &models.RawOcrResult{Text: "Datum: 03.02.2024"}
	receipt = fixedExtractor().Extract(raw)
	assert.Equal(t, "2024-02-03", receipt.TransactionDate.Format("2006-01-02"))

	// nothing usable stays unset
	receipt = fixedExtractor().Extract(&models.RawOcrResult{Text: "no date"})
	assert.True(t, receipt.TransactionDate.IsZero())
}

func TestExtractAmounts(t *testing.T) {
	raw := &models.RawOcrResult{
		Entities: entityMap(map[string]string{
			"totalAmount":    "54.30",
			"taxAmount":      "4,30",
			"subtotalAmount": "50.00",
		}),
	}
	receipt := fixedExtractor().Extract(raw)
	require.True(t, receipt.Amounts.Total.Equal(decimal.RequireFromString("54.30")))
	require.True(t, receipt.Amounts.Tax.Equal(decimal.RequireFromString("4.30")))
	require.True(t, receipt.Amounts.Subtotal.Equal(decimal.RequireFromString("50.00")))
}

func TestExtractAmountAliases(t *testing.T) {
	raw := &models.RawOcrResult{
		Entities: entityMap(map[string]string{
			"total": "1'250.00",
			"tax":   "89.35",
		}),
	}
	receipt := fixedExtractor().Extract(raw)
	assert.True(t, receipt.Amounts.Total.Equal(decimal.RequireFromString("1250.00")))
	assert.True(t, receipt.Amounts.Tax.Equal(decimal.RequireFromString("89.35")))
}

func TestScoreBlendsWithVendorConfidence(t *testing.T) {
	receipt := &models.NormalizedReceipt{
		ReceiptNumber:   "RS-2024/001",
		Merchant:        models.Merchant{Name: "Migros", VATNumber: "CHE-123.456.789"},
		TransactionDate: time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
		Amounts: models.Amounts{
			Subtotal: decimal.RequireFromString("50.00"),
			Tax:      decimal.RequireFromString("4.30"),
			Total:    decimal.RequireFromString("54.30"),
		},
	}
	// full quality score 1.0 blended with vendor 0.8 -> 0.9
	assert.InDelta(t, 0.9, Score(receipt, 0.8), 0.0001)
}

func TestScorePenalizesGeneratedNumber(t *testing.T) {
	base := &models.NormalizedReceipt{
		ReceiptNumber:          "R-20240117-0007",
		ReceiptNumberGenerated: true,
		Merchant:               models.Merchant{Name: "Migros"},
		TransactionDate:        time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
		Amounts:                models.Amounts{Total: decimal.RequireFromString("10.00")},
	}
	withGenerated := Score(base, 0)

	base.ReceiptNumberGenerated = false
	withExtracted := Score(base, 0)

	assert.Greater(t, withExtracted, withGenerated)
	assert.InDelta(t, 0.05, withExtracted-withGenerated, 0.0001)
}

func TestScoreTrustsExtractedFallbackShapedNumber(t *testing.T) {
	// A genuine vendor number that happens to look like the synthetic shape
	// still counts as extracted; only the generated flag decides.
	receipt := &models.NormalizedReceipt{
		ReceiptNumber:   "R-20240117-0042",
		Merchant:        models.Merchant{Name: "Migros"},
		TransactionDate: time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
		Amounts:         models.Amounts{Total: decimal.RequireFromString("10.00")},
	}
	withNumber := Score(receipt, 0)

	receipt.ReceiptNumber = ""
	without := Score(receipt, 0)

	assert.InDelta(t, 0.05, withNumber-without, 0.0001)
}
