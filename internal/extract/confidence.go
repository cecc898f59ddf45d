package extract

import (
	"github.com/shopspring/decimal"

	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

// Score computes an extraction-quality confidence and blends it with the
// vendor-reported one (equal weight; a vendor that reported nothing
// contributes zero).
//
// Quality breakdown (max 1.0):
//
//	Critical fields, 0.20 each (0.60 total):
//	  merchant name present, total > 0, transaction date present
//	Important fields, 0.10 each (0.30 total):
//	  receipt number extracted (not the R- fallback), tax > 0, VAT number present
//	Bonus, 0.10:
//	  total ≈ subtotal + tax (within 5%)
func Score(receipt *models.NormalizedReceipt, vendorConfidence float64) float64 {
	var score float64

	if receipt.Merchant.Name != "" {
		score += 0.20
	}
	if receipt.Amounts.Total.GreaterThan(decimal.Zero) {
		score += 0.20
	}
	if !receipt.TransactionDate.IsZero() {
		score += 0.20
	}

	if receipt.ReceiptNumber != "" && !receipt.ReceiptNumberGenerated {
		score += 0.10
	}
	if receipt.Amounts.Tax.GreaterThan(decimal.Zero) {
		score += 0.10
	}
	if receipt.Merchant.VATNumber != "" {
		score += 0.10
	}

	if receipt.Amounts.Total.GreaterThan(decimal.Zero) && receipt.Amounts.Subtotal.GreaterThan(decimal.Zero) {
		expected := receipt.Amounts.Subtotal.Add(receipt.Amounts.Tax)
		diff := receipt.Amounts.Total.Sub(expected).Abs()
		tolerance := receipt.Amounts.Total.Mul(decimal.NewFromFloat(0.05))
		if diff.LessThanOrEqual(tolerance) {
			score += 0.10
		}
	}

	blended := (score + vendorConfidence) / 2
	if blended > 1.0 {
		blended = 1.0
	}
	return blended
}
