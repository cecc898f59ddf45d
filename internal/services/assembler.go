package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/spesenwerk/receipt-ocr-service/internal/errs"
	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

// Assembler merges the normalized receipt with the submission context into
// the persistable record shape. Line items and VAT breakdown are flattened
// into plain field maps, the representation the record store expects.
type Assembler struct {
	validator *Validator
	now       func() time.Time
}

// NewAssembler creates an Assembler on the real clock.
func NewAssembler() *Assembler {
	return &Assembler{validator: NewValidator(), now: time.Now}
}

// Assemble produces the final record, or a validation error when the company
// or any required field is missing. No partial record is ever produced.
func (a *Assembler) Assemble(receipt *models.NormalizedReceipt, sctx models.SubmissionContext) (*models.PersistedReceipt, error) {
	if result := a.validator.Validate(receipt, sctx); !result.Valid {
		first := result.Errors[0]
		return nil, errs.NewField(errs.CategoryValidation, first.Field, first.Message)
	}

	now := a.now()
	record := &models.PersistedReceipt{
		ID:               uuid.New(),
		CompanyID:        sctx.CompanyID,
		ReceiptNumber:    receipt.ReceiptNumber,
		Date:             now,
		TransactionDate:  receipt.TransactionDate,
		MerchantName:     receipt.Merchant.Name,
		MerchantAddress:  receipt.Merchant.Address,
		MerchantVAT:      receipt.Merchant.VATNumber,
		LineItems:        flattenLineItems(receipt.LineItems),
		VatBreakdown:     flattenVatLines(receipt.VatBreakdown),
		SubtotalAmount:   receipt.Amounts.Subtotal,
		TotalAmount:      receipt.Amounts.Total,
		TaxAmount:        receipt.Amounts.Tax,
		PaymentMethod:    receipt.PaymentMethod,
		ReceiptImagePath: sctx.FilePath,
		LanguageHint:     sctx.LanguageHint,
		Confidence:       receipt.Confidence,
		CreatedBy:        sctx.CreatedBy,
		CreatedAt:        now,
	}
	return record, nil
}

func flattenLineItems(items []models.LineItem) []map[string]interface{} {
	if len(items) == 0 {
		return nil
	}
	out := make([]map[string]interface{}, len(items))
	for i, item := range items {
		out[i] = map[string]interface{}{
			"name":       item.Name,
			"qty":        item.Quantity.String(),
			"unitPrice":  item.UnitPrice.String(),
			"totalPrice": item.TotalPrice.String(),
		}
	}
	return out
}

func flattenVatLines(lines []models.VatLine) []map[string]interface{} {
	if len(lines) == 0 {
		return nil
	}
	out := make([]map[string]interface{}, len(lines))
	for i, line := range lines {
		entry := map[string]interface{}{
			"rate":      line.Rate.String(),
			"base":      line.Base.String(),
			"vatAmount": line.VatAmount.String(),
			"total":     line.Total.String(),
		}
		if line.Category != "" {
			entry["category"] = line.Category
		}
		out[i] = entry
	}
	return out
}
