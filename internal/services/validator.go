package services

import (
	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of submission-time validation.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// Validator enforces the submission-time business rules. Only company,
// receipt number, merchant name, total, tax and transaction date are
// mandatory; everything else persists as empty when absent.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that every required field survived normalization. A zero
// total or tax counts as missing; the user must fill it before submitting.
func (v *Validator) Validate(receipt *models.NormalizedReceipt, sctx models.SubmissionContext) *ValidationResult {
	result := &ValidationResult{Valid: true, Errors: []FieldError{}}

	if sctx.CompanyID == "" {
		result.add("companyId", "missing_company", "select a company before submitting")
	}
	if receipt.ReceiptNumber == "" {
		result.add("receiptNumber", "missing_receipt_number", "receipt number is required")
	}
	if receipt.Merchant.Name == "" {
		result.add("merchantName", "missing_merchant", "merchant name is required")
	}
	if !receipt.Amounts.Total.IsPositive() {
		result.add("totalAmount", "missing_total", "total amount is required")
	}
	if !receipt.Amounts.Tax.IsPositive() {
		result.add("taxAmount", "missing_tax", "tax amount is required")
	}
	if receipt.TransactionDate.IsZero() {
		result.add("transactionDate", "missing_date", "transaction date is required")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (r *ValidationResult) add(field, code, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Code: code, Message: message})
}
