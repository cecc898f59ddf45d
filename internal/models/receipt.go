package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawOcrResult is the vendor payload returned for one scanned receipt.
// Depending on the vendor variant the same semantic field can show up as a
// structured entity, inside the raw transcript, or not at all; numeric values
// may arrive as JSON numbers or as regionally formatted strings. The result is
// consumed once by the extraction stage and never persisted.
type RawOcrResult struct {
	Entities   map[string]Entity `json:"entities"`
	Text       string            `json:"text"`
	Amounts    []AmountToken     `json:"amounts,omitempty"`
	TaxLines   []RawTaxLine      `json:"taxLines,omitempty"`
	LineItems  []RawLineItem     `json:"lineItems,omitempty"`
	Confidence float64           `json:"confidence"`
	Language   string            `json:"language,omitempty"`
}

// Entity is a single structured field detected by the vendor.
type Entity struct {
	Value           string  `json:"value"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// AmountToken is a detected monetary token with its surrounding label text.
// Value may be a number or a formatted string ("1'234.50", "1.234,50").
type AmountToken struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
}

// RawTaxLine is one detected tax-line entry (rate, base, amount, category).
// All numeric fields are interface{} because vendor variants disagree on type.
type RawTaxLine struct {
	Rate     interface{} `json:"rate"`
	Base     interface{} `json:"base"`
	Amount   interface{} `json:"amount"`
	Category string      `json:"category,omitempty"`
}

// RawLineItem is one detected line item in the vendor's structured item list.
type RawLineItem struct {
	Name       string      `json:"name"`
	Quantity   interface{} `json:"quantity"`
	UnitPrice  interface{} `json:"unitPrice"`
	TotalPrice interface{} `json:"totalPrice"`
}

// Merchant holds the identifying fields extracted for the issuing business.
type Merchant struct {
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Website   string `json:"website,omitempty"`
	VATNumber string `json:"vatNumber,omitempty"` // CHE-nnn.nnn.nnn, normalized
}

// Amounts is the canonical set of monetary fields, each rounded to 2 decimals.
type Amounts struct {
	Subtotal decimal.Decimal `json:"subtotal,omitempty"`
	Tax      decimal.Decimal `json:"tax,omitempty"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid,omitempty"`
	Change   decimal.Decimal `json:"change,omitempty"`
	Rounding decimal.Decimal `json:"rounding,omitempty"`
}

// VatLine is one per-rate VAT breakdown entry.
// Invariants after normalization: total == round(base + vatAmount, 2) and
// vatAmount == round(base * rate / 100, 2).
type VatLine struct {
	Rate      decimal.Decimal `json:"rate"` // percent
	Base      decimal.Decimal `json:"base"`
	VatAmount decimal.Decimal `json:"vatAmount"`
	Total     decimal.Decimal `json:"total"`
	Category  string          `json:"category,omitempty"`
}

// LineItem is one purchased item after normalization.
// totalPrice == round(quantity * unitPrice, 2) unless the user overrides it.
type LineItem struct {
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// NormalizedReceipt is the canonical pipeline output. It has no identity of
// its own; it belongs to one in-progress submission until assembled into a
// persistable record.
type NormalizedReceipt struct {
	ReceiptNumber string `json:"receiptNumber"`
	// ReceiptNumberGenerated marks the number as the synthetic fallback, as
	// opposed to one read off the document.
	ReceiptNumberGenerated bool `json:"receiptNumberGenerated,omitempty"`
	Merchant        Merchant   `json:"merchant"`
	TransactionDate time.Time  `json:"transactionDate"`
	Amounts         Amounts    `json:"amounts"`
	VatBreakdown    []VatLine  `json:"vatBreakdown,omitempty"`
	LineItems       []LineItem `json:"lineItems,omitempty"`
	PaymentMethod   string     `json:"paymentMethod,omitempty"`
	Confidence      float64    `json:"confidence"` // 0-1
	RawText         string     `json:"rawText,omitempty"`
}

// DuplicateCheckResult is the advisory duplicate-check outcome, derived at
// read time and never persisted.
type DuplicateCheckResult struct {
	Exists bool `json:"exists"`
}

// SubmissionContext carries the user-selected state merged into the record at
// assembly time.
type SubmissionContext struct {
	CompanyID    string `json:"companyId"`
	EmployeeID   string `json:"employeeId,omitempty"`
	CreatedBy    string `json:"createdBy"`
	FilePath     string `json:"filePath,omitempty"` // object-store path of the uploaded receipt
	LanguageHint string `json:"languageHint,omitempty"`
}

// PersistedReceipt is the final record shape written through the record
// store: the normalized fields merged with submission context, line items and
// VAT breakdown flattened to plain field maps for the jsonb columns. Created
// once on submission, immutable afterwards.
type PersistedReceipt struct {
	ID               uuid.UUID                `json:"id"`
	CompanyID        string                   `json:"company_id"`
	ReceiptNumber    string                   `json:"receipt_number"`
	Date             time.Time                `json:"date"` // entry date
	TransactionDate  time.Time                `json:"transaction_date"`
	MerchantName     string                   `json:"merchant_name"`
	MerchantAddress  string                   `json:"merchant_address,omitempty"`
	MerchantVAT      string                   `json:"merchant_vat,omitempty"`
	LineItems        []map[string]interface{} `json:"line_items,omitempty"`
	VatBreakdown     []map[string]interface{} `json:"vat_breakdown,omitempty"`
	SubtotalAmount   decimal.Decimal          `json:"subtotal_amount,omitempty"`
	TotalAmount      decimal.Decimal          `json:"total_amount"`
	TaxAmount        decimal.Decimal          `json:"tax_amount"`
	PaymentMethod    string                   `json:"payment_method,omitempty"`
	ReceiptImagePath string                   `json:"receipt_image_path,omitempty"`
	LanguageHint     string                   `json:"language_hint,omitempty"`
	Confidence       float64                  `json:"confidence"`
	CreatedBy        string                   `json:"created_by"`
	CreatedAt        time.Time                `json:"created_at"`
}

// ProcessResponse is the response of the processing endpoint.
type ProcessResponse struct {
	Success   bool               `json:"success"`
	Receipt   *NormalizedReceipt `json:"receipt,omitempty"`
	ReceiptID string             `json:"receiptId,omitempty"` // set when the record was persisted
	Error     string             `json:"error,omitempty"`
	ErrorType string             `json:"errorType,omitempty"`

	// Processing metadata
	Duplicate     bool    `json:"duplicate,omitempty"` // advisory per-company check
	OCRDuration   float64 `json:"ocrDuration,omitempty"`
	TotalDuration float64 `json:"totalDuration"`
}
