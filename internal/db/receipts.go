package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/spesenwerk/receipt-ocr-service/internal/errs"
	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

const pgUniqueViolation = "23505"

// Store exposes the receipt queries as the interface the pipeline consumes.
// Methods delegate to the package-level pool.
type Store struct{}

// ReceiptNumberExists reports whether a receipt number is already stored for
// the given company. The scope is the company pair, not the bare number.
func (Store) ReceiptNumberExists(ctx context.Context, receiptNumber, companyID string) (bool, error) {
	return ReceiptNumberExists(ctx, receiptNumber, companyID)
}

// SaveReceipt delegates to the package-level insert.
func (Store) SaveReceipt(ctx context.Context, record *models.PersistedReceipt) error {
	return SaveReceipt(ctx, record)
}

// ReceiptNumberExists runs the company-scoped duplicate query.
func ReceiptNumberExists(ctx context.Context, receiptNumber, companyID string) (bool, error) {
	if Pool == nil {
		return false, fmt.Errorf("database not available")
	}

	var exists bool
	err := Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM receipts WHERE receipt_number = $1 AND company_id = $2)`,
		receiptNumber, companyID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// SaveReceipt inserts the assembled record. The receipts table carries a
// global unique constraint on receipt_number alone; a violation there means
// the number is used by another company (the per-company business rule was
// already checked) and maps to the distinct duplicate_global category.
func SaveReceipt(ctx context.Context, r *models.PersistedReceipt) error {
	if Pool == nil {
		return fmt.Errorf("database not available")
	}

	lineItems, err := json.Marshal(r.LineItems)
	if err != nil {
		return fmt.Errorf("failed to serialize line items: %w", err)
	}
	vatBreakdown, err := json.Marshal(r.VatBreakdown)
	if err != nil {
		return fmt.Errorf("failed to serialize vat breakdown: %w", err)
	}

	query := `
		INSERT INTO receipts (
			id, company_id, receipt_number, date, transaction_date,
			merchant_name, merchant_address, merchant_vat,
			line_items, vat_breakdown,
			subtotal_amount, total_amount, tax_amount,
			payment_method, receipt_image_path, language_hint,
			confidence, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at
	`
	err = Pool.QueryRow(ctx, query,
		r.ID, r.CompanyID, r.ReceiptNumber, r.Date, r.TransactionDate,
		r.MerchantName, r.MerchantAddress, r.MerchantVAT,
		string(lineItems), string(vatBreakdown),
		nullableAmount(r.SubtotalAmount), r.TotalAmount, r.TaxAmount,
		r.PaymentMethod, r.ReceiptImagePath, r.LanguageHint,
		r.Confidence, r.CreatedBy,
	).Scan(&r.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return errs.New(errs.CategoryDuplicateGlobal,
			"this receipt number is already used by another company, pick a different numbering scheme", err)
	}
	return err
}

// nullableAmount maps an unset optional amount to NULL so a stored zero
// always means a read zero.
func nullableAmount(d decimal.Decimal) interface{} {
	if d.IsZero() {
		return nil
	}
	return d
}

// ReceiptRow is the shape returned by the listing queries.
type ReceiptRow struct {
	ID               string          `json:"id"`
	CompanyID        string          `json:"company_id"`
	ReceiptNumber    string          `json:"receipt_number"`
	TransactionDate  *time.Time      `json:"transaction_date"`
	MerchantName     string          `json:"merchant_name"`
	MerchantAddress  string          `json:"merchant_address,omitempty"`
	MerchantVAT      string          `json:"merchant_vat,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	ReceiptImagePath string          `json:"receipt_image_path,omitempty"`
	Confidence       float64         `json:"confidence"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// GetReceipts returns the newest receipts for one company.
func GetReceipts(ctx context.Context, companyID string, limit int) ([]ReceiptRow, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not available")
	}

	query := `
		SELECT id, company_id, receipt_number, transaction_date,
		       COALESCE(merchant_name, ''), COALESCE(merchant_address, ''), COALESCE(merchant_vat, ''),
		       COALESCE(total_amount, 0), COALESCE(tax_amount, 0),
		       COALESCE(payment_method, ''), COALESCE(receipt_image_path, ''),
		       COALESCE(confidence, 0), COALESCE(created_by, ''), created_at
		FROM receipts
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := Pool.Query(ctx, query, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []ReceiptRow
	for rows.Next() {
		var r ReceiptRow
		err := rows.Scan(
			&r.ID, &r.CompanyID, &r.ReceiptNumber, &r.TransactionDate,
			&r.MerchantName, &r.MerchantAddress, &r.MerchantVAT,
			&r.TotalAmount, &r.TaxAmount,
			&r.PaymentMethod, &r.ReceiptImagePath,
			&r.Confidence, &r.CreatedBy, &r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// GetReceiptByID retrieves a single receipt, company-scoped.
func GetReceiptByID(ctx context.Context, companyID, receiptID string) (*ReceiptRow, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not available")
	}

	query := `
		SELECT id, company_id, receipt_number, transaction_date,
		       COALESCE(merchant_name, ''), COALESCE(merchant_address, ''), COALESCE(merchant_vat, ''),
		       COALESCE(total_amount, 0), COALESCE(tax_amount, 0),
		       COALESCE(payment_method, ''), COALESCE(receipt_image_path, ''),
		       COALESCE(confidence, 0), COALESCE(created_by, ''), created_at
		FROM receipts
		WHERE id = $1 AND company_id = $2
	`
	var r ReceiptRow
	err := Pool.QueryRow(ctx, query, receiptID, companyID).Scan(
		&r.ID, &r.CompanyID, &r.ReceiptNumber, &r.TransactionDate,
		&r.MerchantName, &r.MerchantAddress, &r.MerchantVAT,
		&r.TotalAmount, &r.TaxAmount,
		&r.PaymentMethod, &r.ReceiptImagePath,
		&r.Confidence, &r.CreatedBy, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReceipt removes a receipt, company-scoped.
func DeleteReceipt(ctx context.Context, companyID, receiptID string) error {
	if Pool == nil {
		return fmt.Errorf("database not available")
	}

	_, err := Pool.Exec(ctx,
		`DELETE FROM receipts WHERE id = $1 AND company_id = $2`,
		receiptID, companyID)
	return err
}

// MonthlyStats represents per-company statistics for the current month.
type MonthlyStats struct {
	Month         string  `json:"month"`
	TotalReceipts int     `json:"total_receipts"`
	TotalSubtotal float64 `json:"total_subtotal"`
	TotalTax      float64 `json:"total_tax"`
	TotalAmount   float64 `json:"total_amount"`
}

// GetMonthlyStats returns statistics for the current month.
func GetMonthlyStats(ctx context.Context, companyID string) (*MonthlyStats, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not available")
	}

	query := `
		SELECT
			COUNT(*) AS total_receipts,
			COALESCE(SUM(subtotal_amount), 0) AS total_subtotal,
			COALESCE(SUM(tax_amount), 0) AS total_tax,
			COALESCE(SUM(total_amount), 0) AS total_amount
		FROM receipts
		WHERE company_id = $1
		  AND DATE_TRUNC('month', created_at) = DATE_TRUNC('month', CURRENT_DATE)
	`
	stats := &MonthlyStats{Month: time.Now().Format("2006-01")}
	err := Pool.QueryRow(ctx, query, companyID).Scan(
		&stats.TotalReceipts,
		&stats.TotalSubtotal,
		&stats.TotalTax,
		&stats.TotalAmount,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
