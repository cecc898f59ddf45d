package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

// ReceiptNumberStore answers whether a receipt number is already stored for a
// company. Implemented by the db layer; fakes in tests.
type ReceiptNumberStore interface {
	ReceiptNumberExists(ctx context.Context, receiptNumber, companyID string) (bool, error)
}

// DuplicateChecker runs the advisory per-company duplicate check. Uniqueness
// scope is the company, not the whole system; the store's separate global
// constraint at write time stays the final arbiter.
type DuplicateChecker struct {
	store  ReceiptNumberStore
	logger *zap.Logger
}

// NewDuplicateChecker creates a checker over the given store.
func NewDuplicateChecker(store ReceiptNumberStore, logger *zap.Logger) *DuplicateChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateChecker{store: store, logger: logger}
}

// CheckExists reports whether receiptNumber is already used within companyID.
// Empty inputs mean "no duplicate", not an error: the UI calls this
// opportunistically before the user finishes typing. Query failures are
// swallowed and reported as false: the check is advisory at draft time and
// the store constraint catches real clashes at insert.
func (c *DuplicateChecker) CheckExists(ctx context.Context, receiptNumber, companyID string) models.DuplicateCheckResult {
	if receiptNumber == "" || companyID == "" {
		return models.DuplicateCheckResult{Exists: false}
	}

	exists, err := c.store.ReceiptNumberExists(ctx, receiptNumber, companyID)
	if err != nil {
		c.logger.Warn("duplicate check failed, treating as no duplicate",
			zap.String("receipt_number", receiptNumber),
			zap.String("company_id", companyID),
			zap.Error(err))
		return models.DuplicateCheckResult{Exists: false}
	}
	return models.DuplicateCheckResult{Exists: exists}
}
