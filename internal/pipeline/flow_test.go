package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spesenwerk/receipt-ocr-service/internal/errs"
	"github.com/spesenwerk/receipt-ocr-service/internal/models"
	"github.com/spesenwerk/receipt-ocr-service/internal/ocr"
)

type fakeOCR struct {
	result *models.RawOcrResult
	err    error
	// onInvoke runs during the vendor round-trip, before the result is
	// returned. Lets tests simulate a clear happening mid-flight.
	onInvoke func()
}

func (f *fakeOCR) Invoke(_ context.Context, _ []byte, _ ocr.InvokeOptions) (*models.RawOcrResult, error) {
	if f.onInvoke != nil {
		f.onInvoke()
	}
	return f.result, f.err
}

type fakeFlowStore struct {
	existing map[string]bool
	saveErr  error
	saved    []*models.PersistedReceipt
}

func (f *fakeFlowStore) ReceiptNumberExists(_ context.Context, number, companyID string) (bool, error) {
	return f.existing[number+"|"+companyID], nil
}

func (f *fakeFlowStore) SaveReceipt(_ context.Context, record *models.PersistedReceipt) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, record)
	return nil
}

type fakeUploader struct {
	failures int // fail this many calls before succeeding
	calls    int
	path     string
}

func (f *fakeUploader) Upload(_ context.Context, _ UploadRequest) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("minio unreachable")
	}
	return f.path, nil
}

func goodPayload() *models.RawOcrResult {
	return &models.RawOcrResult{
		Entities: map[string]models.Entity{
			"receiptNumber":   {Value: "RS-2024/001", ConfidenceScore: 0.95},
			"merchantName":    {Value: "Migros", ConfidenceScore: 0.9},
			"transactionDate": {Value: "2024-01-17", ConfidenceScore: 0.9},
			"totalAmount":     {Value: "54.30", ConfidenceScore: 0.9},
			"taxAmount":       {Value: "4.30", ConfidenceScore: 0.9},
		},
		Text:       "Migros Zürich\nBezahlt mit TWINT\n17.01.2024",
		Confidence: 0.9,
	}
}

func goodReceipt() *models.NormalizedReceipt {
	return &models.NormalizedReceipt{
		ReceiptNumber:   "RS-2024/001",
		Merchant:        models.Merchant{Name: "Migros"},
		TransactionDate: time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
		Amounts: models.Amounts{
			Total: decimal.RequireFromString("54.30"),
			Tax:   decimal.RequireFromString("4.30"),
		},
	}
}

func newTestFlow(ocrClient ocr.Client, store Store, uploader Uploader) *Flow {
	f := NewFlow(ocrClient, store, uploader, 3, nil)
	f.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func TestExtractHappyPath(t *testing.T) {
	store := &fakeFlowStore{}
	flow := newTestFlow(&fakeOCR{result: goodPayload()}, store, &fakeUploader{})

	receipt, dup, err := flow.Extract(context.Background(), []byte("img"), ocr.InvokeOptions{}, "company-1")
	require.NoError(t, err)
	assert.Equal(t, "RS-2024/001", receipt.ReceiptNumber)
	assert.Equal(t, "Migros", receipt.Merchant.Name)
	assert.Equal(t, "TWINT", receipt.PaymentMethod)
	assert.False(t, dup.Exists)
	assert.Equal(t, StateIdle, flow.State(), "extraction returns to idle for the user to review")
}

func TestExtractAdvisoryDuplicate(t *testing.T) {
	store := &fakeFlowStore{existing: map[string]bool{"RS-2024/001|company-1": true}}
	flow := newTestFlow(&fakeOCR{result: goodPayload()}, store, &fakeUploader{})

	receipt, dup, err := flow.Extract(context.Background(), []byte("img"), ocr.InvokeOptions{}, "company-1")
	require.NoError(t, err, "advisory duplicate never fails extraction")
	assert.True(t, dup.Exists)
	assert.NotNil(t, receipt)
}

func TestExtractOCRFailure(t *testing.T) {
	flow := newTestFlow(&fakeOCR{err: errors.New("vendor 503")}, &fakeFlowStore{}, &fakeUploader{})

	_, _, err := flow.Extract(context.Background(), []byte("img"), ocr.InvokeOptions{}, "company-1")
	require.Error(t, err)
	assert.Equal(t, errs.CategoryExtraction, errs.CategoryOf(err))
	assert.Equal(t, StateError, flow.State())
}

func TestExtractStaleAfterReset(t *testing.T) {
	client := &fakeOCR{result: goodPayload()}
	flow := newTestFlow(client, &fakeFlowStore{}, &fakeUploader{})
	client.onInvoke = flow.Reset // user clears the form mid round-trip

	receipt, _, err := flow.Extract(context.Background(), []byte("img"), ocr.InvokeOptions{}, "company-1")
	assert.ErrorIs(t, err, ErrStale)
	assert.Nil(t, receipt, "late result never repopulates a cleared form")
}

func TestResetBumpsGeneration(t *testing.T) {
	flow := newTestFlow(&fakeOCR{}, &fakeFlowStore{}, &fakeUploader{})
	gen := flow.Generation()
	flow.Reset()
	flow.Reset()
	assert.Equal(t, gen+2, flow.Generation())
	assert.Equal(t, StateIdle, flow.State())
}

func TestSubmitHappyPathWithUpload(t *testing.T) {
	store := &fakeFlowStore{}
	uploader := &fakeUploader{path: "receipts/company-1/2024/01/abc.jpg"}
	flow := newTestFlow(&fakeOCR{}, store, uploader)

	record, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1", CreatedBy: "user-9"},
		&UploadRequest{Blob: []byte("img"), Filename: "abc.jpg", CompanyID: "company-1"})
	require.NoError(t, err)

	assert.Equal(t, StateDone, flow.State())
	assert.Equal(t, "receipts/company-1/2024/01/abc.jpg", record.ReceiptImagePath)
	require.Len(t, store.saved, 1)
	assert.Equal(t, record, store.saved[0])
}

func TestSubmitWithoutUploadSkipsUploadingState(t *testing.T) {
	store := &fakeFlowStore{}
	uploader := &fakeUploader{}
	flow := newTestFlow(&fakeOCR{}, store, uploader)

	record, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"}, nil)
	require.NoError(t, err)
	assert.Zero(t, uploader.calls)
	assert.Empty(t, record.ReceiptImagePath)
	require.Len(t, store.saved, 1)
}

func TestSubmitBlocksOnDuplicate(t *testing.T) {
	store := &fakeFlowStore{existing: map[string]bool{"RS-2024/001|company-1": true}}
	flow := newTestFlow(&fakeOCR{}, store, &fakeUploader{})

	_, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, errs.CategoryDuplicate, errs.CategoryOf(err))
	assert.Empty(t, store.saved)
}

func TestSubmitValidationFailure(t *testing.T) {
	store := &fakeFlowStore{}
	receipt := goodReceipt()
	receipt.Amounts.Tax = decimal.Zero
	flow := newTestFlow(&fakeOCR{}, store, &fakeUploader{})

	_, err := flow.Submit(context.Background(), receipt,
		models.SubmissionContext{CompanyID: "company-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, errs.CategoryValidation, errs.CategoryOf(err))
	assert.Empty(t, store.saved)
}

func TestSubmitUploadRetriesThenSucceeds(t *testing.T) {
	store := &fakeFlowStore{}
	uploader := &fakeUploader{failures: 2, path: "receipts/x.jpg"}
	flow := newTestFlow(&fakeOCR{}, store, uploader)

	var backoffs []time.Duration
	flow.sleep = func(_ context.Context, d time.Duration) error {
		backoffs = append(backoffs, d)
		return nil
	}

	record, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"},
		&UploadRequest{Blob: []byte("img")})
	require.NoError(t, err)
	assert.Equal(t, 3, uploader.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, backoffs)
	assert.Equal(t, "receipts/x.jpg", record.ReceiptImagePath)
	require.Len(t, store.saved, 1)
}

func TestSubmitUploadExhaustedAbortsBeforeInsert(t *testing.T) {
	store := &fakeFlowStore{}
	uploader := &fakeUploader{failures: 10}
	flow := newTestFlow(&fakeOCR{}, store, uploader)

	_, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"},
		&UploadRequest{Blob: []byte("img")})
	require.Error(t, err)
	assert.Equal(t, errs.CategoryUpload, errs.CategoryOf(err))
	assert.Equal(t, 3, uploader.calls, "exactly max attempts, no more")
	assert.Empty(t, store.saved, "upload failure never leaves a record behind")
	assert.Equal(t, StateError, flow.State())
}

func TestSubmitGlobalDuplicatePassesThrough(t *testing.T) {
	globalErr := errs.New(errs.CategoryDuplicateGlobal,
		"this receipt number is already used by another company, pick a different numbering scheme", nil)
	store := &fakeFlowStore{saveErr: globalErr}
	flow := newTestFlow(&fakeOCR{}, store, &fakeUploader{})

	_, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, errs.CategoryDuplicateGlobal, errs.CategoryOf(err),
		"store-level constraint violation keeps its own category")
}

func TestSubmitStoreFailureMapsToNetwork(t *testing.T) {
	store := &fakeFlowStore{saveErr: errors.New("connection reset")}
	flow := newTestFlow(&fakeOCR{}, store, &fakeUploader{})

	_, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, errs.CategoryNetwork, errs.CategoryOf(err))
	assert.Equal(t, StateError, flow.State())
}

func TestSubmitRejectedWhileBusy(t *testing.T) {
	flow := newTestFlow(&fakeOCR{}, &fakeFlowStore{}, &fakeUploader{})
	_, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"}, nil)
	require.NoError(t, err)

	// flow is done; a second submit without Reset is illegal
	_, err = flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, errs.CategoryInternal, errs.CategoryOf(err))

	flow.Reset()
	_, err = flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-1"}, nil)
	assert.NoError(t, err)
}

func TestSubmitSameNumberOtherCompanySucceeds(t *testing.T) {
	store := &fakeFlowStore{existing: map[string]bool{"RS-2024/001|company-1": true}}
	flow := newTestFlow(&fakeOCR{}, store, &fakeUploader{})

	_, err := flow.Submit(context.Background(), goodReceipt(),
		models.SubmissionContext{CompanyID: "company-2"}, nil)
	require.NoError(t, err, "uniqueness scope is the company, not the bare number")
	require.Len(t, store.saved, 1)
}

func TestExtractWithoutReceiptNumber(t *testing.T) {
	payload := &models.RawOcrResult{
		Entities: map[string]models.Entity{
			"merchantName": {Value: "Migros", ConfidenceScore: 0.9},
			"totalAmount":  {Value: "54.30", ConfidenceScore: 0.9},
			"taxAmount":    {Value: "4.30", ConfidenceScore: 0.9},
		},
		Text:       "Migros\nTotal 54.30",
		Confidence: 0.8,
	}
	flow := newTestFlow(&fakeOCR{result: payload}, &fakeFlowStore{}, &fakeUploader{})

	receipt, _, err := flow.Extract(context.Background(), []byte("img"), ocr.InvokeOptions{}, "company-1")
	require.NoError(t, err)

	assert.Regexp(t, `^R-\d{8}-\d{4}$`, receipt.ReceiptNumber,
		"unextractable number gets the synthetic fallback")
	assert.True(t, receipt.ReceiptNumberGenerated)
	assert.Equal(t, "Migros", receipt.Merchant.Name)
	assert.True(t, receipt.Amounts.Total.Equal(decimal.RequireFromString("54.30")))

	require.Len(t, receipt.VatBreakdown, 1)
	assert.True(t, receipt.VatBreakdown[0].Rate.Equal(decimal.RequireFromString("8.6")),
		"4.30 on a 50.00 base is 8.6%%, got %s", receipt.VatBreakdown[0].Rate)
}

func TestEndToEndExtractThenSubmit(t *testing.T) {
	store := &fakeFlowStore{}
	uploader := &fakeUploader{path: "receipts/company-1/2024/01/ax.jpg"}
	flow := newTestFlow(&fakeOCR{result: goodPayload()}, store, uploader)

	receipt, dup, err := flow.Extract(context.Background(), []byte("img"), ocr.InvokeOptions{}, "company-1")
	require.NoError(t, err)
	require.False(t, dup.Exists)

	record, err := flow.Submit(context.Background(), receipt,
		models.SubmissionContext{CompanyID: "company-1", CreatedBy: "user-9", LanguageHint: "deu"},
		&UploadRequest{Blob: []byte("img"), Filename: "ax.jpg", CompanyID: "company-1"})
	require.NoError(t, err)

	assert.Equal(t, "RS-2024/001", record.ReceiptNumber)
	assert.Equal(t, "Migros", record.MerchantName)
	assert.True(t, record.TotalAmount.Equal(decimal.RequireFromString("54.30")))
	assert.Equal(t, "receipts/company-1/2024/01/ax.jpg", record.ReceiptImagePath)
	assert.Equal(t, StateDone, flow.State())
	require.Len(t, store.saved, 1)
}
