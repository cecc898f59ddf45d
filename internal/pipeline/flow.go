package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spesenwerk/receipt-ocr-service/internal/errs"
	"github.com/spesenwerk/receipt-ocr-service/internal/extract"
	"github.com/spesenwerk/receipt-ocr-service/internal/models"
	"github.com/spesenwerk/receipt-ocr-service/internal/ocr"
	"github.com/spesenwerk/receipt-ocr-service/internal/services"
)

// ErrStale marks a result that arrived for a generation the user has already
// cleared; the caller discards it without touching form state.
var ErrStale = errors.New("stale pipeline result")

// Store is the record-store surface the flow needs.
type Store interface {
	services.ReceiptNumberStore
	SaveReceipt(ctx context.Context, record *models.PersistedReceipt) error
}

// UploadRequest carries one receipt file plus the metadata the object store
// wants attached.
type UploadRequest struct {
	Blob        []byte
	Filename    string
	ContentType string
	CompanyID   string
	UploaderID  string
	// Context is serialized into the object's business-context metadata.
	Context map[string]string
}

// Uploader stores the receipt file and returns its object path.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// Flow drives one receipt submission through its stages. Each in-progress
// form owns exactly one Flow; there is no shared mutable state between
// concurrent submissions, and the record store's write-time constraint is the
// final arbiter under concurrency.
type Flow struct {
	ocrClient  ocr.Client
	store      Store
	uploader   Uploader
	extractor  *extract.FieldExtractor
	normalizer *services.Normalizer
	checker    *services.DuplicateChecker
	assembler  *services.Assembler
	logger     *zap.Logger

	maxUploadAttempts int
	sleep             func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state State
	gen   uint64
}

// NewFlow wires a submission flow. maxUploadAttempts <= 0 defaults to 3.
func NewFlow(ocrClient ocr.Client, store Store, uploader Uploader, maxUploadAttempts int, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadAttempts <= 0 {
		maxUploadAttempts = 3
	}
	return &Flow{
		ocrClient:         ocrClient,
		store:             store,
		uploader:          uploader,
		extractor:         extract.NewFieldExtractor(),
		normalizer:        services.NewNormalizer(),
		checker:           services.NewDuplicateChecker(store, logger),
		assembler:         services.NewAssembler(),
		logger:            logger,
		maxUploadAttempts: maxUploadAttempts,
		sleep:             sleepCtx,
		state:             StateIdle,
	}
}

// State returns the flow's current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Generation returns the current request generation.
func (f *Flow) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

// Reset clears the flow back to idle and bumps the generation so any
// in-flight call completes into the void instead of overwriting cleared form
// state.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateIdle
	f.gen++
}

func (f *Flow) transition(to State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !canTransition(f.state, to) {
		return fmt.Errorf("illegal transition %s -> %s", f.state, to)
	}
	f.state = to
	return nil
}

// Extract runs OCR ingestion, the field cascade and normalization, plus the
// early advisory duplicate check. The OCR call is never auto-retried; a
// failure surfaces with a retry affordance in the UI instead.
func (f *Flow) Extract(ctx context.Context, blob []byte, opts ocr.InvokeOptions, companyID string) (*models.NormalizedReceipt, models.DuplicateCheckResult, error) {
	if err := f.transition(StateExtracting); err != nil {
		return nil, models.DuplicateCheckResult{}, errs.New(errs.CategoryInternal, "submission already in progress", err)
	}
	gen := f.Generation()

	raw, err := f.ocrClient.Invoke(ctx, blob, opts)
	if err != nil {
		f.fail()
		return nil, models.DuplicateCheckResult{}, errs.New(errs.CategoryExtraction,
			"could not read the receipt, please fill the fields manually", err)
	}

	// A clear during the OCR round-trip bumped the generation; the late
	// response must not repopulate the form.
	if f.Generation() != gen {
		return nil, models.DuplicateCheckResult{}, ErrStale
	}

	receipt := f.extractor.Extract(raw)
	f.normalizer.Normalize(receipt, raw)

	dup := f.checker.CheckExists(ctx, receipt.ReceiptNumber, companyID)

	if err := f.transition(StateIdle); err != nil {
		return nil, models.DuplicateCheckResult{}, ErrStale
	}
	return receipt, dup, nil
}

// Submit validates, blocks on a per-company duplicate, uploads the attachment
// (hard dependency: the insert only happens after a successful upload) and
// writes the record. Stage errors come back categorized; no partial record is
// ever written.
func (f *Flow) Submit(ctx context.Context, receipt *models.NormalizedReceipt, sctx models.SubmissionContext, upload *UploadRequest) (*models.PersistedReceipt, error) {
	if err := f.transition(StateValidating); err != nil {
		return nil, errs.New(errs.CategoryInternal, "submission already in progress", err)
	}

	// Same company-scoped check as the advisory call after extraction; this
	// one blocks.
	if dup := f.checker.CheckExists(ctx, receipt.ReceiptNumber, sctx.CompanyID); dup.Exists {
		f.fail()
		return nil, errs.NewField(errs.CategoryDuplicate, "receiptNumber",
			"this receipt number is already used in this company, please change it")
	}

	if upload != nil {
		if err := f.transition(StateUploading); err != nil {
			f.fail()
			return nil, errs.New(errs.CategoryInternal, "illegal submission state", err)
		}
		path, err := f.uploadWithRetry(ctx, *upload)
		if err != nil {
			f.fail()
			return nil, err
		}
		sctx.FilePath = path
	}

	if err := f.transition(StateSubmitting); err != nil {
		f.fail()
		return nil, errs.New(errs.CategoryInternal, "illegal submission state", err)
	}

	record, err := f.assembler.Assemble(receipt, sctx)
	if err != nil {
		f.fail()
		return nil, err
	}

	if err := f.store.SaveReceipt(ctx, record); err != nil {
		f.fail()
		if errs.CategoryOf(err) == errs.CategoryDuplicateGlobal {
			return nil, err
		}
		return nil, errs.New(errs.CategoryNetwork, "could not save the receipt, please try again", err)
	}

	if err := f.transition(StateDone); err != nil {
		return nil, errs.New(errs.CategoryInternal, "illegal submission state", err)
	}
	f.logger.Info("receipt submitted",
		zap.String("receipt_number", record.ReceiptNumber),
		zap.String("company_id", record.CompanyID))
	return record, nil
}

// uploadWithRetry tries the object-store call up to maxUploadAttempts times
// with 2^attempt-seconds backoff. Upload failure after the last attempt
// aborts the whole submission.
func (f *Flow) uploadWithRetry(ctx context.Context, req UploadRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxUploadAttempts; attempt++ {
		path, err := f.uploader.Upload(ctx, req)
		if err == nil {
			return path, nil
		}
		lastErr = err
		f.logger.Warn("receipt upload failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < f.maxUploadAttempts {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if err := f.sleep(ctx, backoff); err != nil {
				return "", errs.New(errs.CategoryUpload, "upload cancelled", err)
			}
		}
	}
	return "", errs.New(errs.CategoryUpload,
		"could not store the receipt file, the submission was not saved", lastErr)
}

func (f *Flow) fail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateError
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
