package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spesenwerk/receipt-ocr-service/internal/ai"
	"github.com/spesenwerk/receipt-ocr-service/internal/auth"
	"github.com/spesenwerk/receipt-ocr-service/internal/db"
	"github.com/spesenwerk/receipt-ocr-service/internal/errs"
	"github.com/spesenwerk/receipt-ocr-service/internal/models"
	"github.com/spesenwerk/receipt-ocr-service/internal/ocr"
	"github.com/spesenwerk/receipt-ocr-service/internal/pipeline"
	"github.com/spesenwerk/receipt-ocr-service/internal/services"
	"github.com/spesenwerk/receipt-ocr-service/internal/storage"
)

const maxUploadSize = 10 << 20 // 10 MB

// Handler wires the HTTP surface to the submission pipeline.
type Handler struct {
	config    *models.Config
	logger    *zap.Logger
	ocrClient ocr.Client
	store     db.Store
	uploader  pipeline.Uploader
	startTime time.Time
}

// NewHandler builds the handler with the configured vision provider.
func NewHandler(config *models.Config, logger *zap.Logger) (*Handler, error) {
	provider, err := createProvider(config)
	if err != nil {
		return nil, err
	}
	logger.Info("vision provider initialized", zap.String("provider", provider.Name()))

	return &Handler{
		config:    config,
		logger:    logger,
		ocrClient: ai.NewExtractor(provider),
		store:     db.Store{},
		uploader:  storage.Uploader{},
		startTime: time.Now(),
	}, nil
}

func createProvider(config *models.Config) (ai.Provider, error) {
	switch config.AI.DefaultProvider {
	case "openai", "":
		if config.AI.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai api key is not configured")
		}
		return ai.NewOpenAIProvider(config.AI.OpenAI.APIKey, config.AI.OpenAI.BaseURL, config.AI.OpenAI.Model), nil
	case "gemini":
		if config.AI.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini api key is not configured")
		}
		return ai.NewGeminiProvider(config.AI.Gemini.APIKey, config.AI.Gemini.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.AI.DefaultProvider)
	}
}

// RegisterRoutes wires all routes onto the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/api/login", h.Login).Methods("POST")
	r.HandleFunc("/api/receipts/process", h.ProcessReceipt).Methods("POST")
	r.HandleFunc("/api/receipts/check-number", h.CheckReceiptNumber).Methods("GET")
	r.HandleFunc("/api/receipts", h.ListReceipts).Methods("GET")
	r.HandleFunc("/api/receipts/{id}", h.GetReceipt).Methods("GET")
	r.HandleFunc("/api/receipts/{id}", h.DeleteReceipt).Methods("DELETE")
	r.HandleFunc("/api/stats", h.GetStats).Methods("GET")
}

// Login authenticates a user and returns a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	resp, err := auth.Login(r.Context(), req)
	if err != nil {
		h.logger.Warn("login failed", zap.String("email", req.Email))
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// ProcessReceipt runs one uploaded file through the whole pipeline: OCR
// extraction, normalization, duplicate checks, object upload and insert. On a
// post-extraction failure the extracted receipt still comes back so the user
// can correct and resubmit.
func (h *Handler) ProcessReceipt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "file too large or invalid multipart form (max 10MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(blob)
	}

	language := r.FormValue("language")
	if language == "" {
		language = h.config.OCR.Language
	}

	flow := pipeline.NewFlow(h.ocrClient, h.store, h.uploader, h.config.Upload.MaxAttempts, h.logger)

	ocrStart := time.Now()
	receipt, dup, err := flow.Extract(r.Context(), blob, ocr.InvokeOptions{
		Language:     language,
		LocationHint: h.config.OCR.LocationHint,
		Filename:     header.Filename,
	}, claims.CompanyID)
	ocrDuration := time.Since(ocrStart).Seconds()

	if err != nil {
		h.logger.Error("extraction failed", zap.Error(err))
		respondJSON(w, statusForCategory(errs.CategoryOf(err)), models.ProcessResponse{
			Success:       false,
			Error:         errs.UserMessage(err),
			ErrorType:     string(errs.CategoryOf(err)),
			OCRDuration:   ocrDuration,
			TotalDuration: time.Since(start).Seconds(),
		})
		return
	}

	sctx := models.SubmissionContext{
		CompanyID:    claims.CompanyID,
		EmployeeID:   r.FormValue("employee_id"),
		CreatedBy:    claims.UserID,
		LanguageHint: language,
	}

	filename := uuid.New().String() + storage.GetFileExtension(contentType)
	upload := &pipeline.UploadRequest{
		Blob:        blob,
		Filename:    filename,
		ContentType: contentType,
		CompanyID:   claims.CompanyID,
		UploaderID:  claims.UserID,
		Context: map[string]string{
			"original_filename": header.Filename,
			"employee_id":       sctx.EmployeeID,
		},
	}

	record, err := flow.Submit(r.Context(), receipt, sctx, upload)
	if err != nil {
		category := errs.CategoryOf(err)
		h.logger.Warn("submission failed",
			zap.String("category", string(category)),
			zap.String("company_id", claims.CompanyID),
			zap.Error(err))
		respondJSON(w, statusForCategory(category), models.ProcessResponse{
			Success:       false,
			Receipt:       receipt,
			Error:         errs.UserMessage(err),
			ErrorType:     string(category),
			Duplicate:     dup.Exists,
			OCRDuration:   ocrDuration,
			TotalDuration: time.Since(start).Seconds(),
		})
		return
	}

	respondJSON(w, http.StatusOK, models.ProcessResponse{
		Success:       true,
		Receipt:       receipt,
		ReceiptID:     record.ID.String(),
		Duplicate:     dup.Exists,
		OCRDuration:   ocrDuration,
		TotalDuration: time.Since(start).Seconds(),
	})
}

// CheckReceiptNumber runs the advisory company-scoped duplicate check.
func (h *Handler) CheckReceiptNumber(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	number := r.URL.Query().Get("number")
	if number == "" {
		respondError(w, http.StatusBadRequest, "number query parameter is required")
		return
	}

	checker := services.NewDuplicateChecker(h.store, h.logger)
	result := checker.CheckExists(r.Context(), number, claims.CompanyID)
	respondJSON(w, http.StatusOK, result)
}

// ListReceipts returns the newest receipts of the caller's company.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	receipts, err := db.GetReceipts(r.Context(), claims.CompanyID, limit)
	if err != nil {
		h.logger.Error("failed to list receipts", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list receipts")
		return
	}
	if receipts == nil {
		receipts = []db.ReceiptRow{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
	})
}

// GetReceipt returns a single receipt with a presigned URL for its stored
// file when one exists.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	receiptID := mux.Vars(r)["id"]
	receipt, err := db.GetReceiptByID(r.Context(), claims.CompanyID, receiptID)
	if err != nil {
		if err == pgx.ErrNoRows {
			respondError(w, http.StatusNotFound, "receipt not found")
			return
		}
		h.logger.Error("failed to load receipt", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load receipt")
		return
	}

	resp := map[string]interface{}{"receipt": receipt}
	if receipt.ReceiptImagePath != "" {
		if url, err := storage.GetPresignedURL(r.Context(), receipt.ReceiptImagePath); err == nil {
			resp["image_url"] = url
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// DeleteReceipt removes the record and best-effort deletes its stored file.
func (h *Handler) DeleteReceipt(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	receiptID := mux.Vars(r)["id"]
	receipt, err := db.GetReceiptByID(r.Context(), claims.CompanyID, receiptID)
	if err != nil {
		if err == pgx.ErrNoRows {
			respondError(w, http.StatusNotFound, "receipt not found")
			return
		}
		h.logger.Error("failed to load receipt", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete receipt")
		return
	}

	if err := db.DeleteReceipt(r.Context(), claims.CompanyID, receiptID); err != nil {
		h.logger.Error("failed to delete receipt", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete receipt")
		return
	}

	if receipt.ReceiptImagePath != "" {
		if err := storage.DeleteFile(r.Context(), receipt.ReceiptImagePath); err != nil {
			h.logger.Warn("failed to delete stored file",
				zap.String("path", receipt.ReceiptImagePath),
				zap.Error(err))
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetStats returns current-month statistics for the caller's company.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	stats, err := db.GetMonthlyStats(r.Context(), claims.CompanyID)
	if err != nil {
		h.logger.Error("failed to load stats", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Health reports service and dependency status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "ok"
	if db.Pool == nil {
		dbStatus = "not initialized"
	} else if err := db.Pool.Ping(ctx); err != nil {
		dbStatus = "unreachable"
	}

	storageStatus := "ok"
	if storage.Client == nil {
		storageStatus = "not initialized"
	} else if _, err := storage.Client.BucketExists(ctx, storage.BucketName); err != nil {
		storageStatus = "unreachable"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := http.StatusOK
	overall := "ok"
	if dbStatus != "ok" || storageStatus != "ok" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	respondJSON(w, status, map[string]interface{}{
		"status":         overall,
		"database":       dbStatus,
		"storage":        storageStatus,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"memory_mb":      mem.Alloc / 1024 / 1024,
		"goroutines":     runtime.NumGoroutine(),
	})
}

func statusForCategory(c errs.Category) int {
	switch c {
	case errs.CategoryValidation:
		return http.StatusBadRequest
	case errs.CategoryDuplicate, errs.CategoryDuplicateGlobal:
		return http.StatusConflict
	case errs.CategoryExtraction:
		return http.StatusUnprocessableEntity
	case errs.CategoryUpload:
		return http.StatusBadGateway
	case errs.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
