package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spesenwerk/receipt-ocr-service/api"
	"github.com/spesenwerk/receipt-ocr-service/internal/auth"
	"github.com/spesenwerk/receipt-ocr-service/internal/db"
	"github.com/spesenwerk/receipt-ocr-service/internal/models"
	"github.com/spesenwerk/receipt-ocr-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := auth.Init(); err != nil {
		logger.Fatal("failed to initialize auth", zap.Error(err))
	}

	if err := db.Init(logger); err != nil {
		logger.Warn("database not available, duplicate checks and persistence disabled", zap.Error(err))
	} else {
		defer db.Close()
	}

	if err := storage.Init(); err != nil {
		logger.Warn("object storage not available, receipt files will not be stored", zap.Error(err))
	}

	config, err := loadConfig("config.yaml")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	handler, err := api.NewHandler(config, logger)
	if err != nil {
		logger.Fatal("failed to create handler", zap.Error(err))
	}

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	// JWT middleware skips /health and /api/login
	protected := auth.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	logger.Info("starting receipt OCR service",
		zap.String("addr", addr),
		zap.String("provider", config.AI.DefaultProvider),
		zap.Bool("database", db.Pool != nil),
		zap.Bool("storage", storage.Client != nil))

	if err := http.ListenAndServe(addr, protected); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func loadConfig(path string) (*models.Config, error) {
	config := &models.Config{
		Port: 8080,
		Host: "0.0.0.0",
	}
	config.OCR.Language = "deu"
	config.OCR.LocationHint = "CH"
	config.Upload.MaxAttempts = 3

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment overrides
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.AI.Gemini.Model = model
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if lang := os.Getenv("OCR_LANGUAGE"); lang != "" {
		config.OCR.Language = lang
	}

	return config, nil
}
