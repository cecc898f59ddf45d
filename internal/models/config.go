package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// OCR config
	OCR OCRConfig `yaml:"ocr"`

	// AI config
	AI AIConfig `yaml:"ai"`

	// Upload retry policy
	Upload UploadConfig `yaml:"upload"`
}

// OCRConfig represents OCR-specific configuration
type OCRConfig struct {
	Language     string `yaml:"language"`      // default "deu"
	LocationHint string `yaml:"location_hint"` // e.g. "CH"
}

// AIConfig represents vision extraction provider configuration
type AIConfig struct {
	// OpenAI (or any OpenAI-compatible endpoint)
	OpenAI OpenAIConfig `yaml:"openai"`

	// Gemini
	Gemini GeminiConfig `yaml:"gemini"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "openai" or "gemini"
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o-mini"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// UploadConfig controls the file-upload retry policy. OCR calls and duplicate
// queries are never retried automatically.
type UploadConfig struct {
	MaxAttempts int `yaml:"max_attempts"` // default 3
}
