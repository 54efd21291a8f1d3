package common

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	OCR       OCRConfig
	LLM       LLMConfig
	Reconcile ReconcileConfig
	Store     StoreConfig
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm      string // binary name or absolute path; if empty -> "pdftoppm"
	Languages     string // tesseract language set, e.g. "por" or "por+eng"
	DPI           int    // rasterization DPI for scanned PDF pages
	Workers       int    // bounded parallelism for per-page OCR; 0 = NumCPU
	MinConfidence float64
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	MaxChars    int // OCR text budget per request; longer text is prefix-cut
}

// ReconcileConfig holds the tolerance parameters of the reconciliation engine.
// The defaults are empirical; they are configuration, not invariants.
type ReconcileConfig struct {
	ItemTolerance  float64 // per-item tax-inclusive match tolerance
	TotalTolerance float64 // document-level footer-vs-computed tolerance
}

// StoreConfig holds the extraction-job store configuration
type StoreConfig struct {
	Path string // sqlite database file
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Languages:     getEnv("OCR_LANGS", "por"),
			DPI:           getEnvAsInt("OCR_DPI", 200),
			Workers:       getEnvAsInt("OCR_WORKERS", runtime.NumCPU()),
			MinConfidence: getEnvAsFloat64("OCR_MIN_CONFIDENCE", 0.35),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			MaxChars:    getEnvAsInt("LLM_MAX_CHARS", 120_000),
		},
		Reconcile: ReconcileConfig{
			ItemTolerance:  getEnvAsFloat64("RECONCILE_ITEM_TOLERANCE", 0.01),
			TotalTolerance: getEnvAsFloat64("RECONCILE_TOTAL_TOLERANCE", 0.5),
		},
		Store: StoreConfig{
			Path: getEnv("JOB_STORE_PATH", "./invoices.db"),
		},
	}
}

// Validate validates the loaded configuration. Run once at process start;
// per-request code trusts the values.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", nil)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", nil)
	}
	if c.OCR.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_WORKERS must be positive", nil)
	}
	if c.LLM.MaxChars <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_CHARS must be positive", nil)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
