package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort  string
	MaxFileSize int64
	AppVersion  string

	OCREngine         string
	TesseractDataPath string
	TesseractLanguage string
	PaddleAPIURL      string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	DBPath string

	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string
	R2PublicBaseURL   string

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// InMemoryDB is the DB_PATH value that selects the in-memory repository.
const InMemoryDB = ":memory:"

func LoadConfig() *Config {
	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		MaxFileSize: int64(getFloat("MAX_UPLOAD_MB", 10) * 1024 * 1024),
		AppVersion:  getEnv("APP_VERSION", "0.4.0"),

		OCREngine:         strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
		TesseractDataPath: getEnv("TESSDATA_PREFIX", "/usr/share/tesseract-ocr/5/tessdata/"),
		TesseractLanguage: getEnv("TESSERACT_LANG", "eng"),
		PaddleAPIURL:      getEnv("PADDLEOCR_API_URL", "http://paddleocr:8866/predict/ocr_system"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTimeout: time.Duration(getFloat("GEMINI_TIMEOUT_SEC", 12) * float64(time.Second)),

		DBPath: getEnv("DB_PATH", "slice.db"),

		R2Endpoint:        os.Getenv("R2_ENDPOINT"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2Bucket:          os.Getenv("R2_BUCKET"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// SecondaryEnabled reports whether a Gemini key is configured.
func (c *Config) SecondaryEnabled() bool {
	return c.GeminiAPIKey != ""
}

// ArchiveEnabled reports whether receipt images are archived to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
