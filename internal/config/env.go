package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	FrontendURL   string
	LogLevel      string
	ServerTimeout time.Duration

	// client side
	ExtractAPIURL  string
	ExtractTimeout time.Duration
	APIToken       string

	MaxFileSizeMB int
	OCRDPI        int
	OCRLanguage   string
	OCRWorkers    int
	OCRMaxPages   int
	PdftoppmPath  string
	TessdataDir   string

	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	JWTSecret    string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "5000"),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ServerTimeout: getEnvDuration("SERVER_TIMEOUT", 5*time.Minute),

		ExtractAPIURL:  getEnv("EXTRACT_API_URL", "http://127.0.0.1:5000"),
		ExtractTimeout: getEnvDuration("EXTRACT_TIMEOUT", 5*time.Minute),
		APIToken:       getEnv("API_TOKEN", ""),

		MaxFileSizeMB: getEnvInt("MAX_FILE_SIZE_MB", 10),
		OCRDPI:        getEnvInt("OCR_DPI", 200),
		OCRLanguage:   getEnv("OCR_LANGUAGE", "eng"),
		OCRWorkers:    getEnvInt("OCR_WORKERS", 2),
		OCRMaxPages:   getEnvInt("OCR_MAX_PAGES", 0),
		PdftoppmPath:  getEnv("PDFTOPPM_PATH", "pdftoppm"),
		TessdataDir:   getEnv("TESSDATA_PREFIX", ""),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
	}
}

// MaxFileSize is MaxFileSizeMB in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// ArchiveEnabled reports whether uploads should be copied to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.BucketName != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// AuditEnabled reports whether extractions are recorded in Postgres.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
