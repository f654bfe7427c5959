package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port    string
	BaseURL string
	AppName string

	Database DatabaseConfig
	Storage  StorageConfig
	Mail     MailConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig selects and configures the asset backend
type StorageConfig struct {
	Backend   string // "local" or "minio"
	PublicDir string
	Minio     MinioConfig
}

// MinioConfig holds object-storage configuration
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// MailConfig holds SMTP configuration. An empty Host or User disables
// notifications entirely.
type MailConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	From      string
	Recipient string
}

// Enabled reports whether the mail transport is configured
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.User != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	port := getEnv("PORT", "3000")

	backend := getEnv("STORAGE_BACKEND", "local")
	if backend != "local" && backend != "minio" {
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (expected local or minio)", backend)
	}
	if backend == "minio" && os.Getenv("MINIO_ENDPOINT") == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_BACKEND=minio")
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	return &Config{
		Port:    port,
		BaseURL: getEnv("BASE_URL", "http://localhost:"+port),
		AppName: getEnv("APP_NAME", "Informes de Servicio"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "informes"),
		},
		Storage: StorageConfig{
			Backend:   backend,
			PublicDir: getEnv("PUBLIC_DIR", "./public"),
			Minio: MinioConfig{
				Endpoint:  os.Getenv("MINIO_ENDPOINT"),
				AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
				SecretKey: os.Getenv("MINIO_SECRET_KEY"),
				Bucket:    getEnv("MINIO_BUCKET", "informes"),
				UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
				PublicURL: os.Getenv("MINIO_PUBLIC_URL"),
			},
		},
		Mail: MailConfig{
			Host:      os.Getenv("SMTP_HOST"),
			Port:      smtpPort,
			User:      os.Getenv("SMTP_USER"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			From:      getEnv("SMTP_FROM", os.Getenv("SMTP_USER")),
			Recipient: os.Getenv("NOTIFY_EMAIL"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
