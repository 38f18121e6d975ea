package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port               int    `env:"PORT" envDefault:"8080"`
	MetricsPort        int    `env:"METRICS_PORT" envDefault:"9090"`
	AppEnv             string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL        string `env:"DATABASE_URL,required"`
	RedisURL           string `env:"REDIS_URL,required"`
	AdminPasswordHash  string `env:"ADMIN_PASSWORD_HASH"`
	AdminSessionSecret string `env:"ADMIN_SESSION_SECRET"`
	EncryptionKey      string `env:"ENCRYPTION_KEY"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	PublicBaseURL      string `env:"PUBLIC_BASE_URL" envDefault:""`
	StaticDir          string `env:"STATIC_DIR"`

	Storage  StorageConfig
	Email    EmailConfig
	WhatsApp WhatsAppConfig
}

// StorageConfig selects the document vault backend.
type StorageConfig struct {
	Backend   string `env:"STORAGE_BACKEND" envDefault:"local"`
	LocalPath string `env:"STORAGE_LOCAL_PATH" envDefault:"./data/documents"`
	S3        S3StorageConfig
	GCS       GCSStorageConfig
	Azure     AzureStorageConfig
}

type S3StorageConfig struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" envDefault:"eu-west-3"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
}

type GCSStorageConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
	Endpoint        string `env:"GCS_ENDPOINT"`
}

type AzureStorageConfig struct {
	AccountName   string `env:"AZURE_ACCOUNT_NAME"`
	AccountKey    string `env:"AZURE_ACCOUNT_KEY"`
	ContainerName string `env:"AZURE_CONTAINER" envDefault:"documents"`
}

// EmailConfig configures the outbound email channel.
type EmailConfig struct {
	Provider     string `env:"EMAIL_PROVIDER" envDefault:"none"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
	SenderEmail  string `env:"SENDER_EMAIL"`
	SenderName   string `env:"SENDER_NAME" envDefault:"Songon Extension"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

type WhatsAppConfig struct {
	ContactNumber string `env:"WHATSAPP_CONTACT_NUMBER"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) MetricsAddr() string {
	return fmt.Sprintf(":%d", c.MetricsPort)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) Validate(isProduction bool) error {
	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	switch c.Storage.Backend {
	case "local", "s3", "gcs", "azure":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of local, s3, gcs, azure (got %q)", c.Storage.Backend)
	}

	switch c.Email.Provider {
	case "none":
	case "resend":
		if c.Email.ResendAPIKey == "" || c.Email.SenderEmail == "" {
			return fmt.Errorf("EMAIL_PROVIDER=resend requires RESEND_API_KEY and SENDER_EMAIL")
		}
	case "smtp":
		if c.Email.SMTPHost == "" || c.Email.SenderEmail == "" {
			return fmt.Errorf("EMAIL_PROVIDER=smtp requires SMTP_HOST and SENDER_EMAIL")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of none, resend, smtp (got %q)", c.Email.Provider)
	}

	if isProduction {
		if err := validateSecret("ADMIN_SESSION_SECRET", c.AdminSessionSecret); err != nil {
			return err
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: surveillance stream URLs will not be encrypted at rest")
		}
		if c.Email.Provider == "none" {
			log.Warn().Msg("EMAIL_PROVIDER is none in production: document emails are disabled")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads an optional .env file, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
