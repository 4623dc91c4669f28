package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Auth      AuthConfig
	Storage   StorageConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
	LogLevel  string
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// MongoDBConfig holds settings for MongoDB. An empty URI selects the in-memory store.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// AuthConfig holds CSRF signing settings and the optional staff account created at boot.
type AuthConfig struct {
	CSRFSecret    string
	CSRFTTL       time.Duration
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// BootstrapAdmin reports whether a staff account should be ensured at startup.
func (a AuthConfig) BootstrapAdmin() bool {
	return a.AdminUsername != "" && a.AdminPassword != ""
}

// StorageConfig selects where uploaded product and batch images go.
// S3 is used when Bucket is set, the local media dir otherwise.
type StorageConfig struct {
	MediaDir      string
	PublicBaseURL string

	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	CloudFrontURL   string
}

// S3Enabled reports whether uploads go to S3.
func (s StorageConfig) S3Enabled() bool {
	return s.Bucket != ""
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API used for ops notices.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	OpsRecipient  string
}

// Enabled reports whether ops notices can be sent.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != "" && w.PhoneNumberID != "" && w.OpsRecipient != ""
}

// SheetsConfig contains configuration for the order status ledger.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	LedgerRange     string
}

// Enabled reports whether the ledger is configured.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule        string
	ExpirySweepSchedule string
	Timezone            string
	LowStockThreshold   int
	ExpiryWindowDays    int
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the environment.
		_ = godotenv.Load()
	}

	csrfTTL, err := time.ParseDuration(getenvWithDefault("CSRF_TTL", "2h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CSRF_TTL: %w", err)
	}
	lowStock, err := strconv.Atoi(getenvWithDefault("LOW_STOCK_THRESHOLD", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOW_STOCK_THRESHOLD: %w", err)
	}
	expiryWindow, err := strconv.Atoi(getenvWithDefault("EXPIRY_WINDOW_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXPIRY_WINDOW_DAYS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getenvWithDefault("APP_PORT", "8000"),
			AllowedOrigins: splitList(getenvWithDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "vaccines"),
		},
		Auth: AuthConfig{
			CSRFSecret:    os.Getenv("CSRF_SECRET"),
			CSRFTTL:       csrfTTL,
			AdminUsername: os.Getenv("ADMIN_USERNAME"),
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Storage: StorageConfig{
			MediaDir:        getenvWithDefault("MEDIA_DIR", "media"),
			PublicBaseURL:   getenvWithDefault("MEDIA_URL", "/media"),
			Bucket:          os.Getenv("AWS_S3_BUCKET"),
			Region:          getenvWithDefault("AWS_REGION", "eu-west-1"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			CloudFrontURL:   os.Getenv("AWS_CLOUDFRONT_URL"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			OpsRecipient:  os.Getenv("WHATSAPP_OPS_RECIPIENT"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_LEDGER_ID"),
			LedgerRange:     getenvWithDefault("GOOGLE_SHEET_LEDGER_RANGE", "Orders!A:F"),
		},
		Reporting: ReportingConfig{
			CronSchedule:        getenvWithDefault("REPORT_CRON_SCHEDULE", "0 7 * * *"),
			ExpirySweepSchedule: getenvWithDefault("EXPIRY_SWEEP_SCHEDULE", "5 0 * * *"),
			Timezone:            getenvWithDefault("TIMEZONE", "UTC"),
			LowStockThreshold:   lowStock,
			ExpiryWindowDays:    expiryWindow,
		},
		LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Auth.CSRFSecret == "" {
		return errors.New("CSRF_SECRET must be provided")
	}
	if c.Auth.CSRFTTL <= 0 {
		return errors.New("CSRF_TTL must be positive")
	}

	if c.Auth.AdminUsername != "" && c.Auth.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD must be provided with ADMIN_USERNAME")
	}

	if c.MongoDB.URI != "" && c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided with MONGODB_URI")
	}

	if c.Storage.S3Enabled() && c.Storage.Region == "" {
		return errors.New("AWS_REGION must be provided with AWS_S3_BUCKET")
	}
	if !c.Storage.S3Enabled() && c.Storage.MediaDir == "" {
		return errors.New("MEDIA_DIR must not be empty")
	}

	if c.WhatsApp.AccessToken != "" {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided with WHATSAPP_TOKEN")
		case c.WhatsApp.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case c.WhatsApp.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided with GOOGLE_SHEET_LEDGER_ID")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}
	if c.Reporting.ExpirySweepSchedule == "" {
		return errors.New("EXPIRY_SWEEP_SCHEDULE must be provided")
	}
	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if c.Reporting.LowStockThreshold < 0 || c.Reporting.ExpiryWindowDays < 0 {
		return errors.New("reporting thresholds must not be negative")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
