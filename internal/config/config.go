package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	BaseURL   string
	Database  DatabaseConfig
	Odoo      OdooConfig
	TwoFactor TwoFactorConfig
	Log       LogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// OdooConfig holds the connection to the host ERP. An empty URL keeps all
// stock transitions local.
type OdooConfig struct {
	URL          string
	Database     string
	Username     string
	Password     string
	SyncInterval int // in minutes
}

// TwoFactorConfig holds settings for the OTP login step
type TwoFactorConfig struct {
	// Issuer used in provisioning URIs when the user has no company
	DefaultIssuer string
	// Lifetime of the token that carries a pending user id between the
	// password step and the OTP step
	PendingTTL time.Duration
	// Pixel size of generated QR images
	QRSize int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3210"),
		JWTSecret: jwtSecret,
		BaseURL:   getEnv("BASE_URL", "http://localhost:3210"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "merpwms"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Odoo: OdooConfig{
			URL:          os.Getenv("ODOO_URL"),
			Database:     os.Getenv("ODOO_DB"),
			Username:     os.Getenv("ODOO_USERNAME"),
			Password:     os.Getenv("ODOO_PASSWORD"),
			SyncInterval: getEnvInt("ODOO_SYNC_INTERVAL", 15),
		},
		TwoFactor: TwoFactorConfig{
			DefaultIssuer: getEnv("TWO_FACTOR_ISSUER", "merpwms"),
			PendingTTL:    time.Duration(getEnvInt("TWO_FACTOR_PENDING_MINUTES", 10)) * time.Minute,
			QRSize:        getEnvInt("TWO_FACTOR_QR_SIZE", 256),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// IsProduction reports whether the node runs in production mode
func (c *Config) IsProduction() bool {
	return c.NodeEnv == "production"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
