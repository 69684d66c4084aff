package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                    string        `mapstructure:"ENV"`
	GatewayURL             string        `mapstructure:"GATEWAY_URL"`
	APIToken               string        `mapstructure:"API_TOKEN"`
	RequestTimeout         time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	GatewayRPS             float64       `mapstructure:"GATEWAY_RPS"`
	PageSize               int           `mapstructure:"PAGE_SIZE"`
	InventoryDebounce      time.Duration `mapstructure:"INVENTORY_SEARCH_DEBOUNCE"`
	MedRequestDebounce     time.Duration `mapstructure:"MEDREQUEST_SEARCH_DEBOUNCE"`
	VaccinationDebounce    time.Duration `mapstructure:"VACCINATION_SEARCH_DEBOUNCE"`
	MinJustificationLength int           `mapstructure:"MIN_JUSTIFICATION_LENGTH"`
	LowStockThreshold      int           `mapstructure:"LOW_STOCK_THRESHOLD"`
	ExpiryWarningDays      int           `mapstructure:"EXPIRY_WARNING_DAYS"`
	SandboxPort            string        `mapstructure:"SANDBOX_PORT"`
	SandboxSigningKey      string        `mapstructure:"SANDBOX_SIGNING_KEY"`
	SandboxSeed            bool          `mapstructure:"SANDBOX_SEED"`
	SandboxDatabaseURL     string        `mapstructure:"SANDBOX_DATABASE_URL"`
	DBMaxConns             int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins            []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"ENV", "GATEWAY_URL", "API_TOKEN", "REQUEST_TIMEOUT", "GATEWAY_RPS", "PAGE_SIZE",
	"INVENTORY_SEARCH_DEBOUNCE", "MEDREQUEST_SEARCH_DEBOUNCE", "VACCINATION_SEARCH_DEBOUNCE",
	"MIN_JUSTIFICATION_LENGTH", "LOW_STOCK_THRESHOLD", "EXPIRY_WARNING_DAYS",
	"SANDBOX_PORT", "SANDBOX_SIGNING_KEY", "SANDBOX_SEED", "SANDBOX_DATABASE_URL",
	"DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("GATEWAY_URL", "http://localhost:8000")
	v.SetDefault("REQUEST_TIMEOUT", 10*time.Second)
	v.SetDefault("GATEWAY_RPS", 20)
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("INVENTORY_SEARCH_DEBOUNCE", 500*time.Millisecond)
	v.SetDefault("MEDREQUEST_SEARCH_DEBOUNCE", 600*time.Millisecond)
	v.SetDefault("VACCINATION_SEARCH_DEBOUNCE", 750*time.Millisecond)
	v.SetDefault("MIN_JUSTIFICATION_LENGTH", 1)
	v.SetDefault("LOW_STOCK_THRESHOLD", 10)
	v.SetDefault("EXPIRY_WARNING_DAYS", 30)
	v.SetDefault("SANDBOX_PORT", "8000")
	v.SetDefault("SANDBOX_SEED", true)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the sandbox must enforce real tokens.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is usable. Outside development the
// sandbox needs a signing key so that bearer tokens are verified.
func (c *Config) Validate() error {
	u, err := url.Parse(c.GatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("GATEWAY_URL must be an absolute http(s) URL, got %q", c.GatewayURL)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 100, got %d", c.PageSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	for name, d := range map[string]time.Duration{
		"INVENTORY_SEARCH_DEBOUNCE":   c.InventoryDebounce,
		"MEDREQUEST_SEARCH_DEBOUNCE":  c.MedRequestDebounce,
		"VACCINATION_SEARCH_DEBOUNCE": c.VaccinationDebounce,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if c.MinJustificationLength < 1 {
		return fmt.Errorf("MIN_JUSTIFICATION_LENGTH must be at least 1, got %d", c.MinJustificationLength)
	}
	if c.LowStockThreshold < 0 || c.ExpiryWarningDays < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD and EXPIRY_WARNING_DAYS must not be negative")
	}
	if c.SandboxDatabaseURL != "" && (c.DBMinConns < 0 || c.DBMaxConns < 1 || c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("DB_MIN_CONNS and DB_MAX_CONNS must satisfy 0 <= min <= max, max >= 1, got %d and %d", c.DBMinConns, c.DBMaxConns)
	}
	if !c.IsDev() && c.SandboxSigningKey == "" {
		return fmt.Errorf("SANDBOX_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.SandboxSigningKey != "" && len(c.SandboxSigningKey) < 32 {
		return fmt.Errorf("SANDBOX_SIGNING_KEY must be at least 32 characters, got %d", len(c.SandboxSigningKey))
	}
	return nil
}

// ExpiryWarning returns EXPIRY_WARNING_DAYS as a duration.
func (c *Config) ExpiryWarning() time.Duration {
	return time.Duration(c.ExpiryWarningDays) * 24 * time.Hour
}
