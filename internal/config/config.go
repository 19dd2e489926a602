package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer  string   `mapstructure:"AUTH_ISSUER"`
	AuthSecret  string   `mapstructure:"AUTH_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Orchestration engine knobs.
	EligibilityFreshnessHours int `mapstructure:"ELIGIBILITY_FRESHNESS_HOURS"`
	PayerTimeoutSeconds       int `mapstructure:"PAYER_TIMEOUT_SECONDS"`
	PayerMaxAttempts          int `mapstructure:"PAYER_MAX_ATTEMPTS"`
	PAMaxInfoRequests         int `mapstructure:"PA_MAX_INFO_REQUESTS"`

	// FaxGatewayURL points at the outbound fax bridge used for payers that
	// only accept faxed prior auth submissions.
	FaxGatewayURL string `mapstructure:"FAX_GATEWAY_URL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ELIGIBILITY_FRESHNESS_HOURS", 24)
	v.SetDefault("PAYER_TIMEOUT_SECONDS", 30)
	v.SetDefault("PAYER_MAX_ATTEMPTS", 3)
	v.SetDefault("PA_MAX_INFO_REQUESTS", 2)
	v.SetDefault("FAX_GATEWAY_URL", "http://localhost:8441")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("ELIGIBILITY_FRESHNESS_HOURS")
	v.BindEnv("PAYER_TIMEOUT_SECONDS")
	v.BindEnv("PAYER_MAX_ATTEMPTS")
	v.BindEnv("PA_MAX_INFO_REQUESTS")
	v.BindEnv("FAX_GATEWAY_URL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EligibilityFreshness is the window within which a cached eligibility
// snapshot is served without re-querying the payer.
func (c *Config) EligibilityFreshness() time.Duration {
	return time.Duration(c.EligibilityFreshnessHours) * time.Hour
}

// PayerTimeout bounds a single payer connector call.
func (c *Config) PayerTimeout() time.Duration {
	return time.Duration(c.PayerTimeoutSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// an auth secret or issuer must be present so real JWT authentication is
// enforced, and the engine knobs must be positive.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSecret == "" && c.AuthIssuer == "" {
		return fmt.Errorf(
			"AUTH_SECRET or AUTH_ISSUER must be set when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.EligibilityFreshnessHours <= 0 {
		return fmt.Errorf("ELIGIBILITY_FRESHNESS_HOURS must be positive, got %d", c.EligibilityFreshnessHours)
	}
	if c.PayerTimeoutSeconds <= 0 {
		return fmt.Errorf("PAYER_TIMEOUT_SECONDS must be positive, got %d", c.PayerTimeoutSeconds)
	}
	if c.PayerMaxAttempts <= 0 {
		return fmt.Errorf("PAYER_MAX_ATTEMPTS must be positive, got %d", c.PayerMaxAttempts)
	}
	if c.PAMaxInfoRequests < 0 {
		return fmt.Errorf("PA_MAX_INFO_REQUESTS must not be negative, got %d", c.PAMaxInfoRequests)
	}
	return nil
}
