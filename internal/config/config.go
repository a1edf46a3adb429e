package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	SigningSecret     string
	EncryptionSecret  string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	RefreshCookieName string
	CSRFCookieName    string
	CookieSecure      bool
	AdminEmail        string
	AdminPassword     string
}

type PanelConfig struct {
	BaseURL      string
	ClientAPIKey string
	AppAPIKey    string
	Timeout      time.Duration
}

type RateLimitConfig struct {
	LoginPerMinute   int
	RefreshPerMinute int
}

type AppConfig struct {
	Environment      string
	Mode             string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Auth             AuthConfig
	Panel            PanelConfig
	RateLimit        RateLimitConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) DemoMode() bool {
	return c.Mode == "demo"
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("RAVIX")
	// Nested keys map to env names with underscores, so auth.signingsecret
	// reads RAVIX_AUTH_SIGNINGSECRET.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := applySecretPolicy(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applySecretPolicy enforces the mandatory-secrets rule: outside demo mode
// both token secrets must be present and must differ, so a leak of one key
// does not compromise the other layer. Demo mode substitutes fixed
// development-only values.
func applySecretPolicy(cfg *AppConfig) error {
	if cfg.DemoMode() {
		if cfg.Auth.SigningSecret == "" {
			cfg.Auth.SigningSecret = "demo_jwt_signing_secret"
		}
		if cfg.Auth.EncryptionSecret == "" {
			cfg.Auth.EncryptionSecret = "demo_jwt_encryption_secret"
		}
		return nil
	}

	if cfg.Auth.SigningSecret == "" {
		return fmt.Errorf("config: auth signing secret is required outside demo mode")
	}
	if cfg.Auth.EncryptionSecret == "" {
		return fmt.Errorf("config: auth encryption secret is required outside demo mode")
	}
	if cfg.Auth.SigningSecret == cfg.Auth.EncryptionSecret {
		return fmt.Errorf("config: signing and encryption secrets must not be equal")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("mode", "normal")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	// Secrets and credentials default to empty but must be registered here:
	// viper only unmarshals keys it knows about, and env-only keys are
	// unknown without a default.
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.signingsecret", "")
	v.SetDefault("auth.encryptionsecret", "")
	v.SetDefault("auth.accesstokenttl", "15m")
	v.SetDefault("auth.refreshtokenttl", "720h") // 30 days
	v.SetDefault("auth.refreshcookiename", "ravix_refresh")
	v.SetDefault("auth.csrfcookiename", "ravix_csrf")
	v.SetDefault("auth.cookiesecure", false)
	v.SetDefault("auth.adminemail", "admin@example.com")
	v.SetDefault("auth.adminpassword", "ChangeMe123!")

	v.SetDefault("panel.baseurl", "https://panel.example.com")
	v.SetDefault("panel.clientapikey", "")
	v.SetDefault("panel.appapikey", "")
	v.SetDefault("panel.timeout", "10s")

	v.SetDefault("ratelimit.loginperminute", 10)
	v.SetDefault("ratelimit.refreshperminute", 60)
}
