package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

type Config struct {
	Port        string `env:"PORT,         default=8080"`
	Env         string `env:"ENV,          default=development"`
	LogLevel    string `env:"LOG_LEVEL,    default=info"`
	FrontendURL string `env:"FRONTEND_URL, default=http://localhost:8080"`

	// TrustedProxies lists the CIDR ranges allowed to report the client
	// address in X-Forwarded-For. Empty means the peer address is used.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	Mongo    MongoConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Lockout  LockoutConfig
	OTP      OTPConfig
	Password PasswordConfig
	SMTP     SMTPConfig
	Admin    AdminConfig
	Limits   RateLimitConfig
	Workers  WorkerConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=instastick"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"JWT_SECRET,             required"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET,     required"`
	AccessTTL     time.Duration `env:"JWT_EXPIRES_IN,         default=15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_EXPIRES_IN, default=168h"`
}

type CookieConfig struct {
	AccessTTL  time.Duration `env:"JWT_COOKIE_EXPIRES_IN,         default=24h"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_COOKIE_EXPIRES_IN, default=168h"`
}

type LockoutConfig struct {
	MaxAttempts int           `env:"MAX_LOGIN_ATTEMPTS, default=5"`
	Duration    time.Duration `env:"LOCK_TIME,          default=30m"`
}

type OTPConfig struct {
	TTL         time.Duration `env:"OTP_TTL,          default=5m"`
	MaxAttempts int           `env:"OTP_MAX_ATTEMPTS, default=5"`
	SignupTTL   time.Duration `env:"SIGNUP_TTL,       default=10m"`
}

type PasswordConfig struct {
	BcryptCost int           `env:"BCRYPT_COST,        default=12"`
	ResetTTL   time.Duration `env:"PASSWORD_RESET_TTL, default=10m"`
}

// SMTPConfig configures outgoing mail. An empty Host selects the log notifier.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,  default=465"`
	Username string `env:"EMAIL_USER"`
	Password string `env:"EMAIL_PASS"`
	From     string `env:"EMAIL_FROM"`
	Brand    string `env:"BRAND_NAME, default=InstaStick"`
}

type AdminConfig struct {
	Name     string `env:"ADMIN_NAME, default=Administrator"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// RateLimitConfig holds the per-IP fixed windows for each rule.
type RateLimitConfig struct {
	Enabled     bool          `env:"RATE_LIMIT_ENABLED, default=true"`
	APIMax      int           `env:"RATE_LIMIT_API_MAX,    default=100"`
	APIWindow   time.Duration `env:"RATE_LIMIT_API_WINDOW, default=15m"`
	AuthMax     int           `env:"RATE_LIMIT_AUTH_MAX,    default=5"`
	AuthWindow  time.Duration `env:"RATE_LIMIT_AUTH_WINDOW, default=15m"`
	OTPMax      int           `env:"RATE_LIMIT_OTP_MAX,    default=5"`
	OTPWindow   time.Duration `env:"RATE_LIMIT_OTP_WINDOW, default=1h"`
	EmailMax    int           `env:"RATE_LIMIT_EMAIL_MAX,    default=3"`
	EmailWindow time.Duration `env:"RATE_LIMIT_EMAIL_WINDOW, default=1h"`
}

type WorkerConfig struct {
	Notifications int `env:"NOTIFICATION_WORKERS, default=4"`
}

// IsProduction reports whether cookies must be Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuthPolicy converts the lockout/OTP/reset settings into the immutable policy
// passed to the services.
func (c *Config) AuthPolicy() domain.AuthPolicy {
	return domain.AuthPolicy{
		Lockout: domain.LockoutPolicy{
			MaxAttempts:  c.Lockout.MaxAttempts,
			LockDuration: c.Lockout.Duration,
		},
		OTP: domain.OTPPolicy{
			TTL:         c.OTP.TTL,
			MaxAttempts: c.OTP.MaxAttempts,
			SignupTTL:   c.OTP.SignupTTL,
		},
		PasswordResetTTL: c.Password.ResetTTL,
		ResetURLBase:     c.FrontendURL,
	}.WithDefaults()
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from an arbitrary lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
