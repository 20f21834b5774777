package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	envparse "github.com/caarlos0/env/v11"

	"github.com/cryptogate/cryptogate/internal/pkg/env"
)

// Mail drivers.
const (
	MailDriverSMTP     = "smtp"
	MailDriverPostmark = "postmark"
	MailDriverDisabled = "disabled"
)

type Config struct {
	AppEnv       string `env:"APP_ENV" envDefault:"prod"`
	AppHost      string `env:"APP_HOST" envDefault:"localhost"`
	AppPort      string `env:"APP_PORT" envDefault:"4000"`
	PublicDomain string `env:"PUBLIC_DOMAIN" envDefault:"http://localhost:4000"`

	Database DatabaseConfig
	Cache    CacheConfig
	Mail     MailConfig
	Alerts   AlertsConfig
	Admin    AdminConfig
	Webhook  WebhookConfig
	Archive  ArchiveConfig
	Jobs     JobsConfig
}

type DatabaseConfig struct {
	Host       string        `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port       string        `env:"DB_PORT" envDefault:"3306"`
	User       string        `env:"DB_USER"`
	Password   string        `env:"DB_PASSWORD"`
	Name       string        `env:"DB_NAME" envDefault:"cryptogate"`
	MaxRetries int           `env:"DB_MAX_RETRIES" envDefault:"5"`
	RetryDelay time.Duration `env:"DB_RETRY_DELAY" envDefault:"5s"`
}

// DSN returns the MySQL data source name.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MigrateURL returns the golang-migrate database URL.
func (c DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type CacheConfig struct {
	Host     string `env:"CACHE_HOST" envDefault:"localhost"`
	Port     string `env:"CACHE_PORT" envDefault:"6379"`
	Password string `env:"CACHE_PASSWORD"`
	DB       int    `env:"CACHE_DB" envDefault:"0"`
}

// Addr returns host:port.
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type MailConfig struct {
	Driver                string `env:"MAIL_DRIVER" envDefault:"smtp"`
	From                  string `env:"MAIL_FROM" envDefault:"no-reply@localhost"`
	SMTPHost              string `env:"SMTP_HOST"`
	SMTPPort              string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername          string `env:"SMTP_USERNAME"`
	SMTPPassword          string `env:"SMTP_PASSWORD"`
	PostmarkServerToken   string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken  string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkMessageStream string `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
}

type AlertsConfig struct {
	// Enabled=false keeps alert bookkeeping but skips delivery.
	Enabled      bool   `env:"USAGE_ALERTS_ENABLED" envDefault:"true"`
	AdminEmail   string `env:"USAGE_ALERTS_ADMIN_EMAIL"`
	DashboardURL string `env:"USAGE_ALERTS_DASHBOARD_URL"`
}

type AdminConfig struct {
	User         string `env:"ADMIN_USER" envDefault:"admin"`
	PasswordHash string `env:"ADMIN_PASSWORD_HASH"`
}

type WebhookConfig struct {
	Secret     string        `env:"PAYMENT_WEBHOOK_SECRET"`
	RateLimit  int           `env:"WEBHOOK_RATE_LIMIT" envDefault:"120"`
	RateWindow time.Duration `env:"WEBHOOK_RATE_WINDOW" envDefault:"1m"`
}

type ArchiveConfig struct {
	S3Enabled       bool   `env:"ARCHIVE_S3_ENABLED" envDefault:"false"`
	Bucket          string `env:"ARCHIVE_S3_BUCKET"`
	Region          string `env:"ARCHIVE_S3_REGION" envDefault:"eu-central-1"`
	Endpoint        string `env:"ARCHIVE_S3_ENDPOINT"`
	AccessKeyID     string `env:"ARCHIVE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"ARCHIVE_S3_SECRET_ACCESS_KEY"`
	Prefix          string `env:"ARCHIVE_S3_PREFIX" envDefault:"usage-snapshots"`
	UsePathStyle    bool   `env:"ARCHIVE_S3_USE_PATH_STYLE" envDefault:"false"`
}

type JobsConfig struct {
	LockTTL        time.Duration `env:"JOB_LOCK_TTL" envDefault:"30m"`
	AlertSchedule  string        `env:"CRON_ALERT_SCHEDULE" envDefault:"0 * * * *"`
	ResetSchedule  string        `env:"CRON_RESET_SCHEDULE" envDefault:"5 0 1 * *"`
	StatusSchedule string        `env:"CRON_STATUS_SCHEDULE" envDefault:"30 3 * * *"`
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.Mail.Driver {
	case MailDriverSMTP:
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp mail driver"))
		}
	case MailDriverPostmark:
		if c.Mail.PostmarkServerToken == "" {
			errs = append(errs, errors.New("POSTMARK_SERVER_TOKEN is required for the postmark mail driver"))
		}
	case MailDriverDisabled:
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_DRIVER %q", c.Mail.Driver))
	}
	if c.Archive.S3Enabled && c.Archive.Bucket == "" {
		errs = append(errs, errors.New("ARCHIVE_S3_BUCKET is required when ARCHIVE_S3_ENABLED is set"))
	}
	if c.Webhook.RateLimit <= 0 {
		errs = append(errs, errors.New("WEBHOOK_RATE_LIMIT must be positive"))
	}
	return errors.Join(errs...)
}

// Parse builds a Config from the given key/value environment.
func Parse(environment map[string]string) (Config, error) {
	var cfg Config
	if err := envparse.ParseWithOptions(&cfg, envparse.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Mail.Driver = strings.ToLower(strings.TrimSpace(cfg.Mail.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the .env file (if any) and parses the merged environment.
func Load() (Config, error) {
	if env.Env == nil {
		env.SetupEnvFile()
	}
	return Parse(env.Environment())
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
	return cfg
}
