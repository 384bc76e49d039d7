package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"renthaus/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Firebase   FirebaseConfig   `yaml:"firebase"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Orders     OrdersConfig     `yaml:"orders"`
	Paystack   PaystackConfig   `yaml:"paystack"`
	Outbox     OutboxConfig     `yaml:"outbox"`
	Email      EmailConfig      `yaml:"email"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	PublicURL   string `yaml:"public_url"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	// Provider is "firebase" or "jwt".
	Provider  string        `yaml:"provider"`
	JWTSecret string        `yaml:"jwt_secret"`
	JWTIssuer string        `yaml:"jwt_issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	// API keys accepted by the gRPC health service.
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// Per-customer order creation limit, enforced through redis.
	OrdersPerMinute int `yaml:"orders_per_minute"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite3, postgres or firestore.
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConnections int    `yaml:"max_connections"`
}

type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schedule is a cron expression.
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type OrdersConfig struct {
	Timezone       string        `yaml:"timezone"`
	MaxRentalDays  int           `yaml:"max_rental_days"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type PaystackConfig struct {
	SecretKey      string        `yaml:"secret_key"`
	BaseURL        string        `yaml:"base_url"`
	CallbackURL    string        `yaml:"callback_url"`
	Timeout        time.Duration `yaml:"timeout"`
	VerifyCacheTTL time.Duration `yaml:"verify_cache_ttl"`
}

type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	StaleAfter   time.Duration `yaml:"stale_after"`
}

type EmailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	LedgerSpreadsheetID   string `yaml:"ledger_spreadsheet_id"`
	LedgerSheetName       string `yaml:"ledger_sheet_name"`
}

type SchedulerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OutboxSweep string `yaml:"outbox_sweep"`
	DailyReport string `yaml:"daily_report"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Paystack.SecretKey == "" {
		return errors.New("paystack secret key is required")
	}

	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return errors.New("postgres dsn is required")
		}
	case "firestore":
		if c.Firebase.ProjectID == "" {
			return errors.New("firebase project id is required for firestore")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.API.Auth.Provider {
	case "firebase":
		if c.Firebase.ProjectID == "" {
			return errors.New("firebase project id is required for firebase auth")
		}
	case "jwt":
		if len(c.API.Auth.JWTSecret) < 16 {
			return errors.New("jwt secret must be at least 16 characters")
		}
	default:
		return fmt.Errorf("unsupported auth provider %q", c.API.Auth.Provider)
	}

	if c.Orders.MaxRentalDays < 1 {
		return errors.New("orders.max_rental_days must be positive")
	}
	if c.Outbox.MaxDelay < c.Outbox.BaseDelay {
		return errors.New("outbox.max_delay must not be less than outbox.base_delay")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "renthaus"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.Provider == "" {
		c.API.Auth.Provider = "firebase"
	}
	c.API.Auth.Provider = strings.ToLower(c.API.Auth.Provider)
	if c.API.Auth.JWTIssuer == "" {
		c.API.Auth.JWTIssuer = "renthaus"
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = time.Hour
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.API.RateLimit.OrdersPerMinute == 0 {
		c.API.RateLimit.OrdersPerMinute = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Postgres.MaxConnections == 0 {
		c.Database.Postgres.MaxConnections = 10
	}

	if c.Orders.Timezone == "" {
		c.Orders.Timezone = "Africa/Lagos"
	}
	if c.Orders.MaxRentalDays == 0 {
		c.Orders.MaxRentalDays = models.DefaultMaxRentalDays
	}
	if c.Orders.IdempotencyTTL == 0 {
		c.Orders.IdempotencyTTL = models.DefaultIdempotencyTTL * time.Second
	}

	if c.Paystack.BaseURL == "" {
		c.Paystack.BaseURL = "https://api.paystack.co"
	}
	c.Paystack.BaseURL = strings.TrimRight(c.Paystack.BaseURL, "/")
	if c.Paystack.Timeout == 0 {
		c.Paystack.Timeout = 10 * time.Second
	}
	if c.Paystack.VerifyCacheTTL == 0 {
		c.Paystack.VerifyCacheTTL = 10 * time.Minute
	}

	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 20
	}
	if c.Outbox.MaxAttempts == 0 {
		c.Outbox.MaxAttempts = 5
	}
	if c.Outbox.BaseDelay == 0 {
		c.Outbox.BaseDelay = 2 * time.Second
	}
	if c.Outbox.MaxDelay == 0 {
		c.Outbox.MaxDelay = time.Minute
	}
	if c.Outbox.StaleAfter == 0 {
		c.Outbox.StaleAfter = 5 * time.Minute
	}

	if c.Email.FromName == "" {
		c.Email.FromName = "RentHaus"
	}
	if c.Google.LedgerSheetName == "" {
		c.Google.LedgerSheetName = "Ledger"
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Scheduler.OutboxSweep == "" {
		c.Scheduler.OutboxSweep = "@every 1m"
	}
	if c.Scheduler.DailyReport == "" {
		c.Scheduler.DailyReport = "30 0 * * *"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

// RedisEnabled reports whether a redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Address != ""
}
