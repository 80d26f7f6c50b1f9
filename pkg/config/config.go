package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Billing  BillingConfig
	Alerts   AlertsConfig
	Reports  ReportsConfig
	Jobs     JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MigrationsUp bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BillingConfig governs invoice generation and the fiscal calendar.
type BillingConfig struct {
	// FiscalYearStartMonth is the first month of the accounting year (1-12).
	FiscalYearStartMonth int
	// InvoiceDueDays is the default payment window for freshly sent invoices.
	InvoiceDueDays int
	// ReminderDays are the days-since-sent thresholds for the three one-shot reminders.
	ReminderDays [3]int
	// RecomputeFromAllocation controls whether editing an entry re-resolves rates
	// through the allocation instead of the student's current defaults.
	RecomputeFromAllocation bool
}

// AlertsConfig tunes the background compliance sweeps.
type AlertsConfig struct {
	Enabled             bool
	ScanInterval        time.Duration
	SessionLoggingGrace time.Duration
	InvoiceAlertAfter   time.Duration
}

// ReportsConfig governs ledger report caching.
type ReportsConfig struct {
	CacheTTL time.Duration
}

// JobsConfig sizes the notification dispatch workers.
type JobsConfig struct {
	Workers    int
	MaxRetries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrationsUp: v.GetBool("DB_RUN_MIGRATIONS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	fiscalStart := v.GetInt("FISCAL_YEAR_START_MONTH")
	if fiscalStart < 1 || fiscalStart > 12 {
		fiscalStart = 10
	}
	dueDays := v.GetInt("INVOICE_DUE_DAYS")
	if dueDays <= 0 {
		dueDays = 6
	}
	cfg.Billing = BillingConfig{
		FiscalYearStartMonth:    fiscalStart,
		InvoiceDueDays:          dueDays,
		ReminderDays:            [3]int{v.GetInt("REMINDER_FIRST_DAYS"), v.GetInt("REMINDER_SECOND_DAYS"), v.GetInt("REMINDER_FINAL_DAYS")},
		RecomputeFromAllocation: v.GetBool("ENTRY_EDIT_USES_ALLOCATION_RATES"),
	}

	cfg.Alerts = AlertsConfig{
		Enabled:             v.GetBool("ENABLE_ALERT_SWEEPS"),
		ScanInterval:        parseDuration(v.GetString("ALERT_SCAN_INTERVAL"), time.Hour),
		SessionLoggingGrace: parseDuration(v.GetString("SESSION_LOGGING_GRACE"), 24*time.Hour),
		InvoiceAlertAfter:   parseDuration(v.GetString("INVOICE_ALERT_AFTER"), 48*time.Hour),
	}

	cfg.Reports = ReportsConfig{
		CacheTTL: parseDuration(v.GetString("REPORTS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("NOTIFICATION_WORKERS"),
		MaxRetries: v.GetInt("NOTIFICATION_MAX_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "agency")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_RUN_MIGRATIONS", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("FISCAL_YEAR_START_MONTH", 10)
	v.SetDefault("INVOICE_DUE_DAYS", 6)
	v.SetDefault("REMINDER_FIRST_DAYS", 2)
	v.SetDefault("REMINDER_SECOND_DAYS", 4)
	v.SetDefault("REMINDER_FINAL_DAYS", 5)

	v.SetDefault("ENABLE_ALERT_SWEEPS", true)
	v.SetDefault("ALERT_SCAN_INTERVAL", "1h")
	v.SetDefault("SESSION_LOGGING_GRACE", "24h")
	v.SetDefault("INVOICE_ALERT_AFTER", "48h")

	v.SetDefault("REPORTS_CACHE_TTL", "5m")

	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("NOTIFICATION_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
