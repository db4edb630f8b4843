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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Cache      CacheConfig
	Metrics    MetricsConfig
	Scheduling SchedulingConfig
	Policy     PolicyConfig
	NATS       NATSConfig
	Mail       MailConfig
	Exports    ExportsConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string
	AutoMigrate   bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
	Audience          string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes the redis backed statistics cache.
type CacheConfig struct {
	Enabled       bool
	DefaultTTL    time.Duration
	StatisticsTTL time.Duration
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// SchedulingConfig holds the session booking rules.
type SchedulingConfig struct {
	MinSessionDuration time.Duration
}

// PolicyConfig holds account rules that vary per deployment.
type PolicyConfig struct {
	UsernameMin      int
	UsernameMax      int
	PasswordMin      int
	PasswordResetTTL time.Duration
}

// NATSConfig configures domain event publishing.
type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

// MailConfig selects and configures the outgoing mail provider.
type MailConfig struct {
	Provider        string
	SendgridAPIKey  string
	FromName        string
	FromAddress     string
	AppName         string
	FrontendBaseURL string
	Workers         int
	MaxRetries      int
}

// ExportsConfig configures rendered statistics downloads.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
		Audience:          v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("ENABLE_CACHE"),
		DefaultTTL:    parseDuration(v.GetString("CACHE_DEFAULT_TTL"), 5*time.Minute),
		StatisticsTTL: parseDuration(v.GetString("CACHE_STATISTICS_TTL"), 10*time.Minute),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.Scheduling = SchedulingConfig{
		MinSessionDuration: parseDuration(v.GetString("SCHEDULING_MIN_SESSION_DURATION"), 30*time.Minute),
	}

	cfg.Policy = PolicyConfig{
		UsernameMin:      v.GetInt("POLICY_USERNAME_MIN"),
		UsernameMax:      v.GetInt("POLICY_USERNAME_MAX"),
		PasswordMin:      v.GetInt("POLICY_PASSWORD_MIN"),
		PasswordResetTTL: parseDuration(v.GetString("PASSWORD_RESET_TTL"), 24*time.Hour),
	}

	cfg.NATS = NATSConfig{
		Enabled:       v.GetBool("ENABLE_NATS"),
		URL:           v.GetString("NATS_URL"),
		SubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
	}

	cfg.Mail = MailConfig{
		Provider:        strings.ToLower(v.GetString("MAIL_PROVIDER")),
		SendgridAPIKey:  v.GetString("SENDGRID_API_KEY"),
		FromName:        v.GetString("MAIL_FROM_NAME"),
		FromAddress:     v.GetString("MAIL_FROM_ADDRESS"),
		AppName:         v.GetString("APP_NAME"),
		FrontendBaseURL: v.GetString("FRONTEND_BASE_URL"),
		Workers:         v.GetInt("MAIL_WORKERS"),
		MaxRetries:      v.GetInt("MAIL_MAX_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
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
	v.SetDefault("DB_NAME", "school")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATIONS_DIR", "migrations")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "school-api")
	v.SetDefault("JWT_AUDIENCE", "school-clients")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_DEFAULT_TTL", "5m")
	v.SetDefault("CACHE_STATISTICS_TTL", "10m")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("SCHEDULING_MIN_SESSION_DURATION", "30m")

	v.SetDefault("POLICY_USERNAME_MIN", 3)
	v.SetDefault("POLICY_USERNAME_MAX", 50)
	v.SetDefault("POLICY_PASSWORD_MIN", 8)
	v.SetDefault("PASSWORD_RESET_TTL", "24h")

	v.SetDefault("ENABLE_NATS", false)
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_SUBJECT_PREFIX", "school")

	v.SetDefault("MAIL_PROVIDER", "console")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "School Admin")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@school.local")
	v.SetDefault("APP_NAME", "School")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_MAX_RETRIES", 3)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file")
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
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
