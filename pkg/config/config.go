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
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig

	Oracle    OracleConfig
	Intake    IntakeConfig
	Sweeper   SweeperConfig
	Points    PointsConfig
	RateLimit RateLimitConfig
	Exports   ExportsConfig
	Notify    NotifyConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OracleConfig configures the external duplicate-judgement service.
// The intake flow fails open when the oracle is disabled or unreachable.
type OracleConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// IntakeConfig tunes duplicate candidate selection.
type IntakeConfig struct {
	GeoWindowDegrees float64
}

// SweeperConfig governs the SLA escalation sweep and the batch
// priority recalculation cadence.
type SweeperConfig struct {
	Enabled        bool
	Interval       time.Duration
	RecalcInterval time.Duration
}

// PointsConfig sets ledger award sizes and leaderboard cache behaviour.
type PointsConfig struct {
	ReportAward      int
	LeaderboardTTL   time.Duration
	LeaderboardLimit int
}

// RateLimitConfig guards the authority login path.
type RateLimitConfig struct {
	LoginAttempts int
	LoginWindow   time.Duration
}

// ExportsConfig toggles admin performance exports.
type ExportsConfig struct {
	Enabled bool
}

// NotifyConfig tunes the async notification dispatcher.
type NotifyConfig struct {
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Oracle = OracleConfig{
		Enabled: v.GetBool("ORACLE_ENABLED"),
		BaseURL: v.GetString("ORACLE_BASE_URL"),
		APIKey:  v.GetString("ORACLE_API_KEY"),
		Model:   v.GetString("ORACLE_MODEL"),
		Timeout: parseDuration(v.GetString("ORACLE_TIMEOUT"), 5*time.Second),
	}

	cfg.Intake = IntakeConfig{
		GeoWindowDegrees: v.GetFloat64("INTAKE_GEO_WINDOW_DEGREES"),
	}

	cfg.Sweeper = SweeperConfig{
		Enabled:        v.GetBool("SWEEPER_ENABLED"),
		Interval:       parseDuration(v.GetString("SWEEPER_INTERVAL"), time.Hour),
		RecalcInterval: parseDuration(v.GetString("PRIORITY_RECALC_INTERVAL"), 24*time.Hour),
	}

	cfg.Points = PointsConfig{
		ReportAward:      v.GetInt("POINTS_REPORT_AWARD"),
		LeaderboardTTL:   parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), 5*time.Minute),
		LeaderboardLimit: v.GetInt("LEADERBOARD_LIMIT"),
	}

	cfg.RateLimit = RateLimitConfig{
		LoginAttempts: v.GetInt("LOGIN_RATE_LIMIT"),
		LoginWindow:   parseDuration(v.GetString("LOGIN_RATE_WINDOW"), time.Minute),
	}

	cfg.Exports = ExportsConfig{Enabled: v.GetBool("ENABLE_EXPORTS")}

	cfg.Notify = NotifyConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
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
	v.SetDefault("DB_NAME", "civicdesk")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "civicdesk-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ORACLE_ENABLED", false)
	v.SetDefault("ORACLE_BASE_URL", "")
	v.SetDefault("ORACLE_API_KEY", "")
	v.SetDefault("ORACLE_MODEL", "gemini-flash")
	v.SetDefault("ORACLE_TIMEOUT", "5s")

	v.SetDefault("INTAKE_GEO_WINDOW_DEGREES", 0.001)

	v.SetDefault("SWEEPER_ENABLED", false)
	v.SetDefault("SWEEPER_INTERVAL", "1h")
	v.SetDefault("PRIORITY_RECALC_INTERVAL", "24h")

	v.SetDefault("POINTS_REPORT_AWARD", 10)
	v.SetDefault("LEADERBOARD_CACHE_TTL", "5m")
	v.SetDefault("LEADERBOARD_LIMIT", 20)

	v.SetDefault("LOGIN_RATE_LIMIT", 5)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")

	v.SetDefault("ENABLE_EXPORTS", false)

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
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
