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

// Parser backends for free-text roster rules.
const (
	RuleParserLLM     = "llm"
	RuleParserPattern = "pattern"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Roster     RosterConfig
	Solver     SolverConfig
	RuleParser RuleParserConfig
	Clock      ClockConfig
	Exports    ExportsConfig
	Points     PointsConfig
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

// JWTConfig only carries the verification secret; tokens are issued elsewhere.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RosterConfig configures week generation and caching.
type RosterConfig struct {
	TemplatesFile string
	CacheTTL      time.Duration
}

// SolverConfig bounds the constraint solver.
type SolverConfig struct {
	MaxIterations   int
	TimeBudget      time.Duration
	DefaultMaxHours float64
}

// RuleParserConfig selects and configures the free-text rule parser.
type RuleParserConfig struct {
	Backend  string
	URL      string
	APIKey   string
	Model    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ClockConfig configures the stale clock-in sweep.
type ClockConfig struct {
	StaleAfter    time.Duration
	SweepSchedule string
}

// ExportsConfig controls roster export storage and download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupSchedule string
	MaxAge          time.Duration
}

// PointsConfig sizes the points dispatch queue.
type PointsConfig struct {
	Workers int
	Retries int
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("CAFE_TIMEZONE")

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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}
	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Roster = RosterConfig{
		TemplatesFile: v.GetString("ROSTER_TEMPLATES_FILE"),
		CacheTTL:      parseDuration(v.GetString("ROSTER_CACHE_TTL"), 10*time.Minute),
	}

	maxHours := v.GetFloat64("SOLVER_DEFAULT_MAX_HOURS")
	if maxHours < 0 {
		maxHours = 0
	}
	cfg.Solver = SolverConfig{
		MaxIterations:   v.GetInt("SOLVER_MAX_ITERATIONS"),
		TimeBudget:      parseDuration(v.GetString("SOLVER_TIME_BUDGET"), 5*time.Second),
		DefaultMaxHours: maxHours,
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("RULE_PARSER")))
	if backend != RuleParserPattern {
		backend = RuleParserLLM
	}
	cfg.RuleParser = RuleParserConfig{
		Backend:  backend,
		URL:      v.GetString("RULE_PARSER_URL"),
		APIKey:   v.GetString("RULE_PARSER_API_KEY"),
		Model:    v.GetString("RULE_PARSER_MODEL"),
		Timeout:  parseDuration(v.GetString("RULE_PARSER_TIMEOUT"), 20*time.Second),
		CacheTTL: parseDuration(v.GetString("RULE_PARSE_CACHE_TTL"), 24*time.Hour),
	}

	cfg.Clock = ClockConfig{
		StaleAfter:    parseDuration(v.GetString("CLOCK_STALE_AFTER"), 14*time.Hour),
		SweepSchedule: v.GetString("CLOCK_SWEEP_SCHEDULE"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupSchedule: v.GetString("EXPORTS_CLEANUP_SCHEDULE"),
		MaxAge:          parseDuration(v.GetString("EXPORTS_MAX_AGE"), 7*24*time.Hour),
	}

	cfg.Points = PointsConfig{
		Workers: v.GetInt("POINTS_WORKERS"),
		Retries: v.GetInt("POINTS_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("CAFE_TIMEZONE", "Australia/Melbourne")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "cafe_roster")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROSTER_TEMPLATES_FILE", "./config/roster_templates.yaml")
	v.SetDefault("ROSTER_CACHE_TTL", "10m")

	v.SetDefault("SOLVER_MAX_ITERATIONS", 2000)
	v.SetDefault("SOLVER_TIME_BUDGET", "5s")
	v.SetDefault("SOLVER_DEFAULT_MAX_HOURS", 0)

	v.SetDefault("RULE_PARSER", RuleParserLLM)
	v.SetDefault("RULE_PARSER_URL", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("RULE_PARSER_API_KEY", "")
	v.SetDefault("RULE_PARSER_MODEL", "gpt-4o-mini")
	v.SetDefault("RULE_PARSER_TIMEOUT", "20s")
	v.SetDefault("RULE_PARSE_CACHE_TTL", "24h")

	v.SetDefault("CLOCK_STALE_AFTER", "14h")
	v.SetDefault("CLOCK_SWEEP_SCHEDULE", "0 */15 * * * *")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_SCHEDULE", "0 0 3 * * *")
	v.SetDefault("EXPORTS_MAX_AGE", "168h")

	v.SetDefault("POINTS_WORKERS", 1)
	v.SetDefault("POINTS_RETRIES", 3)
}

// Location resolves the café time zone, falling back to UTC when the name is unknown.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
