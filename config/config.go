package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/coding-league/officiating"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string `env:"DATABASE_URL,required"`
	JWTSecretKey string `env:"JWT_SECRET_KEY,required"`
	ServerPort   int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	MatchDuration    time.Duration `env:"MATCH_DURATION" envDefault:"60m"`
	MaxActiveMembers int           `env:"MAX_ACTIVE_MEMBERS" envDefault:"4"`
	AIEvalTimeout    time.Duration `env:"AI_EVAL_TIMEOUT" envDefault:"10s"`
	AIEvalLatency    time.Duration `env:"AI_EVAL_LATENCY" envDefault:"750ms"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`

	Weights    Weights    `envPrefix:"SCORE_WEIGHT_"`
	Thresholds Thresholds `envPrefix:"TIER_"`
}

// Weights mirrors officiating.ScoreWeights so the contract can be tuned per season.
type Weights struct {
	CodeFunctionality float64 `env:"FUNCTIONALITY" envDefault:"0.25"`
	Innovation        float64 `env:"INNOVATION" envDefault:"0.25"`
	Presentation      float64 `env:"PRESENTATION" envDefault:"0.15"`
	ProblemRelevance  float64 `env:"PROBLEM_RELEVANCE" envDefault:"0.20"`
	Feasibility       float64 `env:"FEASIBILITY" envDefault:"0.10"`
	Collaboration     float64 `env:"COLLABORATION" envDefault:"0.05"`
}

type Thresholds struct {
	National     int `env:"NATIONAL" envDefault:"10000"`
	Legendary    int `env:"LEGENDARY" envDefault:"5000"`
	Professional int `env:"PROFESSIONAL" envDefault:"2500"`
	Regular      int `env:"REGULAR" envDefault:"1000"`
	Amateur      int `env:"AMATEUR" envDefault:"500"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse reads the environment with the given options and validates the result.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.MatchDuration <= 0 {
		return fmt.Errorf("MATCH_DURATION must be positive, got %s", c.MatchDuration)
	}
	if c.MaxActiveMembers <= 0 {
		return fmt.Errorf("MAX_ACTIVE_MEMBERS must be positive, got %d", c.MaxActiveMembers)
	}
	if c.AIEvalTimeout <= 0 {
		return fmt.Errorf("AI_EVAL_TIMEOUT must be positive, got %s", c.AIEvalTimeout)
	}
	if err := c.ScoreWeights().Validate(); err != nil {
		return fmt.Errorf("invalid SCORE_WEIGHT_* configuration: %w", err)
	}
	if err := c.TierThresholds().Validate(); err != nil {
		return fmt.Errorf("invalid TIER_* configuration: %w", err)
	}
	return nil
}

func (c *Config) ScoreWeights() officiating.ScoreWeights {
	return officiating.ScoreWeights(c.Weights)
}

func (c *Config) TierThresholds() officiating.TierThresholds {
	return officiating.TierThresholds(c.Thresholds)
}

// ArchiveEnabled reports whether every R2 setting is present.
func (c *Config) ArchiveEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
