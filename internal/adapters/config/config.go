package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	OpenAI     OpenAIConfig     `envconfig:"OPENAI"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Engine     EngineConfig     `envconfig:"ENGINE"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// DatabaseConfig represents Postgres connection parameters
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	Name           string `envconfig:"DB_NAME" default:"sentinel"`
	User           string `envconfig:"DB_USER" required:"true"`
	Password       string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
}

// ClickHouseConfig represents the decision-audit sink. Optional: when the
// address is empty the audit trail is disabled.
type ClickHouseConfig struct {
	Addr         string `envconfig:"CLICKHOUSE_ADDR" default:""`
	Database     string `envconfig:"CLICKHOUSE_DATABASE" default:"sentinel"`
	User         string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password     string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	BatchSize    int    `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"100"`
	FlushSeconds int    `envconfig:"CLICKHOUSE_FLUSH_SECONDS" default:"10"`
}

// RedisConfig represents the Auto-Learn lock backend. Optional: when the host
// is empty learning updates run without the distributed lock.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:""`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// OpenAIConfig represents embedding and strategy-LLM access
type OpenAIConfig struct {
	APIKey         string `envconfig:"OPENAI_API_KEY" required:"true"`
	EmbeddingModel string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	ChatModel      string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4-turbo-preview"`
}

// TelegramConfig represents override alerting
type TelegramConfig struct {
	BotToken         string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	ChatID           int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`
	AlertOnOverrides bool   `envconfig:"TELEGRAM_ALERT_ON_OVERRIDES" default:"true"`
}

// EngineConfig represents tunable decision-engine parameters. The weighted
// SOFT/HARD cutoffs are intentionally not configurable; they are part of the
// override contract.
type EngineConfig struct {
	CheckMinSimilarity float64 `envconfig:"ENGINE_CHECK_MIN_SIMILARITY" default:"0.45"`
	LearnMinSimilarity float64 `envconfig:"ENGINE_LEARN_MIN_SIMILARITY" default:"0.85"`
	PatternTopK        int     `envconfig:"ENGINE_PATTERN_TOP_K" default:"3"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key is required")
	}
	if c.Engine.CheckMinSimilarity < 0 || c.Engine.CheckMinSimilarity > 1 {
		return fmt.Errorf("check_min_similarity must be between 0 and 1")
	}
	if c.Engine.LearnMinSimilarity < 0 || c.Engine.LearnMinSimilarity > 1 {
		return fmt.Errorf("learn_min_similarity must be between 0 and 1")
	}
	if c.Engine.PatternTopK < 1 {
		return fmt.Errorf("pattern_top_k must be at least 1")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required when bot token is set")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetDSN returns ClickHouse connection string for the sqlx driver
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf(
		"clickhouse://%s:%s@%s/%s",
		c.User, c.Password, c.Addr, c.Database,
	)
}

// Enabled reports whether the audit sink is configured
func (c *ClickHouseConfig) Enabled() bool {
	return c.Addr != ""
}

// Enabled reports whether the distributed learn lock is configured
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Enabled reports whether override alerting is configured
func (c *TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}
