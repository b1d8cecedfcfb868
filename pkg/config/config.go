// Package config loads configuration from config.yaml with environment
// overrides. Secrets are environment-only and never read from the file.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the whole application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Safety   SafetyConfig   `yaml:"safety"`
	Auth     AuthConfig     `yaml:"auth"`
	Schema   SchemaConfig   `yaml:"schema"`
	Concepts ConceptsConfig `yaml:"concepts"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port int    `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	Env  string `yaml:"env" env:"APP_ENV" env-default:"development"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:"readonly"`
	Password string `yaml:"-" env:"PGPASSWORD"`
	Name     string `yaml:"name" env:"PGDATABASE" env-default:"hospital"`
	SSLMode  string `yaml:"sslmode" env:"PGSSLMODE" env-default:"disable"`
}

// DSN renders a pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type LLMConfig struct {
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"claude-sonnet-4-20250514"`
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"`
}

type SafetyConfig struct {
	StatementTimeoutMs int `yaml:"sql_statement_timeout_ms" env:"SQL_STATEMENT_TIMEOUT_MS" env-default:"15000"`
	MaxRows            int `yaml:"sql_max_rows" env:"SQL_MAX_ROWS" env-default:"2000"`
	HistoryWindow      int `yaml:"history_window" env:"HISTORY_WINDOW" env-default:"6"`
	SessionTTLHours    int `yaml:"session_ttl_hours" env:"SESSION_TTL_HOURS" env-default:"24"`
}

type AuthConfig struct {
	CookieName     string `yaml:"cookie_name" env:"AUTH_COOKIE_NAME" env-default:"sqlbot_session"`
	CookieMaxAge   int    `yaml:"cookie_max_age" env:"AUTH_COOKIE_MAX_AGE" env-default:"28800"`
	UsersCSV       string `yaml:"users_csv" env:"AUTH_USERS_CSV" env-default:"data/users.csv"`
	SuperUsersJSON string `yaml:"super_users_json" env:"AUTH_SUPER_USERS_JSON" env-default:"data/super_users.json"`
	SessionSecret  string `yaml:"-" env:"SESSION_SECRET"`
}

type SchemaConfig struct {
	Dir           string `yaml:"dir" env:"SCHEMA_DIR" env-default:"schema"`
	KnowledgePath string `yaml:"knowledge_path" env:"SCHEMA_KNOWLEDGE_PATH" env-default:"schema/schema_knowledge.json"`
}

type ConceptsConfig struct {
	Path string `yaml:"path" env:"CONCEPTS_PATH" env-default:"concepts.yaml"`
}

// Load reads path when it exists, then applies environment overrides. A
// missing file falls back to environment-only configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("reading config from environment: %w", err)
		}
	}
	// The Anthropic SDK's conventional variable works as a fallback.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Safety.MaxRows <= 0 {
		return fmt.Errorf("sql_max_rows must be positive")
	}
	if c.Safety.StatementTimeoutMs <= 0 {
		return fmt.Errorf("sql_statement_timeout_ms must be positive")
	}
	return nil
}
