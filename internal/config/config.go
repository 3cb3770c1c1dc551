// Package config loads process configuration from the environment: plain
// env vars, helper getters with defaults, and a fail-fast Load for anything
// that has no safe default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	HTTP     HTTPConfig
	DB       DBConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Template TemplateConfig
}

// TemplateConfig holds TemplateProvider configuration.
type TemplateConfig struct {
	// DefaultPath optionally names a YAML file (same shape as the embedded
	// default_template.yaml) an operator can edit in place; Reload()
	// re-reads it. Empty means the embedded fixture is the only source of
	// truth.
	DefaultPath string
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
	Debug       bool
}

// DBConfig holds storage backend configuration.
type DBConfig struct {
	// Driver selects the Store backend: "sqlite" (default) or "mongo".
	Driver string
	// DSN is the database connection string (sqlite file path, or mongo URI).
	DSN string
	// MongoDatabase names the database within the mongo URI's cluster. Only
	// read when Driver is "mongo"/"mongodb".
	MongoDatabase string
}

// AuthConfig holds token issuance/validation configuration.
type AuthConfig struct {
	JWTSecret     string
	JWTAlgorithm  string
	TokenLifetime time.Duration
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Load loads configuration from environment variables. Missing required
// values fail fast at process start: the JWT secret and LLM API key always,
// and the DB DSN for any driver other than sqlite (an empty sqlite DSN opens
// an in-memory database).
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Host:        getEnvString("JOURNAL_HTTP_HOST", "0.0.0.0"),
			Port:        getEnvInt("JOURNAL_HTTP_PORT", 8080),
			CORSOrigins: getEnvStringList("JOURNAL_CORS_ORIGINS", nil),
			Debug:       getEnvBool("JOURNAL_DEBUG", false),
		},
		DB: DBConfig{
			Driver:        getEnvString("JOURNAL_DB_DRIVER", "sqlite"),
			DSN:           getEnvString("JOURNAL_DB_DSN", ""),
			MongoDatabase: getEnvString("JOURNAL_DB_MONGO_DATABASE", "journal"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JOURNAL_JWT_SECRET"),
			JWTAlgorithm:  getEnvString("JOURNAL_JWT_ALGORITHM", "HS256"),
			TokenLifetime: getEnvDuration("JOURNAL_TOKEN_LIFETIME", time.Hour),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("JOURNAL_LLM_API_KEY"),
			BaseURL: getEnvString("JOURNAL_LLM_BASE_URL", ""),
			Model:   getEnvString("JOURNAL_LLM_MODEL", "gpt-4o-mini"),
			Timeout: getEnvDuration("JOURNAL_LLM_TIMEOUT", 30*time.Second),
		},
		Template: TemplateConfig{
			DefaultPath: getEnvString("JOURNAL_TEMPLATE_PATH", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.DSN == "" && c.DB.Driver != "sqlite" && c.DB.Driver != "" {
		return fmt.Errorf("config: JOURNAL_DB_DSN is required for driver %q", c.DB.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: JOURNAL_JWT_SECRET is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config: JOURNAL_LLM_API_KEY is required")
	}
	return nil
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvStringList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
