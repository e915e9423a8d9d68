// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DatastorePostgres selects the PostgreSQL backend.
	DatastorePostgres = "postgres"
	// DatastoreSQLite selects the SQLite backend.
	DatastoreSQLite = "sqlite"
	// DatastoreMemory selects the in-memory repositories.
	DatastoreMemory = "memory"

	// SessionBackendMemory keeps sessions in the process.
	SessionBackendMemory = "memory"
	// SessionBackendRedis keeps sessions in Redis.
	SessionBackendRedis = "redis"

	defaultSessionSecret = "change-me-session-secret"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"`

	CookieName           string        `mapstructure:"AUTH_COOKIE_NAME"`
	SessionTTL           time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	SessionTTLMillis     int64         `mapstructure:"AUTH_TOKEN_TTL_MS"`
	CookieSecure         bool          `mapstructure:"AUTH_COOKIE_SECURE"`
	SessionSecret        string        `mapstructure:"SESSION_SECRET"`
	SessionSweepInterval time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`
	SessionBackend       string        `mapstructure:"SESSION_BACKEND"`
	AuthUsers            string        `mapstructure:"AUTH_USERS"`
	BcryptCost           int           `mapstructure:"BCRYPT_COST"`

	Datastore      string `mapstructure:"DATASTORE"`
	UseInMemoryDB  bool   `mapstructure:"USE_IN_MEMORY_DB"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBPath         string `mapstructure:"DB_PATH"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	QuiverBaseURL    string        `mapstructure:"QUIVER_API_BASE_URL"`
	QuiverAPIKey     string        `mapstructure:"QUIVER_API_KEY"`
	QuiverTradesPath string        `mapstructure:"QUIVER_TRADES_PATH"`
	QuiverExtraPaths string        `mapstructure:"QUIVER_EXTRA_PATHS"`
	QuiverLivePath   string        `mapstructure:"QUIVER_LIVE_PATH"`
	QuiverPageSize   int           `mapstructure:"QUIVER_PAGE_SIZE"`
	QuiverTimeout    time.Duration `mapstructure:"QUIVER_TIMEOUT"`
	QuiverRateLimit  float64       `mapstructure:"QUIVER_RATE_LIMIT"`
	PoliticianAPIURL string        `mapstructure:"POLITICIAN_API_URL"`
	ProfileMaxAge    time.Duration `mapstructure:"PROFILE_MAX_AGE"`
	MarketCacheTTL   time.Duration `mapstructure:"MARKET_CACHE_TTL"`

	TemplatesDir   string `mapstructure:"TEMPLATES_DIR"`
	StaticDir      string `mapstructure:"STATIC_DIR"`
	ScriptsDir     string `mapstructure:"SCRIPTS_DIR"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`

	SeedDemoData bool `mapstructure:"SEED_DEMO_DATA"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// A local .env file is optional; variables already set in the environment win.
	_ = godotenv.Load()
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config.%s.yml: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "3000")
	viper.SetDefault("APP_ENV", "development")

	viper.SetDefault("AUTH_COOKIE_NAME", "ps_session")
	viper.SetDefault("AUTH_TOKEN_TTL", 4*time.Hour)
	viper.SetDefault("AUTH_TOKEN_TTL_MS", 0)
	viper.SetDefault("AUTH_COOKIE_SECURE", false)
	viper.SetDefault("SESSION_SECRET", defaultSessionSecret)
	viper.SetDefault("SESSION_SWEEP_INTERVAL", 5*time.Minute)
	viper.SetDefault("SESSION_BACKEND", SessionBackendMemory)
	viper.SetDefault("AUTH_USERS", "")
	viper.SetDefault("BCRYPT_COST", 10)

	viper.SetDefault("DATASTORE", DatastorePostgres)
	viper.SetDefault("USE_IN_MEMORY_DB", false)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "buffonomics")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "buffonomics.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("REDIS_URL", "")

	viper.SetDefault("QUIVER_API_BASE_URL", "https://api.quiverquant.com")
	viper.SetDefault("QUIVER_API_KEY", "")
	viper.SetDefault("QUIVER_TRADES_PATH", "")
	viper.SetDefault("QUIVER_EXTRA_PATHS", "")
	viper.SetDefault("QUIVER_LIVE_PATH", "/beta/live/congresstrading")
	viper.SetDefault("QUIVER_PAGE_SIZE", 500)
	viper.SetDefault("QUIVER_TIMEOUT", 12*time.Second)
	viper.SetDefault("QUIVER_RATE_LIMIT", 5.0)
	viper.SetDefault("POLITICIAN_API_URL", "")
	viper.SetDefault("PROFILE_MAX_AGE", 12*time.Hour)
	viper.SetDefault("MARKET_CACHE_TTL", 10*time.Minute)

	viper.SetDefault("TEMPLATES_DIR", "web/templates")
	viper.SetDefault("STATIC_DIR", "web/static")
	viper.SetDefault("SCRIPTS_DIR", "web/scripts")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	viper.SetDefault("SEED_DEMO_DATA", false)
}

// normalize folds legacy and shortcut settings into their canonical fields.
func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Datastore = strings.ToLower(strings.TrimSpace(c.Datastore))
	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))

	if c.UseInMemoryDB {
		c.Datastore = DatastoreMemory
	}
	if c.SessionTTLMillis > 0 {
		c.SessionTTL = time.Duration(c.SessionTTLMillis) * time.Millisecond
	}
	if c.IsProduction() {
		c.CookieSecure = true
	}
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ExtraPaths splits QUIVER_EXTRA_PATHS into trimmed, non-empty endpoint paths.
func (c *Config) ExtraPaths() []string {
	var paths []string
	for _, p := range strings.Split(c.QuiverExtraPaths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.CookieName == "" {
		return errors.New("AUTH_COOKIE_NAME is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("AUTH_TOKEN_TTL must be positive")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}

	switch c.Datastore {
	case DatastorePostgres, DatastoreSQLite, DatastoreMemory:
	default:
		return fmt.Errorf("unsupported DATASTORE %q", c.Datastore)
	}

	switch c.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_BACKEND is redis")
		}
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.SessionBackend)
	}

	if c.IsProduction() {
		if c.SessionSecret == defaultSessionSecret {
			return errors.New("SESSION_SECRET must be changed from the default value in production")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("SESSION_SECRET must be at least 32 characters in production")
		}
		if c.Datastore == DatastorePostgres && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.Datastore == DatastorePostgres && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AuthUsers != "" {
			log.Println("WARNING: AUTH_USERS is a plaintext demo credential store and should not be used in production.")
		}
	} else if len(c.SessionSecret) < 32 {
		log.Println("WARNING: SESSION_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
