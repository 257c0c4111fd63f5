package config

import (
	"fmt"
	"time"

	"github.com/razikuljoni/crud-express/internal/auth"
	"github.com/razikuljoni/crud-express/pkg/database"
	pkgconfig "github.com/razikuljoni/crud-express/pkg/config"
	"github.com/razikuljoni/crud-express/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Directory drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the identity service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort int `env:"PORT" envDefault:"3000"`

	// User directory
	DirectoryDriver string `env:"DIRECTORY_DRIVER" envDefault:"mongo"`

	// MongoDB
	MongoURI         string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB          string `env:"DB_NAME" envDefault:"crud-express"`
	MongoMaxPoolSize uint64 `env:"MONGODB_MAX_POOL_SIZE" envDefault:"50"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"crud"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"crud_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"crud-express"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Credentials
	JWTSecret             string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	PasswordHashAlgorithm string `env:"PASSWORD_HASH_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost            int    `env:"BCRYPT_COST" envDefault:"12"`

	// Kafka. Events are published only when brokers are configured.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Register and login rate limiting per client address.
	AuthRateLimitPerMinute int `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	AuthRateLimitBurst     int `env:"AUTH_RATE_LIMIT_BURST" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.DirectoryDriver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("invalid DIRECTORY_DRIVER %q: want mongo, postgres or memory", c.DirectoryDriver)
	}

	switch auth.Algorithm(c.PasswordHashAlgorithm) {
	case auth.Bcrypt, auth.Argon2id:
	default:
		return fmt.Errorf("invalid PASSWORD_HASH_ALGORITHM %q: want bcrypt or argon2id", c.PasswordHashAlgorithm)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}

	// Outside development, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}

	return nil
}

// Mongo returns the MongoDB connector settings.
func (c *Config) Mongo() database.MongoConfig {
	mc := database.DefaultMongoConfig()
	mc.URI = c.MongoURI
	mc.Database = c.MongoDB
	if c.MongoMaxPoolSize > 0 {
		mc.MaxPoolSize = c.MongoMaxPoolSize
	}
	return mc
}

// Postgres returns the PostgreSQL pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Tracing returns the OpenTelemetry settings for serviceName.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}
