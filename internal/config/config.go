package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment after an
// optional .env file has been loaded.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Blob     BlobConfig
	Oracle   OracleConfig
	Lock     LockConfig
	Events   EventsConfig
	Jobs     JobsConfig
	LogLevel string
	LogJSON  bool
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxUpload    int64
}

// StoreConfig selects the repository backend: memory, postgres or bigquery.
type StoreConfig struct {
	Backend  string
	Postgres PostgresConfig
	BigQuery BigQueryConfig
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the libpq keyword/value connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type BigQueryConfig struct {
	ProjectID string
	DatasetID string
}

// BlobConfig selects where original statement documents are kept: memory or gcs.
type BlobConfig struct {
	Backend string
	Bucket  string
	Prefix  string
}

// OracleConfig bounds model calls. Timeout applies to each call and Budget
// to all structuring attempts of one statement.
type OracleConfig struct {
	Model          string
	APIKey         string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	Budget         time.Duration
}

// LockConfig selects the per-business lock: local or redis.
type LockConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// EventsConfig enables score events when AMQPURL is set.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type JobsConfig struct {
	BufferSize int
	Workers    int
	MaxRetries int
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			MaxUpload:    int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			Postgres: PostgresConfig{
				Host:     getEnv("DB_HOST", "localhost"),
				Port:     getEnvInt("DB_PORT", 5432),
				User:     getEnv("DB_USER", "postgres"),
				Password: getEnv("DB_PASSWORD", "postgres"),
				DBName:   getEnv("DB_NAME", "creditscore"),
				SSLMode:  getEnv("DB_SSLMODE", "disable"),
			},
			BigQuery: BigQueryConfig{
				ProjectID: getEnv("BQ_PROJECT_ID", ""),
				DatasetID: getEnv("BQ_DATASET_ID", "creditscore"),
			},
		},
		Blob: BlobConfig{
			Backend: strings.ToLower(getEnv("BLOB_BACKEND", "memory")),
			Bucket:  getEnv("GCS_BUCKET", ""),
			Prefix:  getEnv("GCS_PREFIX", "statements"),
		},
		Oracle: OracleConfig{
			Model:          getEnv("ORACLE_MODEL", "gemini-2.5-flash"),
			APIKey:         getEnv("GOOGLE_API_KEY", ""),
			Timeout:        getEnvDuration("ORACLE_TIMEOUT", 25*time.Second),
			MaxAttempts:    getEnvInt("ORACLE_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvDuration("ORACLE_INITIAL_BACKOFF", time.Second),
			Budget:         getEnvDuration("ORACLE_BUDGET", 75*time.Second),
		},
		Lock: LockConfig{
			Backend:       strings.ToLower(getEnv("LOCK_BACKEND", "local")),
			RedisAddr:     getEnv("REDIS_ADDRESS", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTL:           getEnvDuration("LOCK_TTL", 30*time.Second),
		},
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "creditscore"),
		},
		Jobs: JobsConfig{
			BufferSize: getEnvInt("JOBS_BUFFER", 100),
			Workers:    getEnvInt("JOBS_WORKERS", 5),
			MaxRetries: getEnvInt("JOBS_MAX_RETRIES", 1),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements of the selected backends.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "postgres":
	case "bigquery":
		if c.Store.BigQuery.ProjectID == "" {
			return fmt.Errorf("config: BQ_PROJECT_ID is required for the bigquery store")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Blob.Backend {
	case "memory":
	case "gcs":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("config: GCS_BUCKET is required for the gcs blob store")
		}
	default:
		return fmt.Errorf("config: unknown BLOB_BACKEND %q", c.Blob.Backend)
	}

	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("config: unknown LOCK_BACKEND %q", c.Lock.Backend)
	}

	if c.Oracle.MaxAttempts < 1 {
		return fmt.Errorf("config: ORACLE_MAX_ATTEMPTS must be at least 1")
	}
	// A synchronous ingest runs one extraction and then the structuring
	// budget inside a single request.
	if w := c.Server.WriteTimeout; w > 0 && c.Oracle.Timeout+c.Oracle.Budget >= w {
		return fmt.Errorf("config: ORACLE_TIMEOUT + ORACLE_BUDGET (%s) must be below HTTP_WRITE_TIMEOUT (%s)",
			c.Oracle.Timeout+c.Oracle.Budget, w)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
