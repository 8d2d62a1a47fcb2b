package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	CallerSourceService     = "service"
	CallerSourceCertificate = "certificate"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	Environment     string
	CertMode        string
	TLS             TLSConfig
	ControllerID    string
	ServiceID       string
	BootstrapID     string
	CallerSource    string
	HashAlgorithm   string
	StoreBackend    string
	DatabaseURL     string
	SQLitePath      string
	Redis           RedisConfig
	Kafka           KafkaConfig
	SweepSchedule   string
	LogLevel        string
	MaxPayloadBytes int
	ReadRetries     int
	ShutdownTimeout time.Duration
}

// TLSConfig locates the server key pair and the CA bundle used to verify
// client certificates in direct mode.
type TLSConfig struct {
	CertPath string
	KeyPath  string
	CAPath   string
}

func (t TLSConfig) Enabled() bool {
	return t.CertPath != "" && t.KeyPath != ""
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds publisher settings. No brokers disables publishing.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

func (c Server) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []error
	cfg := Server{
		Addr:         getEnv("CERTTRAIL_ADDR", ":8443"),
		Environment:  strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		CertMode:     strings.ToLower(getEnv("CERT_MODE", "proxy")),
		ControllerID: os.Getenv("CONTROLLER_ID"),
		ServiceID:    getEnv("SERVICE_ID", "audit-api"),
		BootstrapID:  os.Getenv("BOOTSTRAP_SERVICE_ID"),
		CallerSource: strings.ToLower(getEnv("CALLER_SOURCE", CallerSourceService)),
		TLS: TLSConfig{
			CertPath: os.Getenv("TLS_CERT_PATH"),
			KeyPath:  os.Getenv("TLS_KEY_PATH"),
			CAPath:   os.Getenv("TLS_CA_PATH"),
		},
		HashAlgorithm: strings.ToLower(getEnv("HASH_ALGORITHM", "sha256")),
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getEnv("SQLITE_PATH", "certtrail.db"),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "certtrail.records"),
		},
		SweepSchedule: os.Getenv("INTEGRITY_SWEEP_SCHEDULE"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	cfg.Redis.PoolSize = getInt("REDIS_POOL_SIZE", 10, &errs)
	cfg.Redis.MinIdleConns = getInt("REDIS_MIN_IDLE_CONNS", 2, &errs)
	cfg.Redis.DialTimeout = getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs)
	cfg.Redis.ReadTimeout = getDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs)
	cfg.Redis.WriteTimeout = getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs)
	cfg.Kafka.Partitions = int32(getInt("KAFKA_PARTITIONS", 1, &errs))
	cfg.Kafka.ReplicationFactor = int16(getInt("KAFKA_REPLICATION_FACTOR", 1, &errs))
	cfg.MaxPayloadBytes = getInt("MAX_PAYLOAD_BYTES", 64<<10, &errs)
	cfg.ReadRetries = getInt("READ_RETRY_ATTEMPTS", 3, &errs)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs)

	if len(errs) > 0 {
		return Server{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects incoherent combinations.
func (c Server) Validate() error {
	var errs []error
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}
	switch c.CertMode {
	case "direct":
		if !c.TLS.Enabled() {
			errs = append(errs, errors.New("CERT_MODE=direct requires TLS_CERT_PATH and TLS_KEY_PATH"))
		}
		if c.Environment == EnvProduction && c.TLS.CAPath == "" {
			errs = append(errs, errors.New("CERT_MODE=direct in production requires TLS_CA_PATH"))
		}
	case "proxy", "proxied", "nginx":
	default:
		errs = append(errs, fmt.Errorf("CERT_MODE must be direct or proxy, got %q", c.CertMode))
	}
	if c.ControllerID == "" {
		errs = append(errs, errors.New("CONTROLLER_ID is required"))
	}
	switch c.CallerSource {
	case CallerSourceService:
		if c.ServiceID == "" {
			errs = append(errs, errors.New("SERVICE_ID is required when CALLER_SOURCE=service"))
		}
	case CallerSourceCertificate:
	default:
		errs = append(errs, fmt.Errorf("CALLER_SOURCE must be service or certificate, got %q", c.CallerSource))
	}
	switch c.HashAlgorithm {
	case "sha256", "keccak256":
	default:
		errs = append(errs, fmt.Errorf("HASH_ALGORITHM must be sha256 or keccak256, got %q", c.HashAlgorithm))
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires DATABASE_URL"))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("STORE_BACKEND=sqlite requires SQLITE_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be memory, postgres or sqlite, got %q", c.StoreBackend))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if c.MaxPayloadBytes <= 0 {
		errs = append(errs, errors.New("MAX_PAYLOAD_BYTES must be positive"))
	}
	if c.ReadRetries < 1 {
		errs = append(errs, errors.New("READ_RETRY_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
