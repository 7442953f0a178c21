package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Body      BodyConfig      `yaml:"body"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Apps      AppsConfig      `yaml:"apps"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + net.JoinHostPort(d.Host, strconv.Itoa(d.Port)) + "/" + d.Name + "?sslmode=disable"
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// BodyConfig controls how request and response bodies are moved.
type BodyConfig struct {
	ChunkSize        int    `yaml:"chunk_size"`
	FlushEachChunk   bool   `yaml:"flush_each_chunk"`
	BufferInput      bool   `yaml:"buffer_input"`
	SpoolMemoryLimit int64  `yaml:"spool_memory_limit"`
	SpoolDir         string `yaml:"spool_dir"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

type AppsConfig struct {
	HelloMessage  []string      `yaml:"hello_message"`
	FilesRoot     string        `yaml:"files_root"`
	ExportQuery   string        `yaml:"export_query"`
	ExportBreaker BreakerConfig `yaml:"export_breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the export database.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Port:            5432,
			Name:            "bodygate",
			User:            "bodygate",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:       0,
			PoolSize: 20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Body: BodyConfig{
			ChunkSize:        32 * 1024,
			FlushEachChunk:   true,
			BufferInput:      true,
			SpoolMemoryLimit: 1 << 20,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 600,
		},
		Apps: AppsConfig{
			HelloMessage:  []string{"He", "llo"},
			FilesRoot:     "public",
			ExportQuery:   "SELECT table_schema, table_name FROM information_schema.tables ORDER BY 1, 2",
			ExportBreaker: BreakerConfig{
				FailureThreshold: 3,
				RecoveryInterval: 30 * time.Second,
			},
		},
	}
}

// Validate reports configuration values the gateway cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Body.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("body.chunk_size must be positive: %d", c.Body.ChunkSize))
	}
	if c.Body.SpoolMemoryLimit < 0 {
		errs = append(errs, fmt.Errorf("body.spool_memory_limit must not be negative: %d", c.Body.SpoolMemoryLimit))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_minute must be positive: %d", c.RateLimit.RequestsPerMinute))
	}
	if c.Apps.ExportBreaker.FailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("apps.export_breaker.failure_threshold must be positive: %d", c.Apps.ExportBreaker.FailureThreshold))
	}
	return errors.Join(errs...)
}
