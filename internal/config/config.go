package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Identity  IdentityConfig  `yaml:"identity"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sanitize  SanitizeConfig  `yaml:"sanitize"`
	CORS      CORSConfig      `yaml:"cors"`
	Policy    PolicyConfig    `yaml:"policy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// IdentityConfig points at the identity provider's token introspection
// endpoint. The gateway never sees credentials, only opaque bearer tokens.
type IdentityConfig struct {
	IntrospectionURL string        `yaml:"introspection_url"`
	ClientSecret     string        `yaml:"client_secret"`
	Timeout          time.Duration `yaml:"timeout"`
}

// DatabaseConfig is the mission catalog store. Optional: with an empty host
// the built-in catalog is used.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// UpstreamConfig describes the model provider and the credential mint flow.
type UpstreamConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIVersion       string        `yaml:"api_version"`
	DefaultModel     string        `yaml:"default_model"`
	TokenURL         string        `yaml:"token_url"`
	ServiceAccount   string        `yaml:"service_account"`
	PrivateKeyPath   string        `yaml:"private_key_path"`
	Scope            string        `yaml:"scope"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	FirstByteTimeout time.Duration `yaml:"first_byte_timeout"`
}

type RateLimitConfig struct {
	Window     time.Duration `yaml:"window"`
	MaxActions int           `yaml:"max_actions"`
	Cooldown   time.Duration `yaml:"cooldown"`
}

type SanitizeConfig struct {
	ScanHistory bool `yaml:"scan_history"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	DefaultOrigin  string   `yaml:"default_origin"`
}

type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

type TelemetryConfig struct {
	MetricsPort int    `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
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
		Identity: IdentityConfig{
			IntrospectionURL: "http://localhost:9400/v1/introspect",
			Timeout:          5 * time.Second,
		},
		Database: DatabaseConfig{
			Port: 5432,
			Name: "mentor",
			User: "mentor",
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 50,
		},
		Upstream: UpstreamConfig{
			BaseURL:          "https://generativelanguage.googleapis.com",
			APIVersion:       "v1beta",
			DefaultModel:     "gemini-2.0-flash",
			TokenURL:         "https://oauth2.googleapis.com/token",
			Scope:            "https://www.googleapis.com/auth/generative-language",
			RequestTimeout:   30 * time.Second,
			FirstByteTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window:     time.Minute,
			MaxActions: 10,
			Cooldown:   10 * time.Second,
		},
		Sanitize: SanitizeConfig{
			ScanHistory: true,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"https://app.lumora-edu.nl", "http://localhost:5173"},
			DefaultOrigin:  "https://app.lumora-edu.nl",
		},
		Policy: PolicyConfig{
			Enabled:           false,
			BundlePath:        "configs/policies",
			EvaluationTimeout: 100 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			MetricsPort: 9090,
			LogLevel:    "info",
		},
	}
}
