package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for the CfP auth service.
// Loaded once at startup and treated as immutable afterwards.
type Config struct {
	Service   ServiceConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	GitHub    GitHubConfig
	Token     TokenConfig
	Tracing   TracingConfig
	Profiling ProfilingConfig

	// Graceful shutdown tuning, in seconds.
	ShutdownTimeoutSeconds     int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`
	ReadinessDrainDelaySeconds int `env:"READINESS_DRAIN_DELAY_SECONDS" envDefault:"5"`
}

// ServiceConfig identifies the service instance.
type ServiceConfig struct {
	Name    string `env:"SERVICE_NAME" envDefault:"cfp-auth"`
	Version string `env:"SERVICE_VERSION" envDefault:"dev"`
	Env     string `env:"APP_ENV" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// DatabaseConfig holds the pgx pool connection string.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

// GitHubConfig holds the OAuth app credentials and the org/team whose
// members are granted the admin role.
type GitHubConfig struct {
	ClientID     string `env:"GITHUB_CLIENT_ID"`
	ClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	RedirectURL  string `env:"GITHUB_REDIRECT_URL" envDefault:"http://localhost:8080/api/v1/auth/github/callback"`
	Org          string `env:"GITHUB_ORG" envDefault:"tryswift"`
	Team         string `env:"GITHUB_TEAM" envDefault:"tokyo"`
}

// TokenConfig holds the session-credential signing secret.
type TokenConfig struct {
	Secret string `env:"TOKEN_SECRET"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Endpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled  bool   `env:"PROFILING_ENABLED" envDefault:"false"`
	Endpoint string `env:"PYROSCOPE_SERVER_ADDRESS" envDefault:"http://localhost:4040"`
}

// Load reads configuration from the environment. A .env file, if present,
// is loaded first so local development does not need exported variables.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic("parse environment: " + err.Error())
	}
	return cfg
}

// Validate checks that every variable the service cannot run without is set.
// The process must not serve traffic when any of these are missing.
func (c *Config) Validate() error {
	var missing []string
	if c.GitHub.ClientID == "" {
		missing = append(missing, "GITHUB_CLIENT_ID")
	}
	if c.GitHub.ClientSecret == "" {
		missing = append(missing, "GITHUB_CLIENT_SECRET")
	}
	if c.Token.Secret == "" {
		missing = append(missing, "TOKEN_SECRET")
	}
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
// It gates the Secure flag on the CSRF cookie.
func (c *Config) IsProduction() bool {
	return c.Service.Env == "production"
}

// GetShutdownTimeoutDuration returns the graceful shutdown timeout.
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// GetReadinessDrainDelayDuration returns how long the service keeps serving
// after failing its readiness probe, so load balancers stop routing to it
// before the HTTP listener shuts down.
func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return time.Duration(c.ReadinessDrainDelaySeconds) * time.Second
}
