package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// InsecureBotToken is the placeholder shipped in example deployments.
const InsecureBotToken = "change-me-in-production"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server         ServerConfig
	BotToken       string //nolint:gosec // G117: shared secret config
	Agent          AgentConfig
	TrustedCallers []string
	Persona        PersonaConfig
	Session        SessionConfig
	Admin          AdminConfig
	Redis          RedisConfig
	Slack          SlackConfig
	Log            LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// AgentConfig holds the agent backend connection settings.
type AgentConfig struct {
	URL     string
	Token   string //nolint:gosec // G117: backend credential config
	ID      string
	Model   string
	Timeout time.Duration
}

// PersonaConfig names the owner and the assistant in greetings and instructions.
type PersonaConfig struct {
	Owner     string
	Assistant string
}

// SessionConfig holds idle-expiry settings.
type SessionConfig struct {
	SweepInterval time.Duration
	IdleTimeout   time.Duration
}

// AdminConfig holds admin API settings. The admin API is off without a secret.
type AdminConfig struct {
	JWTSecret string //nolint:gosec // G117: JWT signing secret config
}

func (c AdminConfig) Enabled() bool { return c.JWTSecret != "" }

// RedisConfig holds Redis connection settings. The event bus is off without an address.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// SlackConfig holds untrusted-caller alert settings.
type SlackConfig struct {
	BotToken     string
	AlertChannel string
}

func (c SlackConfig) Enabled() bool { return c.BotToken != "" && c.AlertChannel != "" }

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables. Legacy variable
// names from earlier deployments are honored when the CALLBRIDGE_ name is unset.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("CALLBRIDGE_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// Backend replies can take most of a minute.
	writeTimeout, err := getEnvDuration("CALLBRIDGE_SERVER_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rps, err := getEnvFloat("CALLBRIDGE_RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	burst, err := getEnvInt("CALLBRIDGE_RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	agentTimeout, err := getEnvDuration("CALLBRIDGE_AGENT_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sweepInterval, err := getEnvDuration("CALLBRIDGE_SWEEP_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	idleTimeout, err := getEnvDuration("CALLBRIDGE_IDLE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("CALLBRIDGE_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:           serverAddr(),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			CORSOrigins:    getEnvList("CALLBRIDGE_CORS_ORIGINS", nil),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		BotToken: getEnvAny("", "CALLBRIDGE_BOT_TOKEN", "BOT_TOKEN"),
		Agent: AgentConfig{
			URL:     getEnvAny("http://localhost:3000", "CALLBRIDGE_AGENT_URL", "OPENCLAW_URL"),
			Token:   getEnvAny("", "CALLBRIDGE_AGENT_TOKEN", "OPENCLAW_TOKEN"),
			ID:      getEnvAny("main", "CALLBRIDGE_AGENT_ID", "AGENT_ID"),
			Model:   getEnv("CALLBRIDGE_AGENT_MODEL", "openclaw"),
			Timeout: agentTimeout,
		},
		TrustedCallers: getEnvListAny([]string{"+31627599508"}, "CALLBRIDGE_TRUSTED_CALLERS", "TRUSTED_CALLERS"),
		Persona: PersonaConfig{
			Owner:     getEnv("CALLBRIDGE_OWNER_NAME", "Mickey"),
			Assistant: getEnv("CALLBRIDGE_ASSISTANT_NAME", "Rex"),
		},
		Session: SessionConfig{
			SweepInterval: sweepInterval,
			IdleTimeout:   idleTimeout,
		},
		Admin: AdminConfig{
			JWTSecret: getEnv("CALLBRIDGE_ADMIN_JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("CALLBRIDGE_REDIS_ADDR", ""),
			Password: getEnv("CALLBRIDGE_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Slack: SlackConfig{
			BotToken:     getEnv("CALLBRIDGE_SLACK_BOT_TOKEN", ""),
			AlertChannel: getEnv("CALLBRIDGE_SLACK_ALERT_CHANNEL", ""),
		},
		Log: LogConfig{
			Level:  getEnv("CALLBRIDGE_LOG_LEVEL", "info"),
			Format: getEnv("CALLBRIDGE_LOG_FORMAT", "json"),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// Warnings lists settings that load fine but are probably mistakes. They are
// logged once the logger is configured.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.BotToken == InsecureBotToken {
		warnings = append(warnings, "CALLBRIDGE_BOT_TOKEN is the example placeholder; set a real secret for production")
	}
	if (c.Slack.BotToken == "") != (c.Slack.AlertChannel == "") {
		warnings = append(warnings, "Slack alerts need both CALLBRIDGE_SLACK_BOT_TOKEN and CALLBRIDGE_SLACK_ALERT_CHANNEL; alerts disabled")
	}
	return warnings
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.BotToken == "" {
		return errors.New("CALLBRIDGE_BOT_TOKEN is required")
	}

	if c.Admin.Enabled() && len(c.Admin.JWTSecret) < 32 {
		return errors.New("CALLBRIDGE_ADMIN_JWT_SECRET must be at least 32 characters")
	}

	if c.Agent.URL == "" {
		return errors.New("CALLBRIDGE_AGENT_URL must not be empty")
	}

	// Bounds checks.
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CALLBRIDGE_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("CALLBRIDGE_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	// Zero turns the limiter off for deployments behind a trusted gateway.
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("CALLBRIDGE_RATE_LIMIT_RPS must be >= 0, got %g", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("CALLBRIDGE_RATE_LIMIT_BURST must be >= 1, got %d", c.Server.RateLimitBurst)
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("CALLBRIDGE_AGENT_TIMEOUT must be positive, got %s", c.Agent.Timeout)
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("CALLBRIDGE_SWEEP_INTERVAL must be positive, got %s", c.Session.SweepInterval)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("CALLBRIDGE_IDLE_TIMEOUT must be positive, got %s", c.Session.IdleTimeout)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("CALLBRIDGE_REDIS_DB must be >= 0, got %d", c.Redis.DB)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("CALLBRIDGE_LOG_LEVEL: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("CALLBRIDGE_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// serverAddr prefers CALLBRIDGE_SERVER_ADDR and otherwise joins HOST and PORT.
func serverAddr() string {
	if v := os.Getenv("CALLBRIDGE_SERVER_ADDR"); v != "" {
		return v
	}
	return net.JoinHostPort(getEnv("HOST", "0.0.0.0"), getEnv("PORT", "3100"))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAny returns the first non-empty value among keys.
func getEnvAny(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func getEnvListAny(fallback []string, keys ...string) []string {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return getEnvList(k, fallback)
		}
	}
	return fallback
}
