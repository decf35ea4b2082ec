package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allKeys lists every variable Load reads so tests start from a clean slate.
var allKeys = []string{
	"CALLBRIDGE_SERVER_ADDR", "HOST", "PORT",
	"CALLBRIDGE_SERVER_READ_TIMEOUT", "CALLBRIDGE_SERVER_WRITE_TIMEOUT",
	"CALLBRIDGE_CORS_ORIGINS", "CALLBRIDGE_RATE_LIMIT_RPS", "CALLBRIDGE_RATE_LIMIT_BURST",
	"CALLBRIDGE_BOT_TOKEN", "BOT_TOKEN",
	"CALLBRIDGE_AGENT_URL", "OPENCLAW_URL",
	"CALLBRIDGE_AGENT_TOKEN", "OPENCLAW_TOKEN",
	"CALLBRIDGE_AGENT_ID", "AGENT_ID",
	"CALLBRIDGE_AGENT_MODEL", "CALLBRIDGE_AGENT_TIMEOUT",
	"CALLBRIDGE_TRUSTED_CALLERS", "TRUSTED_CALLERS",
	"CALLBRIDGE_OWNER_NAME", "CALLBRIDGE_ASSISTANT_NAME",
	"CALLBRIDGE_SWEEP_INTERVAL", "CALLBRIDGE_IDLE_TIMEOUT",
	"CALLBRIDGE_ADMIN_JWT_SECRET",
	"CALLBRIDGE_REDIS_ADDR", "CALLBRIDGE_REDIS_PASSWORD", "CALLBRIDGE_REDIS_DB",
	"CALLBRIDGE_SLACK_BOT_TOKEN", "CALLBRIDGE_SLACK_ALERT_CHANNEL",
	"CALLBRIDGE_LOG_LEVEL", "CALLBRIDGE_LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "CALLBRIDGE_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "CALLBRIDGE_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "CALLBRIDGE_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
		{name: "preserves whitespace", key: "CALLBRIDGE_TEST_GETENV_WS", setVal: strPtr("  spaced  "), fallback: "x", want: "  spaced  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvAny(t *testing.T) {
	t.Run("first key wins", func(t *testing.T) {
		t.Setenv("CALLBRIDGE_TEST_ANY_A", "a")
		t.Setenv("CALLBRIDGE_TEST_ANY_B", "b")

		assert.Equal(t, "a", getEnvAny("x", "CALLBRIDGE_TEST_ANY_A", "CALLBRIDGE_TEST_ANY_B"))
	})

	t.Run("falls through to alias", func(t *testing.T) {
		t.Setenv("CALLBRIDGE_TEST_ANY_A", "")
		t.Setenv("CALLBRIDGE_TEST_ANY_B", "b")

		assert.Equal(t, "b", getEnvAny("x", "CALLBRIDGE_TEST_ANY_A", "CALLBRIDGE_TEST_ANY_B"))
	})

	t.Run("fallback when none set", func(t *testing.T) {
		assert.Equal(t, "x", getEnvAny("x", "CALLBRIDGE_TEST_ANY_NONE_A", "CALLBRIDGE_TEST_ANY_NONE_B"))
	})
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback int
		want     int
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "CALLBRIDGE_TEST_INT_UNSET", setVal: nil, fallback: 42, want: 42},
		{name: "parses valid int", key: "CALLBRIDGE_TEST_INT_VALID", setVal: strPtr("8080"), fallback: 0, want: 8080},
		{name: "parses negative int", key: "CALLBRIDGE_TEST_INT_NEG", setVal: strPtr("-1"), fallback: 0, want: -1},
		{name: "returns fallback for empty string", key: "CALLBRIDGE_TEST_INT_EMPTY", setVal: strPtr(""), fallback: 25, want: 25},
		{name: "errors on non-numeric", key: "CALLBRIDGE_TEST_INT_NAN", setVal: strPtr("abc"), fallback: 0, wantErr: true},
		{name: "errors on float", key: "CALLBRIDGE_TEST_INT_FLOAT", setVal: strPtr("3.14"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvInt(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback float64
		want     float64
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "CALLBRIDGE_TEST_FLOAT_UNSET", setVal: nil, fallback: 20, want: 20},
		{name: "parses float", key: "CALLBRIDGE_TEST_FLOAT_VALID", setVal: strPtr("0.5"), fallback: 0, want: 0.5},
		{name: "parses int", key: "CALLBRIDGE_TEST_FLOAT_INT", setVal: strPtr("3"), fallback: 0, want: 3},
		{name: "errors on invalid", key: "CALLBRIDGE_TEST_FLOAT_INV", setVal: strPtr("fast"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvFloat(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "CALLBRIDGE_TEST_DUR_UNSET", setVal: nil, fallback: 5 * time.Second, want: 5 * time.Second},
		{name: "parses seconds", key: "CALLBRIDGE_TEST_DUR_SEC", setVal: strPtr("30s"), fallback: 0, want: 30 * time.Second},
		{name: "parses composite", key: "CALLBRIDGE_TEST_DUR_COMP", setVal: strPtr("1h30m"), fallback: 0, want: 90 * time.Minute},
		{name: "errors on invalid", key: "CALLBRIDGE_TEST_DUR_INV", setVal: strPtr("notaduration"), fallback: 0, wantErr: true},
		{name: "errors on bare number", key: "CALLBRIDGE_TEST_DUR_BARE", setVal: strPtr("30"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback []string
		want     []string
	}{
		{name: "returns fallback when unset", key: "CALLBRIDGE_TEST_LIST_UNSET", fallback: []string{"a"}, want: []string{"a"}},
		{name: "splits and trims", key: "CALLBRIDGE_TEST_LIST_SPLIT", setVal: strPtr(" +1 , +2,+3 "), want: []string{"+1", "+2", "+3"}},
		{name: "drops empty entries", key: "CALLBRIDGE_TEST_LIST_EMPTY", setVal: strPtr("+1,,  ,+2"), want: []string{"+1", "+2"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			assert.Equal(t, tc.want, getEnvList(tc.key, tc.fallback))
		})
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_MissingBotToken(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLBRIDGE_BOT_TOKEN is required")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALLBRIDGE_BOT_TOKEN", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3100", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
	assert.Empty(t, cfg.Server.CORSOrigins)
	assert.InDelta(t, 20.0, cfg.Server.RateLimitRPS, 0)
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)

	assert.Equal(t, "s3cret", cfg.BotToken)

	assert.Equal(t, "http://localhost:3000", cfg.Agent.URL)
	assert.Empty(t, cfg.Agent.Token)
	assert.Equal(t, "main", cfg.Agent.ID)
	assert.Equal(t, "openclaw", cfg.Agent.Model)
	assert.Equal(t, 60*time.Second, cfg.Agent.Timeout)

	assert.Equal(t, []string{"+31627599508"}, cfg.TrustedCallers)
	assert.Equal(t, "Mickey", cfg.Persona.Owner)
	assert.Equal(t, "Rex", cfg.Persona.Assistant)

	assert.Equal(t, 60*time.Second, cfg.Session.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)

	assert.False(t, cfg.Admin.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Slack.Enabled())

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_LegacyAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "legacy-token")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "8081")
	t.Setenv("OPENCLAW_URL", "http://gateway:3000")
	t.Setenv("OPENCLAW_TOKEN", "gw-token")
	t.Setenv("AGENT_ID", "voice")
	t.Setenv("TRUSTED_CALLERS", "+31600000001, +31600000002")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "legacy-token", cfg.BotToken)
	assert.Equal(t, "127.0.0.1:8081", cfg.Server.Addr)
	assert.Equal(t, "http://gateway:3000", cfg.Agent.URL)
	assert.Equal(t, "gw-token", cfg.Agent.Token)
	assert.Equal(t, "voice", cfg.Agent.ID)
	assert.Equal(t, []string{"+31600000001", "+31600000002"}, cfg.TrustedCallers)
}

func TestLoad_PrefixedOverridesAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALLBRIDGE_BOT_TOKEN", "new")
	t.Setenv("BOT_TOKEN", "old")
	t.Setenv("CALLBRIDGE_SERVER_ADDR", ":9000")
	t.Setenv("PORT", "8081")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "new", cfg.BotToken)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoad_AllCustomValues(t *testing.T) {
	clearEnv(t)
	env := map[string]string{
		"CALLBRIDGE_SERVER_ADDR":          ":4000",
		"CALLBRIDGE_SERVER_READ_TIMEOUT":  "5s",
		"CALLBRIDGE_SERVER_WRITE_TIMEOUT": "90s",
		"CALLBRIDGE_CORS_ORIGINS":         "https://ops.example.com",
		"CALLBRIDGE_RATE_LIMIT_RPS":       "2.5",
		"CALLBRIDGE_RATE_LIMIT_BURST":     "5",
		"CALLBRIDGE_BOT_TOKEN":            "bot",
		"CALLBRIDGE_AGENT_URL":            "http://agent:3000",
		"CALLBRIDGE_AGENT_TOKEN":          "agent-token",
		"CALLBRIDGE_AGENT_ID":             "voice",
		"CALLBRIDGE_AGENT_MODEL":          "gpt",
		"CALLBRIDGE_AGENT_TIMEOUT":        "30s",
		"CALLBRIDGE_TRUSTED_CALLERS":      "+1,+2",
		"CALLBRIDGE_OWNER_NAME":           "Ada",
		"CALLBRIDGE_ASSISTANT_NAME":       "Bob",
		"CALLBRIDGE_SWEEP_INTERVAL":       "10s",
		"CALLBRIDGE_IDLE_TIMEOUT":         "1m",
		"CALLBRIDGE_ADMIN_JWT_SECRET":     "admin-secret-at-least-32-characters",
		"CALLBRIDGE_REDIS_ADDR":           "redis:6379",
		"CALLBRIDGE_REDIS_PASSWORD":       "pw",
		"CALLBRIDGE_REDIS_DB":             "2",
		"CALLBRIDGE_SLACK_BOT_TOKEN":      "xoxb-1",
		"CALLBRIDGE_SLACK_ALERT_CHANNEL":  "C123",
		"CALLBRIDGE_LOG_LEVEL":            "debug",
		"CALLBRIDGE_LOG_FORMAT":           "text",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 2.5, cfg.Server.RateLimitRPS, 0)
	assert.Equal(t, 5, cfg.Server.RateLimitBurst)
	assert.Equal(t, "http://agent:3000", cfg.Agent.URL)
	assert.Equal(t, "agent-token", cfg.Agent.Token)
	assert.Equal(t, "voice", cfg.Agent.ID)
	assert.Equal(t, "gpt", cfg.Agent.Model)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, []string{"+1", "+2"}, cfg.TrustedCallers)
	assert.Equal(t, PersonaConfig{Owner: "Ada", Assistant: "Bob"}, cfg.Persona)
	assert.Equal(t, SessionConfig{SweepInterval: 10 * time.Second, IdleTimeout: time.Minute}, cfg.Session)
	assert.True(t, cfg.Admin.Enabled())
	assert.Equal(t, RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2}, cfg.Redis)
	assert.True(t, cfg.Slack.Enabled())
	assert.Equal(t, LogConfig{Level: "debug", Format: "text"}, cfg.Log)
}

func TestLoad_InvalidEnvVars(t *testing.T) {
	tests := []struct {
		name      string
		envKey    string
		envVal    string
		wantInErr string
	}{
		{name: "read timeout not a duration", envKey: "CALLBRIDGE_SERVER_READ_TIMEOUT", envVal: "soon", wantInErr: "CALLBRIDGE_SERVER_READ_TIMEOUT"},
		{name: "read timeout zero", envKey: "CALLBRIDGE_SERVER_READ_TIMEOUT", envVal: "0s", wantInErr: "must be positive"},
		{name: "write timeout negative", envKey: "CALLBRIDGE_SERVER_WRITE_TIMEOUT", envVal: "-1s", wantInErr: "must be positive"},
		{name: "rps not a number", envKey: "CALLBRIDGE_RATE_LIMIT_RPS", envVal: "many", wantInErr: "CALLBRIDGE_RATE_LIMIT_RPS"},
		{name: "rps negative", envKey: "CALLBRIDGE_RATE_LIMIT_RPS", envVal: "-1", wantInErr: "must be >= 0"},
		{name: "burst zero", envKey: "CALLBRIDGE_RATE_LIMIT_BURST", envVal: "0", wantInErr: "must be >= 1"},
		{name: "agent timeout zero", envKey: "CALLBRIDGE_AGENT_TIMEOUT", envVal: "0s", wantInErr: "CALLBRIDGE_AGENT_TIMEOUT"},
		{name: "sweep interval zero", envKey: "CALLBRIDGE_SWEEP_INTERVAL", envVal: "0s", wantInErr: "CALLBRIDGE_SWEEP_INTERVAL"},
		{name: "idle timeout bad", envKey: "CALLBRIDGE_IDLE_TIMEOUT", envVal: "5", wantInErr: "CALLBRIDGE_IDLE_TIMEOUT"},
		{name: "redis db negative", envKey: "CALLBRIDGE_REDIS_DB", envVal: "-1", wantInErr: "CALLBRIDGE_REDIS_DB"},
		{name: "short admin secret", envKey: "CALLBRIDGE_ADMIN_JWT_SECRET", envVal: "short", wantInErr: "at least 32 characters"},
		{name: "bad log level", envKey: "CALLBRIDGE_LOG_LEVEL", envVal: "loud", wantInErr: "CALLBRIDGE_LOG_LEVEL"},
		{name: "bad log format", envKey: "CALLBRIDGE_LOG_FORMAT", envVal: "xml", wantInErr: "CALLBRIDGE_LOG_FORMAT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CALLBRIDGE_BOT_TOKEN", "s3cret")
			t.Setenv(tc.envKey, tc.envVal)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantInErr)
		})
	}
}

func TestLoad_RateLimitDisabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALLBRIDGE_BOT_TOKEN", "s3cret")
	t.Setenv("CALLBRIDGE_RATE_LIMIT_RPS", "0")
	t.Setenv("CALLBRIDGE_RATE_LIMIT_BURST", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.Server.RateLimitRPS)
}

func TestLoad_PlaceholderTokenAccepted(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALLBRIDGE_BOT_TOKEN", InsecureBotToken)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, InsecureBotToken, cfg.BotToken)

	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "placeholder")
}

func TestConfig_Warnings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{name: "clean", cfg: Config{BotToken: "s3cret"}, want: 0},
		{name: "slack half configured", cfg: Config{BotToken: "s3cret", Slack: SlackConfig{BotToken: "xoxb-1"}}, want: 1},
		{name: "slack fully configured", cfg: Config{BotToken: "s3cret", Slack: SlackConfig{BotToken: "xoxb-1", AlertChannel: "C1"}}, want: 0},
		{name: "placeholder and slack", cfg: Config{BotToken: InsecureBotToken, Slack: SlackConfig{AlertChannel: "C1"}}, want: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Len(t, tc.cfg.Warnings(), tc.want)
		})
	}
}

func strPtr(s string) *string {
	return &s
}
