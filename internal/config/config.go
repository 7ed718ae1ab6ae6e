// Package config provides application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables (UPLIFT_* plus a few well-known secrets)
//  2. Config file (./config.yaml or /etc/uplift/config.yaml)
//  3. Defaults
//
// Sensitive fields (database password, OTLP API key, MCP headers) are masked
// in MarshalJSON so a Config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates an empty or malformed model identifier.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidPostgresDSN indicates the PostgreSQL settings are unusable.
	ErrInvalidPostgresDSN = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidAddr indicates the listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidStreamTuning indicates a stream timing value is non-positive.
	ErrInvalidStreamTuning = errors.New("invalid stream tuning")
)

// Provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

// DefaultEmbedderModel is the embedder used for memory and knowledge vectors.
// gemini-embedding-001 is truncated to 768 dimensions to match the pgvector
// schema; see memory.VectorDimension.
const DefaultEmbedderModel = "gemini-embedding-001"

// StreamConfig tunes the orchestration loop's liveness policy.
type StreamConfig struct {
	// HeartbeatInterval is the wall-clock gap between keep-alive events.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`
	// PullTimeout bounds each wait for the next upstream event. Elapsing is
	// not an error; the loop ticks and waits again.
	PullTimeout time.Duration `mapstructure:"pull_timeout" json:"pull_timeout"`
	// SoftCeiling is the elapsed time after which a one-time long-running
	// notice is emitted. The stream continues.
	SoftCeiling time.Duration `mapstructure:"soft_ceiling" json:"soft_ceiling"`
	// HardCeiling aborts a stream that makes no progress past it. Zero
	// disables the ceiling.
	HardCeiling time.Duration `mapstructure:"hard_ceiling" json:"hard_ceiling"`
}

// CrawlerConfig holds the web crawler toolset configuration.
type CrawlerConfig struct {
	// Parallelism is max concurrent requests per domain.
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	// DelayMs is the delay between requests in milliseconds.
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// TimeoutMs is the per-request timeout in milliseconds.
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// OTLPConfig configures trace export over OTLP/HTTP.
type OTLPConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	APIKey      string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
}

// MarshalJSON masks the API key.
func (o OTLPConfig) MarshalJSON() ([]byte, error) {
	type alias OTLPConfig
	a := alias(o)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal otlp config: %w", err)
	}
	return data, nil
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON. When adding
// new secrets, update MarshalJSON as well.
type Config struct {
	// HTTP server
	Addr       string `mapstructure:"addr" json:"addr"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For behind a reverse proxy

	// Rate limiting (per client IP)
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Model selection. PreferredModel is tried first; FallbackModel backs the
	// degraded configurations of the agent manager.
	Provider       string  `mapstructure:"provider" json:"provider"`
	PreferredModel string  `mapstructure:"preferred_model" json:"preferred_model"`
	FallbackModel  string  `mapstructure:"fallback_model" json:"fallback_model"`
	Temperature    float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" json:"max_tokens"`
	EmbedderModel  string  `mapstructure:"embedder_model" json:"embedder_model"`

	// Long-term memory toggle. When false the gateway degrades to empty
	// context and skips all writes.
	MemoryEnabled bool `mapstructure:"memory_enabled" json:"memory_enabled"`

	// SessionDir holds per-user short-term session transcripts.
	SessionDir string `mapstructure:"session_dir" json:"session_dir"`

	// PostgreSQL (memory + knowledge stores)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Stream  StreamConfig  `mapstructure:"stream" json:"stream"`
	Crawler CrawlerConfig `mapstructure:"crawler" json:"crawler"`
	OTLP    OTLPConfig    `mapstructure:"otlp" json:"otlp"`

	// MCP documentation servers, keyed by server name.
	MCP        MCPConfig            `mapstructure:"mcp" json:"mcp"`
	MCPServers map[string]MCPServer `mapstructure:"mcp_servers" json:"mcp_servers"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/uplift")

	setDefaults(v)

	v.SetEnvPrefix("UPLIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_limit_rps", 5.0)
	v.SetDefault("rate_limit_burst", 10)

	v.SetDefault("provider", ProviderGoogleAI)
	v.SetDefault("preferred_model", "gemini-2.5-pro")
	v.SetDefault("fallback_model", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("memory_enabled", true)
	v.SetDefault("session_dir", "./sessions")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "uplift")
	v.SetDefault("postgres_password", "uplift_dev_password")
	v.SetDefault("postgres_db_name", "uplift")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("stream.heartbeat_interval", 5*time.Second)
	v.SetDefault("stream.pull_timeout", 10*time.Second)
	v.SetDefault("stream.soft_ceiling", 240*time.Second)
	v.SetDefault("stream.hard_ceiling", 12*time.Minute)

	v.SetDefault("crawler.parallelism", 2)
	v.SetDefault("crawler.delay_ms", 1000)
	v.SetDefault("crawler.timeout_ms", 30000)

	v.SetDefault("mcp.timeout", 5)

	v.SetDefault("otlp.endpoint", "localhost:4318")
	v.SetDefault("otlp.environment", "dev")
	v.SetDefault("otlp.service_name", "uplift")
}

// bindEnvVariables binds the secrets that arrive under non-prefixed names.
// GEMINI_API_KEY is read directly by the genkit plugin, not via viper;
// Validate checks its presence for the googleai provider.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key string, envVars ...string) {
		if err := v.BindEnv(append([]string{key}, envVars...)...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %v: %v", key, envVars, err))
		}
	}

	mustBind("postgres_password", "UPLIFT_POSTGRES_PASSWORD", "PGPASSWORD")
	mustBind("otlp.api_key", "DD_API_KEY")
}

// ConnString returns the pgx connection string for the configured database.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// FullModelName returns the provider-qualified name genkit expects, e.g.
// "googleai/gemini-2.5-pro". Names already containing "/" pass through.
func (c *Config) FullModelName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + name
	default:
		return ProviderGoogleAI + "/" + name
	}
}

// Validate performs fail-fast range checks.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddr)
	}
	if c.PreferredModel == "" || c.FallbackModel == "" {
		return fmt.Errorf("%w: preferred and fallback must both be set", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v not in [0, 2]", ErrInvalidTemperature, c.Temperature)
	}
	if c.PostgresHost == "" || c.PostgresDBName == "" {
		return fmt.Errorf("%w: host and database name required", ErrInvalidPostgresDSN)
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgresDSN, c.PostgresPort)
	}
	if c.Stream.HeartbeatInterval <= 0 || c.Stream.PullTimeout <= 0 || c.Stream.SoftCeiling <= 0 {
		return fmt.Errorf("%w: heartbeat, pull timeout and soft ceiling must be positive", ErrInvalidStreamTuning)
	}
	if c.Stream.HardCeiling < 0 {
		return fmt.Errorf("%w: hard ceiling must be >= 0", ErrInvalidStreamTuning)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data. Full-width blocks
// avoid accidental substring matches against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 bytes or fewer are
// fully masked; longer ones keep the first and last two characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
