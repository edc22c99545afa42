package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Board        BoardConfig        `mapstructure:"board"`
	Telephony    TelephonyConfig    `mapstructure:"telephony"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// BoardConfig holds task-board API credentials and field mappings.
type BoardConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	AccessToken    string        `mapstructure:"access_token"`
	WorkspaceID    string        `mapstructure:"workspace_id"`
	ProjectID      string        `mapstructure:"project_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Fields         FieldIDs      `mapstructure:"fields"`
	Statuses       StatusIDs     `mapstructure:"statuses"`
}

// FieldIDs maps the custom fields the service reads and writes.
type FieldIDs struct {
	PhoneNumber   string `mapstructure:"phone_number"`
	OperationMode string `mapstructure:"operation_mode"`
	RetryCount    string `mapstructure:"retry_count"`
	LastCallTime  string `mapstructure:"last_call_time"`
	CallOutcome   string `mapstructure:"call_outcome"`
	CallSID       string `mapstructure:"call_sid"`
}

// StatusIDs maps lifecycle statuses to board section identifiers.
type StatusIDs struct {
	PendingConfirmation string `mapstructure:"pending_confirmation"`
	Confirmed           string `mapstructure:"confirmed"`
	CustomerUnavailable string `mapstructure:"customer_unavailable"`
}

type TelephonyConfig struct {
	ProviderName   string        `mapstructure:"provider_name"`
	AccountSID     string        `mapstructure:"account_sid"`
	AuthToken      string        `mapstructure:"auth_token"`
	FromNumber     string        `mapstructure:"from_number"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RecordCalls    bool          `mapstructure:"record_calls"`
}

// ConfirmationConfig bounds the call lifecycle behavior.
type ConfirmationConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	CallbackBaseURL string        `mapstructure:"callback_base_url"`
}

type RegistryConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	ClientID     string   `mapstructure:"client_id"`
	OutcomeTopic string   `mapstructure:"outcome_topic"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("CONFIRM")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("board.base_url", "https://app.asana.com/api/1.0")
	v.SetDefault("board.request_timeout", 15*time.Second)
	v.SetDefault("telephony.base_url", "https://api.twilio.com")
	v.SetDefault("telephony.request_timeout", 10*time.Second)
	v.SetDefault("confirmation.max_attempts", 3)
	v.SetDefault("confirmation.retry_delay", time.Hour)
	v.SetDefault("confirmation.poll_interval", 5*time.Minute)
	v.SetDefault("confirmation.tick_interval", time.Minute)
	v.SetDefault("registry.backend", "memory")
	v.SetDefault("registry.ttl", 24*time.Hour)
}

// Validate checks fields the service cannot run without.
func (c *Config) Validate() error {
	if c.Board.AccessToken == "" {
		return fmt.Errorf("config: board.access_token is required")
	}
	if c.Board.ProjectID == "" {
		return fmt.Errorf("config: board.project_id is required")
	}
	if c.Confirmation.CallbackBaseURL == "" {
		return fmt.Errorf("config: confirmation.callback_base_url is required")
	}
	if c.Confirmation.MaxAttempts <= 0 {
		return fmt.Errorf("config: confirmation.max_attempts must be positive")
	}
	if c.Registry.Backend != "memory" && c.Registry.Backend != "redis" {
		return fmt.Errorf("config: registry.backend must be memory or redis, got %q", c.Registry.Backend)
	}
	return nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
