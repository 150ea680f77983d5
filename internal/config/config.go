// Package config loads and validates console configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Operation names in their fixed execution order.
const (
	OpFetchData            = "fetch_data"
	OpValidateImages       = "validate_images"
	OpPrepareDataset       = "prepare_dataset"
	OpStartBatchProcessing = "start_batch_processing"
)

// OperationOrder lists every operation in the order the sequencer runs them.
var OperationOrder = []string{
	OpFetchData,
	OpValidateImages,
	OpPrepareDataset,
	OpStartBatchProcessing,
}

// Credential transports supported by the backend integration.
const (
	TransportQuery  = "query"
	TransportHeader = "header"
)

// Failure policies for the sequencer.
const (
	PolicyContinue = "continue"
	PolicyStop     = "stop"
	PolicyAsk      = "ask"
)

// Console trigger modes.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Config captures all knobs loaded via Viper.
type Config struct {
	Backend    BackendConfig              `mapstructure:"backend"`
	Operations map[string]OperationConfig `mapstructure:"operations"`
	Sequencer  SequencerConfig            `mapstructure:"sequencer"`
	Console    ConsoleConfig              `mapstructure:"console"`
	Server     ServerConfig               `mapstructure:"server"`
	Logging    LoggingConfig              `mapstructure:"logging"`
}

// BackendConfig describes how to reach the remote service.
type BackendConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	CredentialTransport string        `mapstructure:"credential_transport"`
	AuthTimeout         time.Duration `mapstructure:"auth_timeout"`
	// MaxBodyBytes caps how much of a response body is read. Zero uses the client default.
	MaxBodyBytes        int64         `mapstructure:"max_body_bytes"`
}

// OperationConfig tunes a single remote operation. A zero timeout disables the deadline.
type OperationConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	SendCredential bool          `mapstructure:"send_credential"`
}

// SequencerConfig controls what happens after an operation fails.
type SequencerConfig struct {
	OnFailure string `mapstructure:"on_failure"`
}

// ConsoleConfig controls the interactive terminal surface.
type ConsoleConfig struct {
	Mode    string `mapstructure:"mode"`
	NoColor bool   `mapstructure:"no_color"`
}

// ServerConfig controls the optional HTTP API. RateLimitRPS throttles /v1
// requests per client address; zero disables throttling.
type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional .env file, an optional config file and the environment.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("FLOWFACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := v.BindEnv("sequencer.on_failure"); err != nil {
		return Config{}, fmt.Errorf("bind sequencer.on_failure: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv exports variables from a .env file without overriding the real environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8000/flowfact")
	v.SetDefault("backend.credential_transport", TransportQuery)
	v.SetDefault("backend.auth_timeout", "5s")
	v.SetDefault("backend.max_body_bytes", 32<<20)
	v.SetDefault("operations."+OpFetchData+".timeout", "520s")
	v.SetDefault("operations."+OpFetchData+".send_credential", true)
	v.SetDefault("operations."+OpValidateImages+".timeout", "900s")
	v.SetDefault("operations."+OpValidateImages+".send_credential", true)
	v.SetDefault("operations."+OpPrepareDataset+".timeout", "900s")
	v.SetDefault("operations."+OpPrepareDataset+".send_credential", true)
	v.SetDefault("operations."+OpStartBatchProcessing+".timeout", "9000s")
	v.SetDefault("operations."+OpStartBatchProcessing+".send_credential", true)
	// sequencer.on_failure has no default; Validate rejects an empty value.
	v.SetDefault("console.mode", ModeAuto)
	v.SetDefault("console.no_color", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 1.0)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "warn")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute http(s) URL, got %q", c.Backend.BaseURL)
	}
	switch c.Backend.CredentialTransport {
	case TransportQuery, TransportHeader:
	default:
		return fmt.Errorf("backend.credential_transport must be %q or %q", TransportQuery, TransportHeader)
	}
	if c.Backend.AuthTimeout < 0 {
		return fmt.Errorf("backend.auth_timeout must be >= 0")
	}
	if c.Backend.MaxBodyBytes < 0 {
		return fmt.Errorf("backend.max_body_bytes must be >= 0")
	}
	for _, name := range OperationOrder {
		op, ok := c.Operations[name]
		if !ok {
			return fmt.Errorf("operations.%s is missing", name)
		}
		if op.Timeout < 0 {
			return fmt.Errorf("operations.%s.timeout must be >= 0", name)
		}
	}
	if err := ValidatePolicy(c.Sequencer.OnFailure); err != nil {
		return fmt.Errorf("sequencer.on_failure: %w", err)
	}
	switch c.Console.Mode {
	case ModeAuto, ModeManual:
	default:
		return fmt.Errorf("console.mode must be %q or %q", ModeAuto, ModeManual)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("server.rate_limit_rps and server.rate_limit_burst must be >= 0")
	}
	return nil
}

// ErrInvalidPolicy reports an unknown or missing failure policy.
var ErrInvalidPolicy = errors.New("failure policy must be one of continue, stop, ask")

// ValidatePolicy checks a failure policy name.
func ValidatePolicy(policy string) error {
	switch policy {
	case PolicyContinue, PolicyStop, PolicyAsk:
		return nil
	default:
		return fmt.Errorf("%w (got %q)", ErrInvalidPolicy, policy)
	}
}
