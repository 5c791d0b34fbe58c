package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/inboxpoll/internal/chat"
	"github.com/teemow/inboxpoll/internal/gmail"
	"github.com/teemow/inboxpoll/internal/imap"
	"github.com/teemow/inboxpoll/internal/instrumentation"
	"github.com/teemow/inboxpoll/internal/poller"
	"github.com/teemow/inboxpoll/internal/server"
)

// Provider names accepted by the "provider" key.
const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

// envPrefix prefixes every environment variable, e.g. INBOXPOLL_SENDER.
const envPrefix = "INBOXPOLL"

// Config is the resolved process configuration. It is built once at start
// and passed down; nothing below cmd reads the environment.
type Config struct {
	Provider        string        `mapstructure:"provider"`
	TokenPath       string        `mapstructure:"token_path"`
	CredentialsPath string        `mapstructure:"credentials_path"`
	Sender          string        `mapstructure:"sender"`
	Interval        time.Duration `mapstructure:"interval"`
	MaxResults      int           `mapstructure:"max_results"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	Interactive     bool          `mapstructure:"interactive"`

	IMAP    IMAPConfig    `mapstructure:"imap"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// IMAPConfig holds the IMAP provider settings.
type IMAPConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Mailbox  string `mapstructure:"mailbox"`
	Insecure bool   `mapstructure:"insecure"`
}

// OpenAIConfig holds the chat model settings.
type OpenAIConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures telemetry export and the metrics server.
type MetricsConfig struct {
	// Enabled starts the metrics server (prometheus exporter only).
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`

	Exporter        string  `mapstructure:"exporter"`
	TracingExporter string  `mapstructure:"tracing_exporter"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
}

// legacyEnv maps config keys to the unprefixed variable names earlier
// versions of the tool used.
var legacyEnv = map[string]string{
	"token_path":       "GMAIL_TOKEN_PATH",
	"credentials_path": "GMAIL_CREDENTIALS_FILE",
	"sender":           "GMAIL_SENDER",
	"openai.api_key":   "OPENAI_API_KEY",
}

// newViper returns a viper instance with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("provider", ProviderGmail)
	v.SetDefault("token_path", "token.json")
	v.SetDefault("credentials_path", "credentials.json")
	v.SetDefault("sender", "")
	v.SetDefault("interval", poller.DefaultInterval)
	v.SetDefault("max_results", poller.DefaultMaxResults)
	v.SetDefault("request_timeout", gmail.DefaultTimeout)
	v.SetDefault("interactive", true)

	v.SetDefault("imap.addr", "")
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.mailbox", imap.DefaultMailbox)
	v.SetDefault("imap.insecure", false)

	v.SetDefault("openai.model", chat.DefaultModel)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	instr := instrumentation.DefaultConfig()
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", server.DefaultMetricsAddr)
	v.SetDefault("metrics.exporter", instr.MetricsExporter)
	v.SetDefault("metrics.tracing_exporter", instr.TracingExporter)
	v.SetDefault("metrics.otlp_endpoint", "")
	v.SetDefault("metrics.otlp_insecure", false)
	v.SetDefault("metrics.sampling_rate", instr.TraceSamplingRate)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		// BindEnv with explicit names replaces the prefixed lookup, so list
		// both; the first one set wins.
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}

	return v
}

// bindFlags binds each flag to the config key of the same name with dashes
// turned into underscores, e.g. --token-path to token_path. Keys listed in
// keys override that mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		key, ok := keys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("failed to bind flag --%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// loadConfig reads the optional config file and resolves the configuration.
func loadConfig(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Sender = strings.TrimSpace(cfg.Sender)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be repaired with a default.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGmail, ProviderIMAP:
	default:
		return fmt.Errorf("unsupported provider %q (supported: %s, %s)", c.Provider, ProviderGmail, ProviderIMAP)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative, got %d", c.MaxResults)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}

// instrumentationConfig derives the telemetry settings.
func (c Config) instrumentationConfig() instrumentation.Config {
	ic := instrumentation.DefaultConfig()
	ic.ServiceVersion = version
	ic.MetricsExporter = c.Metrics.Exporter
	ic.TracingExporter = c.Metrics.TracingExporter
	ic.OTLPEndpoint = c.Metrics.OTLPEndpoint
	ic.OTLPInsecure = c.Metrics.OTLPInsecure
	ic.TraceSamplingRate = c.Metrics.SamplingRate
	ic.MailProvider = c.Provider
	return ic
}

// defaultConfigFile returns ~/.config/inboxpoll/config.yaml if it exists.
func defaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "inboxpoll", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
