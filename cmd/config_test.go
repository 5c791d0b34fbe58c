package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets variables that would leak the developer's environment
// into config tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GMAIL_TOKEN_PATH", "GMAIL_CREDENTIALS_FILE", "GMAIL_SENDER", "OPENAI_API_KEY",
		"INBOXPOLL_TOKEN_PATH", "INBOXPOLL_SENDER", "INBOXPOLL_PROVIDER", "INBOXPOLL_INTERVAL",
		"INBOXPOLL_IMAP_ADDR", "INBOXPOLL_OPENAI_API_KEY",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)

	assert.Equal(t, ProviderGmail, cfg.Provider)
	assert.Equal(t, "token.json", cfg.TokenPath)
	assert.Equal(t, "credentials.json", cfg.CredentialsPath)
	assert.Empty(t, cfg.Sender)
	assert.Equal(t, 60*time.Second, cfg.Interval)
	assert.Equal(t, 100, cfg.MaxResults)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Interactive)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadConfig_LegacyEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GMAIL_TOKEN_PATH", "/secrets/token.json")
	t.Setenv("GMAIL_CREDENTIALS_FILE", "/secrets/credentials.json")
	t.Setenv("GMAIL_SENDER", " alerts@example.com ")
	t.Setenv("OPENAI_API_KEY", "sk-legacy")

	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "/secrets/token.json", cfg.TokenPath)
	assert.Equal(t, "/secrets/credentials.json", cfg.CredentialsPath)
	assert.Equal(t, "alerts@example.com", cfg.Sender)
	assert.Equal(t, "sk-legacy", cfg.OpenAI.APIKey)
}

func TestLoadConfig_PrefixedEnvironmentWinsOverLegacy(t *testing.T) {
	clearEnv(t)
	t.Setenv("GMAIL_SENDER", "legacy@example.com")
	t.Setenv("INBOXPOLL_SENDER", "new@example.com")
	t.Setenv("INBOXPOLL_INTERVAL", "2m")
	t.Setenv("INBOXPOLL_PROVIDER", "IMAP")
	t.Setenv("INBOXPOLL_IMAP_ADDR", "imap.example.com:993")

	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", cfg.Sender)
	assert.Equal(t, 2*time.Minute, cfg.Interval)
	assert.Equal(t, ProviderIMAP, cfg.Provider)
	assert.Equal(t, "imap.example.com:993", cfg.IMAP.Addr)
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: imap
sender: boss@example.com
interval: 30s
max_results: 0
imap:
  addr: mail.example.com:993
  username: me
log:
  format: json
`), 0o600))

	cfg, err := loadConfig(newViper(), path)
	require.NoError(t, err)

	assert.Equal(t, ProviderIMAP, cfg.Provider)
	assert.Equal(t, "boss@example.com", cfg.Sender)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 0, cfg.MaxResults)
	assert.Equal(t, "mail.example.com:993", cfg.IMAP.Addr)
	assert.Equal(t, "me", cfg.IMAP.Username)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := loadConfig(newViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_ZeroIntervalRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("INBOXPOLL_INTERVAL", "0s")

	_, err := loadConfig(newViper(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval must be positive")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Provider: ProviderGmail, Interval: time.Minute}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "imap", mutate: func(c *Config) { c.Provider = ProviderIMAP }},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }, wantErr: "interval must be positive"},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "pop3" }, wantErr: "unsupported provider"},
		{name: "negative interval", mutate: func(c *Config) { c.Interval = -time.Second }, wantErr: "interval"},
		{name: "negative max results", mutate: func(c *Config) { c.MaxResults = -1 }, wantErr: "max_results"},
		{name: "negative timeout", mutate: func(c *Config) { c.RequestTimeout = -time.Second }, wantErr: "request_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_InstrumentationConfig(t *testing.T) {
	cfg := Config{Provider: ProviderIMAP, Metrics: MetricsConfig{
		Exporter:        "otlp",
		TracingExporter: "otlp",
		OTLPEndpoint:    "collector:4318",
		OTLPInsecure:    true,
		SamplingRate:    0.5,
	}}

	ic := cfg.instrumentationConfig()
	assert.Equal(t, "inboxpoll", ic.ServiceName)
	assert.Equal(t, "otlp", ic.MetricsExporter)
	assert.Equal(t, "collector:4318", ic.OTLPEndpoint)
	assert.True(t, ic.OTLPInsecure)
	assert.Equal(t, 0.5, ic.TraceSamplingRate)
	assert.Equal(t, ProviderIMAP, ic.MailProvider)
	assert.NoError(t, ic.Validate())
}
