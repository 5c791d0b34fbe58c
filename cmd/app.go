package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teemow/inboxpoll/internal/chat"
	"github.com/teemow/inboxpoll/internal/credential"
	"github.com/teemow/inboxpoll/internal/gmail"
	"github.com/teemow/inboxpoll/internal/google"
	"github.com/teemow/inboxpoll/internal/imap"
	"github.com/teemow/inboxpoll/internal/instrumentation"
	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/mail"
	"github.com/teemow/inboxpoll/internal/poller"
)

// secretStore is the part of credential.Store the commands use.
type secretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Resolve(value, key string) (string, error)
}

// app carries the state shared by all commands of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        Config
	logger     *slog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// openSecrets opens the keyring on first use. Replaced in tests.
	openSecrets func() (secretStore, error)
	secretsOnce sync.Once
	secrets     secretStore
	secretsErr  error
}

func newApp() *app {
	return &app{
		v:      newViper(),
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		openSecrets: func() (secretStore, error) {
			return credential.Open()
		},
	}
}

// setup resolves the configuration and logging for the command being run.
// Flags are bound here rather than at construction so that only the
// executing command's flags feed the configuration.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(a.v, cmd.Flags(), flagKeys); err != nil {
		return err
	}
	if err := bindFlags(a.v, cmd.InheritedFlags(), flagKeys); err != nil {
		return err
	}

	configFile := a.configFile
	if configFile == "" {
		configFile = defaultConfigFile()
	}
	cfg, err := loadConfig(a.v, configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.Setup(a.errOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// flagKeys maps flags whose config key is not derived from the flag name.
var flagKeys = map[string]string{
	"imap-addr":           "imap.addr",
	"imap-username":       "imap.username",
	"imap-mailbox":        "imap.mailbox",
	"imap-insecure":       "imap.insecure",
	"model":               "openai.model",
	"openai-base-url":     "openai.base_url",
	"log-level":           "log.level",
	"log-format":          "log.format",
	"metrics-enabled":     "metrics.enabled",
	"metrics-addr":        "metrics.addr",
	"metrics-exporter":    "metrics.exporter",
	"tracing-exporter":    "metrics.tracing_exporter",
	"otlp-endpoint":       "metrics.otlp_endpoint",
	"otlp-insecure":       "metrics.otlp_insecure",
	"trace-sampling-rate": "metrics.sampling_rate",
}

func (a *app) secretStore() (secretStore, error) {
	a.secretsOnce.Do(func() {
		a.secrets, a.secretsErr = a.openSecrets()
	})
	return a.secrets, a.secretsErr
}

// resolveSecret returns value if set, otherwise the secret stored under key.
// The keyring is only opened when value is empty.
func (a *app) resolveSecret(value, key string) (string, error) {
	if value != "" {
		return value, nil
	}
	store, err := a.secretStore()
	if err != nil {
		return "", err
	}
	return store.Resolve("", key)
}

// googleConfig returns the credential provider settings.
func (a *app) googleConfig(interactive bool) google.Config {
	return google.Config{
		TokenPath:       a.cfg.TokenPath,
		CredentialsPath: a.cfg.CredentialsPath,
		Interactive:     interactive,
		Out:             a.errOut,
		Logger:          logging.NewSlogAdapter(logging.WithComponent(a.logger, "oauth")),
	}
}

// buildAdapter connects to the configured provider. The returned close
// function releases the connection and is never nil.
func (a *app) buildAdapter(ctx context.Context, interactive bool) (mail.Adapter, func() error, error) {
	noop := func() error { return nil }

	switch a.cfg.Provider {
	case ProviderGmail:
		httpClient, err := google.Authorize(ctx, a.googleConfig(interactive))
		if err != nil {
			return nil, noop, err
		}
		client, err := gmail.NewClient(ctx, httpClient, gmail.WithTimeout(a.cfg.RequestTimeout))
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil

	case ProviderIMAP:
		password, err := a.resolveSecret(a.cfg.IMAP.Password, credential.KeyIMAPPassword)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to look up imap password: %w", err)
		}
		client, err := imap.New(imap.Config{
			Addr:     a.cfg.IMAP.Addr,
			Username: a.cfg.IMAP.Username,
			Password: password,
			Mailbox:  a.cfg.IMAP.Mailbox,
			Insecure: a.cfg.IMAP.Insecure,

			CommandTimeout: a.cfg.RequestTimeout,
		}, imap.WithLogger(logging.NewSlogAdapter(logging.WithComponent(a.logger, "imap"))))
		if err != nil {
			return nil, noop, err
		}
		return client, client.Close, nil
	}
	return nil, noop, fmt.Errorf("unsupported provider %q", a.cfg.Provider)
}

// newPoller builds the adapter and a Poller over it.
func (a *app) newPoller(ctx context.Context, interactive bool, metrics *instrumentation.Metrics) (*poller.Poller, func() error, error) {
	adapter, closeAdapter, err := a.buildAdapter(ctx, interactive)
	if err != nil {
		return nil, closeAdapter, err
	}
	p := poller.New(adapter,
		poller.WithLogger(logging.NewSlogAdapter(logging.WithComponent(a.logger, "poller"))),
		poller.WithMetrics(metrics),
		poller.WithMaxResults(a.cfg.MaxResults),
	)
	return p, closeAdapter, nil
}

// newCompleter builds the OpenAI completer, looking the key up in the
// keyring when it is not configured.
func (a *app) newCompleter() (*chat.OpenAI, error) {
	key, err := a.resolveSecret(a.cfg.OpenAI.APIKey, credential.KeyOpenAIAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to look up openai api key: %w", err)
	}
	if key == "" {
		return nil, errors.New("openai api key is not set (use OPENAI_API_KEY or \"inboxpoll credential set openai-api-key\")")
	}
	return chat.NewOpenAI(chat.OpenAIConfig{
		APIKey:  key,
		Model:   a.cfg.OpenAI.Model,
		BaseURL: a.cfg.OpenAI.BaseURL,
	})
}

// newInstrumentation creates the telemetry provider. Telemetry is disabled
// unless metrics are enabled or a non-default exporter is configured.
func (a *app) newInstrumentation(ctx context.Context, command string) (*instrumentation.Provider, error) {
	ic := a.cfg.instrumentationConfig()
	ic.Command = command
	ic.Output = a.errOut
	ic.Enabled = a.cfg.Metrics.Enabled ||
		a.cfg.Metrics.Exporter != instrumentation.ExporterPrometheus ||
		a.cfg.Metrics.TracingExporter != instrumentation.ExporterNone

	provider, err := instrumentation.NewProvider(ctx, ic)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	return provider, nil
}
