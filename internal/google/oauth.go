package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/inboxpoll/internal/logging"
)

// ErrCannotAuthorize reports that no usable OAuth token could be obtained.
var ErrCannotAuthorize = errors.New("cannot authorize mail access")

// errTokenUnrefreshable marks a cached token that has expired and carries no
// refresh token.
var errTokenUnrefreshable = errors.New("cached token expired and has no refresh token")

// consentTimeout bounds how long the browser consent flow waits for the
// redirect.
const consentTimeout = 5 * time.Minute

// Config describes where credentials live and how consent may be obtained.
type Config struct {
	// TokenPath is the cached token file (token.json).
	TokenPath string

	// CredentialsPath is the OAuth client secrets file (credentials.json).
	CredentialsPath string

	// Scopes defaults to DefaultScopes.
	Scopes []string

	// Interactive allows the browser consent flow when no token is cached.
	Interactive bool

	// Out receives the consent URL. Defaults to os.Stderr.
	Out io.Writer

	// OpenURL is called with the consent URL instead of printing it to Out.
	// Tests use it to follow the redirect.
	OpenURL func(url string) error

	Logger logging.Logger
}

func (c *Config) setDefaults() {
	if len(c.Scopes) == 0 {
		c.Scopes = DefaultScopes
	}
	if c.Out == nil {
		c.Out = os.Stderr
	}
	if c.OpenURL == nil {
		out := c.Out
		c.OpenURL = func(url string) error {
			_, err := fmt.Fprintf(out, "Open the following link in your browser to authorize access:\n\n  %s\n\n", url)
			return err
		}
	}
	if c.Logger == nil {
		c.Logger = logging.Component("oauth")
	}
}

// LoadOAuthConfig parses a client secrets file.
func LoadOAuthConfig(credentialsPath string, scopes ...string) (*oauth2.Config, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read client secrets %s: %w", ErrCannotAuthorize, credentialsPath, err)
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse client secrets %s: %w", ErrCannotAuthorize, credentialsPath, err)
	}
	return conf, nil
}

// Authorize returns an HTTP client that attaches a valid access token to
// every request and refreshes it as needed.
//
// The cached token is loaded and refreshed right away, so a revoked grant
// fails here rather than on the first API call. Without a cached token, or
// with an expired one that cannot be refreshed, the consent flow runs if
// cfg.Interactive is set; otherwise ErrCannotAuthorize is returned.
func Authorize(ctx context.Context, cfg Config) (*http.Client, error) {
	cfg.setDefaults()

	conf, err := LoadOAuthConfig(cfg.CredentialsPath, cfg.Scopes...)
	if err != nil {
		return nil, err
	}

	tok, err := ReadToken(cfg.TokenPath)
	if err == nil && !tok.Valid() && tok.RefreshToken == "" {
		err = fmt.Errorf("%w: %s", errTokenUnrefreshable, cfg.TokenPath)
	}
	if err != nil {
		if !cfg.Interactive {
			return nil, fmt.Errorf("%w: %w (run \"inboxpoll auth\" first)", ErrCannotAuthorize, err)
		}
		cfg.Logger.Info("no usable cached token, starting consent flow", "path", cfg.TokenPath)

		tok, err = Consent(ctx, conf, cfg.OpenURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCannotAuthorize, err)
		}
		if err := WriteToken(cfg.TokenPath, tok); err != nil {
			return nil, err
		}
	}

	// Token refreshes outlive the call that set them up.
	bg := context.WithoutCancel(ctx)

	fresh, err := conf.TokenSource(bg, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to refresh token: %w", ErrCannotAuthorize, err)
	}

	ts := &persistingTokenSource{
		base:   conf.TokenSource(bg, fresh),
		path:   cfg.TokenPath,
		last:   tok.AccessToken,
		logger: cfg.Logger,
	}
	// Persist now if the load above refreshed the token.
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotAuthorize, err)
	}

	return oauth2.NewClient(bg, oauth2.ReuseTokenSource(fresh, ts)), nil
}

// Login runs the consent flow and stores the resulting token, replacing
// any existing one.
func Login(ctx context.Context, cfg Config) error {
	cfg.setDefaults()

	conf, err := LoadOAuthConfig(cfg.CredentialsPath, cfg.Scopes...)
	if err != nil {
		return err
	}

	tok, err := Consent(ctx, conf, cfg.OpenURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotAuthorize, err)
	}
	if err := WriteToken(cfg.TokenPath, tok); err != nil {
		return err
	}

	cfg.Logger.Info("token saved", "path", cfg.TokenPath)
	return nil
}

// Consent runs the installed-app flow: it listens on a loopback port,
// hands the consent URL to openURL, and exchanges the code delivered to the
// redirect for a token.
func Consent(ctx context.Context, conf *oauth2.Config, openURL func(string) error) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth redirect: %w", err)
	}

	local := *conf
	local.RedirectURL = "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			}
			if e := q.Get("error"); e != "" {
				http.Error(w, "authorization denied", http.StatusForbidden)
				select {
				case errCh <- fmt.Errorf("authorization denied: %s", e):
				default:
				}
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, "Authorization complete. You can close this window.\n")
			select {
			case codeCh <- code:
			default:
			}
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Close() }()

	authURL := local.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := openURL(authURL); err != nil {
		return nil, fmt.Errorf("failed to present consent URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, consentTimeout)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for OAuth redirect: %w", ctx.Err())
	}

	tok, err := local.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}
