package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pickoala/pickoala-cli/internal/api"
	"github.com/pickoala/pickoala-cli/internal/session"
)

// dialKeepAlive is the TCP keep-alive period for API connections.
const dialKeepAlive = 30 * time.Second

// errNotLoggedIn is returned by commands that need an authenticated session.
var errNotLoggedIn = errors.New("not logged in, run 'pickoala login' first")

// CLIContext bundles the wired API client and session for one command.
type CLIContext struct {
	Logger *slog.Logger
	Client *api.Client
	Store  *session.Store
	Quiet  bool
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Quiet, format, args...)
}

// Close releases the session. The token file stays for the next run.
func (cc *CLIContext) Close() {
	cc.Store.Close()
}

// newCLIContext builds the client and session from resolvedCfg and restores
// any persisted session. A saved token the server rejects leaves the session
// anonymous rather than failing the command.
func newCLIContext(ctx context.Context) (*CLIContext, error) {
	if resolvedCfg == nil {
		return nil, errors.New("no configuration loaded")
	}

	logger := buildLogger()

	opts := []api.Option{
		api.WithNotifier(api.NotifierFunc(func(msg string) {
			statusf(flagQuiet, "pickoala: %s\n", msg)
		})),
		api.WithTranslator(api.NewTranslator(resolvedCfg.Locale)),
		api.WithReauthHandler(func() {
			logger.Warn("session expired, login required")
		}),
		api.WithMetrics(appMetrics),
	}

	if resolvedCfg.UserAgent != "" {
		opts = append(opts, api.WithUserAgent(resolvedCfg.UserAgent))
	}

	client := api.NewClient(resolvedCfg.ServerURL, newHTTPClient(resolvedCfg.ConnectTimeout), nil, logger, opts...)
	store := session.NewStore(client, resolvedCfg.TokenPath(), resolvedCfg.ServerURL, logger)
	client.SetCredentials(store)

	if err := store.Init(ctx); err != nil {
		if ctx.Err() != nil {
			store.Close()
			return nil, fmt.Errorf("restoring session: %w", err)
		}

		logger.Debug("saved session not restored", slog.String("error", err.Error()))
	}

	return &CLIContext{
		Logger: logger,
		Client: client,
		Store:  store,
		Quiet:  flagQuiet,
	}, nil
}

// requireLogin fails with errNotLoggedIn unless the session holds a user.
func (cc *CLIContext) requireLogin() error {
	if !cc.Store.IsLoggedIn() {
		return errNotLoggedIn
	}

	return nil
}

// newHTTPClient bounds connection setup only. Chunk bodies can take far
// longer than any fixed request timeout, so cancellation comes from ctx.
func newHTTPClient(connectTimeout time.Duration) *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}
	}

	t := transport.Clone()
	t.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: dialKeepAlive}).DialContext
	t.TLSHandshakeTimeout = connectTimeout

	return &http.Client{Transport: t}
}

// stdinIsTerminal reports whether prompts can be shown interactively.
func stdinIsTerminal() bool {
	return isTerminal(os.Stdin.Fd())
}
