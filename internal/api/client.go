package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pickoala/pickoala-cli/internal/metrics"
)

// Endpoint and header constants.
const (
	// DefaultBaseURL is the API root of a locally running server.
	DefaultBaseURL = "http://localhost:8000/api"

	// SettingsPath is the optional site settings endpoint. Failures there are
	// expected and never reported to the Notifier.
	SettingsPath = "/site/settings"

	// authPathPrefix marks authentication endpoints, which never trigger a
	// token refresh on 401.
	authPathPrefix = "/auth/"

	defaultUserAgent = "pickoala-cli/0.1"
	requestIDHeader  = "X-Request-ID"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 1 << 20
)

// Credentials is the token holder the client authenticates with. Defined at
// the consumer; the session store provides the real implementation.
type Credentials interface {
	// AccessToken returns the current access token, or "" when anonymous.
	AccessToken() string
	// Refresh obtains a new access token. stale is the token the server just
	// rejected, so implementations can skip the exchange when another caller
	// has already replaced it.
	Refresh(ctx context.Context, stale string) (string, error)
	// Clear drops all held credentials.
	Clear()
}

// Notifier receives user-visible error messages, already translated.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(message string)

// Notify calls f(message).
func (f NotifierFunc) Notify(message string) {
	f(message)
}

// RequestOpts tunes a single request.
type RequestOpts struct {
	// Bearer replaces the session access token in the Authorization header.
	Bearer string
	// ContentType is sent when the request has a body. Defaults to JSON.
	ContentType string
	// Quiet suppresses the Notifier for this request's failure.
	Quiet bool
}

// Option configures a Client.
type Option func(*Client)

// WithNotifier sets the sink for user-visible error messages.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithTranslator sets the error message catalog.
func WithTranslator(t *Translator) Option {
	return func(c *Client) { c.translator = t }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithReauthHandler registers a callback fired when a 401 could not be
// recovered and the user has to log in again.
func WithReauthHandler(fn func()) Option {
	return func(c *Client) { c.onReauth = fn }
}

// WithMetrics records request and refresh counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client is an HTTP client for the PicKoala API. It attaches the bearer
// token, refreshes it once on 401, and classifies and translates errors.
// Safe for concurrent use once credentials are set.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	logger     *slog.Logger
	notifier   Notifier
	translator *Translator
	userAgent  string
	onReauth   func()
	metrics    *metrics.Metrics
}

// NewClient creates an API client. baseURL is the API root, for example
// "https://img.example.com/api". creds may be nil for anonymous use and set
// later with SetCredentials.
func NewClient(
	baseURL string, httpClient *http.Client, creds Credentials, logger *slog.Logger, opts ...Option,
) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		creds:      creds,
		logger:     logger,
		translator: NewTranslator(""),
		userAgent:  defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetCredentials attaches the token holder. Must be called before the client
// is shared between goroutines.
func (c *Client) SetCredentials(creds Credentials) {
	c.creds = creds
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithHTTPClient returns a copy of c that sends requests through hc. The copy
// shares credentials, notifier, and translator with c.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *c
	clone.httpClient = hc

	return &clone
}

// Do executes a request against the API. path is appended to the base URL.
// On a 401 from a non-auth endpoint the access token is refreshed and the
// request replayed exactly once; body must then be nil or an io.Seeker.
// The caller closes the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, opts *RequestOpts) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOpts{}
	}

	token := opts.Bearer
	if token == "" {
		token = c.accessToken()
	}

	resp, err := c.doOnce(ctx, method, path, body, token, opts)
	if err != nil {
		return nil, c.fail(ctx, method, path, opts, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !isAuthPath(path) && c.creds != nil {
		drainAndClose(resp)

		c.logger.Warn("access token rejected, refreshing",
			slog.String("method", method),
			slog.String("path", path),
		)

		newToken, refreshErr := c.reauthenticate(ctx, token)
		if refreshErr != nil {
			return nil, refreshErr
		}

		if rewindErr := rewindBody(body); rewindErr != nil {
			return nil, fmt.Errorf("api: replaying %s %s: %w", method, path, rewindErr)
		}

		// Single replay. A second 401 falls through to the error path below.
		resp, err = c.doOnce(ctx, method, path, body, newToken, opts)
		if err != nil {
			return nil, c.fail(ctx, method, path, opts, err)
		}
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	return nil, c.fail(ctx, method, path, opts, c.httpError(resp))
}

// doOnce executes a single HTTP request with the given bearer token.
func (c *Client) doOnce(
	ctx context.Context, method, path string, body io.Reader, token string, opts *RequestOpts,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	if body != nil {
		contentType := opts.ContentType
		if contentType == "" {
			contentType = "application/json"
		}

		req.Header.Set("Content-Type", contentType)

		if sized, ok := body.(interface{ Size() int64 }); ok {
			req.ContentLength = sized.Size()
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}

	c.metrics.ObserveRequest(method, resp.StatusCode)

	return resp, nil
}

// reauthenticate refreshes the access token after a 401. On failure the
// credentials are cleared and the re-auth handler fires. A refresh that was
// interrupted (ctx ended or credentials closed) leaves the session alone.
func (c *Client) reauthenticate(ctx context.Context, stale string) (string, error) {
	newToken, err := c.creds.Refresh(ctx, stale)
	if err == nil && newToken != "" {
		c.metrics.ObserveRefresh(true)
		return newToken, nil
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("api: refresh interrupted: %w", ctx.Err())
	}

	if errors.Is(err, ErrCredentialsClosed) {
		return "", fmt.Errorf("api: refresh interrupted: %w", err)
	}

	c.metrics.ObserveRefresh(false)

	if err == nil {
		err = errors.New("refresh returned an empty access token")
	}

	c.logger.Warn("token refresh failed, re-authentication required",
		slog.String("error", err.Error()),
	)

	c.creds.Clear()

	if c.onReauth != nil {
		c.onReauth()
	}

	return "", fmt.Errorf("%w: %w", ErrReauthRequired, err)
}

// fail reports err to the notifier unless the request opted out, and
// returns it. Context cancellation is never reported.
func (c *Client) fail(ctx context.Context, method, path string, opts *RequestOpts, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("api: request canceled: %w", ctx.Err())
	}

	c.logger.Debug("request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)

	if opts.Quiet || strings.HasPrefix(path, SettingsPath) || c.notifier == nil {
		return err
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		c.notifier.Notify(httpErr.Message)

		return err
	}

	c.notifier.Notify(c.translator.Translate(msgNetworkError))

	return err
}

// httpError reads and closes an error response and builds an HTTPError.
func (c *Client) httpError(resp *http.Response) *HTTPError {
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		body = nil
	}

	detail := parseDetail(body)

	msg := detail
	if msg == "" {
		msg = msgRequestFailed
	}

	return &HTTPError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Request.Header.Get(requestIDHeader),
		Detail:     detail,
		Message:    c.translator.Translate(msg),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// doJSON sends in as a JSON body (nil for none) and decodes the response
// into out (nil to discard).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, opts *RequestOpts) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encoding %s request: %w", path, err)
		}

		body = bytes.NewReader(data)
	}

	resp, err := c.Do(ctx, method, path, body, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if decErr := json.NewDecoder(resp.Body).Decode(out); decErr != nil {
		return fmt.Errorf("api: decoding %s response: %w", path, decErr)
	}

	return nil
}

func (c *Client) accessToken() string {
	if c.creds == nil {
		return ""
	}

	return c.creds.AccessToken()
}

// isAuthPath reports whether path is an authentication endpoint.
func isAuthPath(path string) bool {
	return strings.HasPrefix(path, authPathPrefix)
}

// rewindBody seeks a replayable body back to its start.
func rewindBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	seeker, ok := body.(io.Seeker)
	if !ok {
		return errors.New("request body is not replayable")
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding request body: %w", err)
	}

	return nil
}

// drainAndClose discards the rest of a body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// parseDetail extracts the FastAPI "detail" field: either a string or a list
// of validation errors with "msg" fields.
func parseDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}

		return strings.Join(msgs, "; ")
	}

	return ""
}

// parseRetryAfter parses a delay-seconds Retry-After value.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
