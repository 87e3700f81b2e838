package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type oauthCallbackRequest struct {
	Code        string `json:"code"`
	State       string `json:"state"`
	RedirectURL string `json:"redirect_url"`
}

// Login exchanges a username and password for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	c.logger.Info("logging in", slog.String("username", username))

	var pair TokenPair
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", loginRequest{
		Username: username,
		Password: password,
	}, &pair, nil); err != nil {
		return nil, err
	}

	return validatePair(&pair)
}

// OAuthCallback completes a third-party login: the provider's code and state
// are exchanged by the server for a token pair.
func (c *Client) OAuthCallback(
	ctx context.Context, provider, code, state, redirectURL string,
) (*TokenPair, error) {
	if provider == "" {
		return nil, errors.New("api: oauth provider must not be empty")
	}

	c.logger.Info("completing oauth login", slog.String("provider", provider))

	path := "/auth/oauth/callback/" + url.PathEscape(provider)

	var pair TokenPair
	if err := c.doJSON(ctx, http.MethodPost, path, oauthCallbackRequest{
		Code:        code,
		State:       state,
		RedirectURL: redirectURL,
	}, &pair, nil); err != nil {
		return nil, err
	}

	return validatePair(&pair)
}

// Register creates an account. The server returns the new user; no tokens
// are issued.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	c.logger.Info("registering account", slog.String("username", req.Username))

	var u User
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", req, &u, nil); err != nil {
		return nil, err
	}

	return &u, nil
}

// Refresh exchanges a refresh token for a new token pair. The refresh token
// travels as the bearer credential and the request has no body.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, errors.New("api: refresh token must not be empty")
	}

	c.logger.Debug("refreshing access token")

	var pair TokenPair
	if err := c.doJSON(ctx, http.MethodPost, "/auth/refresh", nil, &pair, &RequestOpts{
		Bearer: refreshToken,
		Quiet:  true,
	}); err != nil {
		return nil, err
	}

	return validatePair(&pair)
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/user/me", nil, &u, nil); err != nil {
		return nil, err
	}

	return &u, nil
}

func validatePair(pair *TokenPair) (*TokenPair, error) {
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("api: token response missing access_token")
	}

	return pair, nil
}
