package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/pickoala/pickoala-cli/internal/api"
	"github.com/pickoala/pickoala-cli/internal/tokenfile"
)

// persister writes the token pair to the token file. Persistence failures
// are logged, not returned: the in-memory session stays usable and the next
// successful write catches the file up.
type persister struct {
	path   string
	server string
	logger *slog.Logger
}

// load reads the token file. Any problem leaves the session anonymous.
func (p *persister) load() (*oauth2.Token, map[string]string) {
	tf, err := tokenfile.Load(p.path, p.server)
	if err != nil {
		if errors.Is(err, tokenfile.ErrServerMismatch) {
			p.logger.Warn("ignoring token issued by a different server",
				slog.String("path", p.path),
				slog.String("server", p.server),
			)
		} else {
			p.logger.Warn("unreadable token file, starting anonymous",
				slog.String("path", p.path),
				slog.String("error", err.Error()),
			)
		}

		return nil, nil
	}

	if tf == nil {
		return nil, nil
	}

	return tf.Token, tf.Meta
}

func (p *persister) save(pair *api.TokenPair, expiry time.Time) {
	// Keep cached display metadata across token rotation.
	var meta map[string]string
	if existing, err := tokenfile.Load(p.path, p.server); err == nil && existing != nil {
		meta = existing.Meta
	}

	tokenType := pair.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	if err := tokenfile.Save(p.path, &tokenfile.File{
		Server: p.server,
		Token: &oauth2.Token{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			TokenType:    tokenType,
			Expiry:       expiry,
		},
		Meta: meta,
	}); err != nil {
		p.logger.Warn("failed to persist tokens",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)

		return
	}

	p.logger.Debug("persisted tokens", slog.String("path", p.path), slog.Time("expiry", expiry))
}

func (p *persister) saveMeta(meta map[string]string) {
	if err := tokenfile.MergeMeta(p.path, meta); err != nil {
		p.logger.Debug("token metadata not saved",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)
	}
}

func (p *persister) remove() {
	if err := tokenfile.Delete(p.path); err != nil {
		p.logger.Warn("failed to remove token file",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)
	}
}

// tokenExpiry derives the access token expiry: expires_in when the server
// sent it, otherwise the JWT exp claim. The claim is read without signature
// verification and only informs display and logging; the server remains the
// authority on validity.
func tokenExpiry(pair *api.TokenPair, now time.Time) time.Time {
	if pair.ExpiresIn > 0 {
		return now.Add(time.Duration(pair.ExpiresIn) * time.Second).UTC()
	}

	return jwtExpiry(pair.AccessToken)
}

// jwtExpiry returns the exp claim of an unverified JWT, zero if the token is
// opaque or carries no exp.
func jwtExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.UTC()
}
