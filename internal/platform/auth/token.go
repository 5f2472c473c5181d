package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/neuro-inc/apolo-cli/internal/config"
)

// Identity claims, newest first, before the standard subject.
var identityClaims = []string{
	"https://platform.apolo.us/user",
	"https://platform.neuromation.io/user",
}

// ErrTokenExpired is returned when an expired token cannot be refreshed.
var ErrTokenExpired = errors.New("auth token expired; run 'apolo config login'")

// Username reads the user name from an access token without verifying it;
// the platform verifies tokens on every request.
func Username(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	for _, c := range identityClaims {
		if v, ok := claims[c].(string); ok && v != "" {
			return v, nil
		}
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token carries no user identity")
	}
	return sub, nil
}

// TokenSource hands out the stored access token and refreshes it once it
// is within Threshold of expiry. Refreshed tokens are passed to Save.
type TokenSource struct {
	Auth      config.AuthConfig
	Threshold time.Duration
	Save      func(config.AuthToken) error

	ctx context.Context
	now func() time.Time

	mu    sync.Mutex
	token config.AuthToken
}

// NewTokenSource returns a refreshing source seeded with tok. ctx carries
// the HTTP client used for refresh requests.
func NewTokenSource(ctx context.Context, ac config.AuthConfig, tok config.AuthToken, threshold time.Duration, save func(config.AuthToken) error) *TokenSource {
	return &TokenSource{Auth: ac, Threshold: threshold, Save: save, ctx: ctx, now: time.Now, token: tok}
}

// Token implements oauth2.TokenSource.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Expired(s.now(), s.Threshold) {
		if s.token.RefreshToken == "" {
			return nil, ErrTokenExpired
		}
		if err := s.refresh(); err != nil {
			return nil, err
		}
	}
	return &oauth2.Token{AccessToken: s.token.Token, TokenType: "Bearer", Expiry: s.token.ExpiresAt}, nil
}

func (s *TokenSource) refresh() error {
	conf := OAuthConfig(s.Auth, "")
	stale := &oauth2.Token{RefreshToken: s.token.RefreshToken, Expiry: s.now().Add(-time.Second)}
	tok, err := conf.TokenSource(s.ctx, stale).Token()
	if err != nil {
		return fmt.Errorf("%w: refresh failed: %v", ErrTokenExpired, err)
	}
	next := Token(tok)
	if next.RefreshToken == "" {
		next.RefreshToken = s.token.RefreshToken
	}
	s.token = next
	if s.Save != nil {
		if err := s.Save(next); err != nil {
			return fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}
	return nil
}

// Current returns the token as last refreshed.
func (s *TokenSource) Current() config.AuthToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}
