// Package auth logs users in to the platform and keeps their tokens fresh.
//
// Login uses the OAuth2 authorization code flow with PKCE: a local
// callback server receives the code when a browser is available, and
// the user pastes it in headless mode otherwise.
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/neuro-inc/apolo-cli/internal/config"
)

// DefaultCallbackURLs are tried in order when the server names none.
var DefaultCallbackURLs = []string{
	"http://127.0.0.1:54540",
	"http://127.0.0.1:54541",
	"http://127.0.0.1:54542",
}

// ErrStateMismatch is returned when the callback carries a foreign state.
var ErrStateMismatch = errors.New("oauth state mismatch")

// OAuthConfig builds the oauth2 client configuration for a redirect URL.
func OAuthConfig(ac config.AuthConfig, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    ac.ClientID,
		RedirectURL: redirectURL,
		Scopes:      []string{"offline_access"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  ac.AuthURL,
			TokenURL: ac.TokenURL,
		},
	}
}

func authCodeURL(conf *oauth2.Config, ac config.AuthConfig, state, verifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if ac.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", ac.Audience))
	}
	return conf.AuthCodeURL(state, opts...)
}

// Token converts an oauth2 token into the persisted form.
func Token(tok *oauth2.Token) config.AuthToken {
	return config.AuthToken{Token: tok.AccessToken, ExpiresAt: tok.Expiry, RefreshToken: tok.RefreshToken}
}

// BrowserLogin runs the browser flow. open presents the authorization URL,
// normally by launching a browser.
type BrowserLogin struct {
	Auth config.AuthConfig
	Open func(url string) error
	Log  logr.Logger
	// Timeout bounds the wait for the callback.
	Timeout time.Duration
}

type callbackResult struct {
	code string
	err  error
}

// listen binds the first free callback address.
func listen(urls []string) (net.Listener, string, error) {
	var errs []error
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		l, err := net.Listen("tcp", u.Host)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// Port 0 binds any free port; report the one actually bound.
		u.Host = l.Addr().String()
		return l, u.String(), nil
	}
	return nil, "", fmt.Errorf("no free callback port: %w", errors.Join(errs...))
}

// Run performs the login and returns the issued token.
func (b *BrowserLogin) Run(ctx context.Context) (*oauth2.Token, error) {
	urls := b.Auth.CallbackURLs
	if len(urls) == 0 {
		urls = DefaultCallbackURLs
	}
	l, redirect, err := listen(urls)
	if err != nil {
		return nil, err
	}

	conf := OAuthConfig(b.Auth, redirect)
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           b.callback(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(l) }()
	defer func() { _ = srv.Close() }()

	authURL := authCodeURL(conf, b.Auth, state, verifier)
	b.Log.V(1).Info("waiting for login callback", "redirect", redirect)
	if err := b.Open(authURL); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", authURL, err)
	}

	timeout := b.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("login not completed: %w", ctx.Err())
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		return tok, nil
	}
}

func (b *BrowserLogin) callback(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("login failed: %s: %s", q.Get("error"), q.Get("error_description"))
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		default:
			res.code = q.Get("code")
		}

		select {
		case results <- res:
		default:
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
			return
		}
		if b.Auth.SuccessRedirectURL != "" {
			http.Redirect(w, r, b.Auth.SuccessRedirectURL, http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "Login succeeded. You may close this window.\n")
	})
}

// headlessState is sent as the OAuth state of a headless login. The callback
// page shows only the code, so there is no returned state to compare.
const headlessState = "headless"

// HeadlessLogin prints the authorization URL and reads the code the
// user copies from the headless callback page.
type HeadlessLogin struct {
	Auth config.AuthConfig
	In   io.Reader
	Out  io.Writer
}

// Run performs the login and returns the issued token.
func (h *HeadlessLogin) Run(ctx context.Context) (*oauth2.Token, error) {
	if h.Auth.HeadlessCallback == "" {
		return nil, errors.New("server does not support headless login")
	}
	conf := OAuthConfig(h.Auth, h.Auth.HeadlessCallback)
	verifier := oauth2.GenerateVerifier()

	_, _ = fmt.Fprintf(h.Out, "Open the following URL in a browser and log in:\n\n    %s\n\nEnter the code: ",
		authCodeURL(conf, h.Auth, headlessState, verifier))

	line, err := bufio.NewReader(h.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("failed to read code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return nil, errors.New("no code entered")
	}
	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}
