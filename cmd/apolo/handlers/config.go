package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/logging"
	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	"github.com/neuro-inc/apolo-cli/internal/platform/auth"
)

// loginTimeout bounds the wait for the browser callback.
const loginTimeout = 5 * time.Minute

func anonymousAPI(env *Env) *api.Client {
	return api.New(
		api.WithLogger(logging.Logr(env.Log)),
		api.WithMetrics(env.Metrics),
		api.WithTimeouts(env.Timeouts.Connect, env.Timeouts.Request),
		api.WithUserAgent("apolo-cli/"+env.Version),
	)
}

// loginURL picks the API URL: --url, then the current config, then the default.
func loginURL(env *Env) string {
	if env.Settings.URL != "" {
		return env.Settings.URL
	}
	if cfg, err := loadConfig(env.Settings.ConfigDir); err == nil && cfg.URL != "" {
		return cfg.URL
	}
	return config.DefaultURL
}

// Login runs the browser login flow and stores the resulting config.
func Login(ctx context.Context) error {
	env := EnvFrom(ctx)
	url := loginURL(env)

	sc, err := auth.FetchServerConfig(ctx, anonymousAPI(env), url, false)
	if err != nil {
		return fmt.Errorf("failed to discover login settings at %s: %w", url, err)
	}
	l := &auth.BrowserLogin{
		Auth:    sc.Auth,
		Open:    openBrowser,
		Log:     logging.Logr(env.Log),
		Timeout: loginTimeout,
	}
	tok, err := l.Run(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return finishLogin(ctx, env, url, sc.Auth, auth.Token(tok))
}

// LoginHeadless logs in by pasting the code shown after a browser login
// on another machine.
func LoginHeadless(ctx context.Context) error {
	env := EnvFrom(ctx)
	url := loginURL(env)

	sc, err := auth.FetchServerConfig(ctx, anonymousAPI(env), url, false)
	if err != nil {
		return fmt.Errorf("failed to discover login settings at %s: %w", url, err)
	}
	l := &auth.HeadlessLogin{Auth: sc.Auth, In: env.In, Out: env.Out}
	tok, err := l.Run(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return finishLogin(ctx, env, url, sc.Auth, auth.Token(tok))
}

// readToken reads a token from the input stream. Terminals get a prompt
// and no echo.
func readToken(env *Env) (string, error) {
	if f, ok := env.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(env.Err, "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(env.Err)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(env.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// LoginWithToken stores a pre-issued token, typically a service account's.
// An empty token is read from the input stream.
func LoginWithToken(ctx context.Context, token string) error {
	env := EnvFrom(ctx)
	if token == "" {
		var err error
		if token, err = readToken(env); err != nil {
			return err
		}
		if token == "" {
			return errors.New("no token given")
		}
	}
	url := loginURL(env)

	sc, err := auth.FetchServerConfig(ctx, anonymousAPI(env), url, false)
	if err != nil {
		return fmt.Errorf("failed to discover login settings at %s: %w", url, err)
	}
	return finishLogin(ctx, env, url, sc.Auth, config.AuthToken{Token: token})
}

func finishLogin(ctx context.Context, env *Env, url string, ac config.AuthConfig, tok config.AuthToken) error {
	cfg := &config.Config{URL: url, Auth: ac, Token: tok}
	if prev, err := loadConfig(env.Settings.ConfigDir); err == nil && prev.URL == url {
		cfg.ClusterName, cfg.OrgName, cfg.ProjectName = prev.ClusterName, prev.OrgName, prev.ProjectName
	}

	username, err := auth.Username(tok.Token)
	if err != nil {
		return err
	}
	cfg.Username = username

	tokens := auth.NewTokenSource(ctx, ac, tok, env.Timeouts.TokenRefreshAhead, nil)
	client := api.New(
		api.WithTokenSource(tokens),
		api.WithLogger(logging.Logr(env.Log)),
		api.WithMetrics(env.Metrics),
		api.WithTimeouts(env.Timeouts.Connect, env.Timeouts.Request),
		api.WithUserAgent("apolo-cli/"+env.Version),
	)
	sc, err := auth.FetchServerConfig(ctx, client, url, true)
	if err != nil {
		return fmt.Errorf("failed to fetch user configuration: %w", err)
	}
	if err := sc.Apply(cfg); err != nil {
		return err
	}
	cfg.Token = tokens.Current()

	if err := saveConfig(env.Settings.ConfigDir, cfg); err != nil {
		return err
	}
	env.Print.Success("Logged in to %s as %s", url, cfg.Username)
	env.Print.Config(cfg)
	return nil
}

// Logout forgets the stored credentials.
func Logout(ctx context.Context) error {
	env := EnvFrom(ctx)
	if err := removeConfig(env.Settings.ConfigDir); err != nil {
		return err
	}
	env.Print.Success("Logged out")
	return nil
}

// ConfigShow prints the current selection and available presets.
func ConfigShow(ctx context.Context) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	env.Print.Config(client.Config)
	return nil
}

// ConfigShowToken prints a valid access token, refreshing it if needed.
func ConfigShowToken(ctx context.Context) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	tok, err := client.Tokens.Token()
	if err != nil {
		return err
	}
	env.Print.Println(tok.AccessToken)
	return nil
}

// ConfigUpdate refreshes the cluster, org and project lists from the server.
func ConfigUpdate(ctx context.Context) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	persisted, err := loadConfig(env.Settings.ConfigDir)
	if err != nil {
		return err
	}
	sc, err := auth.FetchServerConfig(ctx, client.API, persisted.URL, true)
	if err != nil {
		return fmt.Errorf("failed to fetch user configuration: %w", err)
	}
	if err := sc.Apply(persisted); err != nil {
		return err
	}
	persisted.Token = client.Tokens.Current()
	if err := saveConfig(env.Settings.ConfigDir, persisted); err != nil {
		return err
	}
	env.Print.Success("Configuration updated")
	return nil
}

// choose returns arg or, when empty, asks the user to pick one of options.
func choose(ctx context.Context, arg, title string, options []string, current string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	return newPrompter().Select(ctx, title, options, current)
}

// SwitchCluster selects the current cluster.
func SwitchCluster(ctx context.Context, name string) error {
	env := EnvFrom(ctx)
	cfg, err := loadConfig(env.Settings.ConfigDir)
	if err != nil {
		return err
	}
	name, err = choose(ctx, name, "Select cluster", cfg.ClusterNames(), cfg.ClusterName)
	if err != nil {
		return err
	}
	if err := cfg.SwitchCluster(name); err != nil {
		return err
	}
	if err := saveConfig(env.Settings.ConfigDir, cfg); err != nil {
		return err
	}
	env.Print.Success("The current cluster is %s", cfg.ClusterName)
	return nil
}

// SwitchOrg selects the current org within the current cluster.
func SwitchOrg(ctx context.Context, name string) error {
	env := EnvFrom(ctx)
	cfg, err := loadConfig(env.Settings.ConfigDir)
	if err != nil {
		return err
	}
	cl, err := cfg.ClusterConfig()
	if err != nil {
		return err
	}
	current := cfg.OrgName
	if current == "" {
		current = config.NoOrg
	}
	name, err = choose(ctx, name, "Select organization", cl.Orgs, current)
	if err != nil {
		return err
	}
	if err := cfg.SwitchOrg(name); err != nil {
		return err
	}
	if err := saveConfig(env.Settings.ConfigDir, cfg); err != nil {
		return err
	}
	org := cfg.OrgName
	if org == "" {
		org = config.NoOrg
	}
	env.Print.Success("The current org is %s", org)
	return nil
}

// SwitchProject selects the current project within the current cluster and org.
func SwitchProject(ctx context.Context, name string) error {
	env := EnvFrom(ctx)
	cfg, err := loadConfig(env.Settings.ConfigDir)
	if err != nil {
		return err
	}
	var names []string
	for _, p := range cfg.AvailableProjects() {
		names = append(names, p.Name)
	}
	name, err = choose(ctx, name, "Select project", names, cfg.ProjectName)
	if err != nil {
		return err
	}
	if err := cfg.SwitchProject(name); err != nil {
		return err
	}
	if err := saveConfig(env.Settings.ConfigDir, cfg); err != nil {
		return err
	}
	env.Print.Success("The current project is %s", cfg.ProjectName)
	return nil
}
