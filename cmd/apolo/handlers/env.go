// Package handlers implements the business logic for CLI commands.
//
// Handlers are called by the command definitions in the commands package
// with parsed arguments. They load the local config, open a platform
// session and render results through the ui packages. Dependencies are
// held in package-level factory variables so tests can replace them.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/logging"
	"github.com/neuro-inc/apolo-cli/internal/metrics"
	"github.com/neuro-inc/apolo-cli/internal/platform"
	"github.com/neuro-inc/apolo-cli/internal/ui/format"
	"github.com/neuro-inc/apolo-cli/internal/ui/prompt"
	"github.com/neuro-inc/apolo-cli/internal/ui/tui"
)

// Env is the per-invocation state shared by all handlers.
type Env struct {
	Settings config.Settings
	Timeouts *config.Timeouts
	Version  string

	In  io.Reader
	Out io.Writer
	Err io.Writer

	Log     *zap.Logger
	Metrics *metrics.Metrics
	Print   *format.Printer
}

// NewEnv resolves logging, metrics and output styling from settings.
func NewEnv(s config.Settings, version string, in io.Reader, out, errOut io.Writer) *Env {
	color := format.ColorEnabled(s.Color, out)
	return &Env{
		Settings: s,
		Timeouts: config.LoadTimeouts(),
		Version:  version,
		In:       in,
		Out:      out,
		Err:      errOut,
		Log:      logging.New(errOut, s.Verbose, s.Quiet, format.ColorEnabled(s.Color, errOut)),
		Metrics:  metrics.New(),
		Print:    format.New(out, color),
	}
}

type envKey struct{}

// WithEnv attaches env to ctx.
func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// EnvFrom returns the env attached by WithEnv, or a default one on the
// process streams when none is attached.
func EnvFrom(ctx context.Context) *Env {
	if env, ok := ctx.Value(envKey{}).(*Env); ok {
		return env
	}
	return NewEnv(config.Settings{ConfigDir: config.DefaultDir(), Color: config.ColorAuto}, "dev", os.Stdin, os.Stdout, os.Stderr)
}

// Finish writes the metrics dump requested with --metrics-dump and
// flushes the logger.
func Finish(ctx context.Context) error {
	env := EnvFrom(ctx)
	defer func() { _ = env.Log.Sync() }()
	if env.Settings.MetricsDump == "" {
		return nil
	}
	if err := env.Metrics.Dump(env.Settings.MetricsDump); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// ExitError makes the process exit with Code without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	if err != nil {
		return 1
	}
	return 0
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfig reads the local config.
	loadConfig = config.Load

	// saveConfig persists the local config.
	saveConfig = config.Save

	// removeConfig deletes the local config on logout.
	removeConfig = config.Remove

	// newPlatformClient opens a session for cfg. persisted is the config
	// as stored on disk, which receives refreshed tokens.
	newPlatformClient = func(ctx context.Context, env *Env, cfg, persisted *config.Config) (*platform.Client, error) {
		return platform.New(ctx, cfg, platform.Options{
			Log:       logging.Logr(env.Log),
			Metrics:   env.Metrics,
			Timeouts:  env.Timeouts,
			UserAgent: "apolo-cli/" + env.Version,
			Save: func(c *config.Config) error {
				persisted.Token = c.Token
				return saveConfig(env.Settings.ConfigDir, persisted)
			},
		})
	}

	// openBrowser presents the login page.
	openBrowser = browser.OpenURL

	// newPrompter asks interactive questions.
	newPrompter = prompt.New

	// runTop shows the job top dashboard.
	runTop = tui.RunTop

	// isTerminal reports whether w is interactive.
	isTerminal = format.IsTerminal
)

// session loads the config, applies the --cluster/--org/--project
// overrides and opens a platform client.
func session(ctx context.Context) (*Env, *platform.Client, error) {
	env := EnvFrom(ctx)
	persisted, err := loadConfig(env.Settings.ConfigDir)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := persisted.WithOverrides(env.Settings.Cluster, env.Settings.Org, env.Settings.Project)
	if err != nil {
		return nil, nil, err
	}
	client, err := newPlatformClient(ctx, env, cfg, persisted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open platform session: %w", err)
	}
	return env, client, nil
}
