// Package platform wires the service clients of one logged-in session.
//
// A Client is built from the local config. It owns the shared HTTP
// wrapper, the refreshing token source and the metrics registry, and
// hands out service clients scoped to the selected cluster, org and
// project.
package platform

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/metrics"
	"github.com/neuro-inc/apolo-cli/internal/platform/admin"
	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	"github.com/neuro-inc/apolo-cli/internal/platform/auth"
	"github.com/neuro-inc/apolo-cli/internal/platform/buckets"
	"github.com/neuro-inc/apolo-cli/internal/platform/disks"
	"github.com/neuro-inc/apolo-cli/internal/platform/images"
	"github.com/neuro-inc/apolo-cli/internal/platform/jobs"
	"github.com/neuro-inc/apolo-cli/internal/platform/secrets"
	"github.com/neuro-inc/apolo-cli/internal/platform/storage"
	"github.com/neuro-inc/apolo-cli/internal/platform/uri"
)

// Options configure New.
type Options struct {
	Log        logr.Logger
	Metrics    *metrics.Metrics
	Timeouts   *config.Timeouts
	HTTPClient *http.Client
	UserAgent  string
	// Save persists the config after a token refresh. Nil keeps
	// refreshed tokens in memory only.
	Save func(*config.Config) error
}

// Client is a logged-in session.
type Client struct {
	Config   *config.Config
	API      *api.Client
	Tokens   *auth.TokenSource
	Metrics  *metrics.Metrics
	Log      logr.Logger
	Timeouts *config.Timeouts
}

// New builds a session from cfg. ctx carries the HTTP client used to
// refresh tokens and must outlive the session.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Client, error) {
	if cfg == nil || cfg.Token.Token == "" {
		return nil, config.ErrNotLoggedIn
	}
	if opts.Timeouts == nil {
		opts.Timeouts = config.LoadTimeouts()
	}
	if opts.Log.GetSink() == nil {
		opts.Log = logr.Discard()
	}

	save := func(tok config.AuthToken) error {
		cfg.Token = tok
		if opts.Save == nil {
			return nil
		}
		return opts.Save(cfg)
	}
	tokens := auth.NewTokenSource(ctx, cfg.Auth, cfg.Token, opts.Timeouts.TokenRefreshAhead, save)

	apiOpts := []api.Option{
		api.WithTokenSource(tokens),
		api.WithLogger(opts.Log),
		api.WithMetrics(opts.Metrics),
		api.WithTimeouts(opts.Timeouts.Connect, opts.Timeouts.Request),
	}
	if opts.HTTPClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	if opts.UserAgent != "" {
		apiOpts = append(apiOpts, api.WithUserAgent(opts.UserAgent))
	}

	return &Client{
		Config:   cfg,
		API:      api.New(apiOpts...),
		Tokens:   tokens,
		Metrics:  opts.Metrics,
		Log:      opts.Log,
		Timeouts: opts.Timeouts,
	}, nil
}

// Scope is the selected org and project.
func (c *Client) Scope() api.Scope {
	return api.Scope{Org: c.Config.OrgName, Project: c.Config.ProjectName}
}

// URIContext is what relative URIs on the command line resolve against.
func (c *Client) URIContext() uri.Context {
	return uri.Context{Cluster: c.Config.ClusterName, Org: c.Config.OrgName, Project: c.Config.ProjectName}
}

func (c *Client) cluster() (config.Cluster, error) {
	return c.Config.ClusterConfig()
}

func serviceURL(cluster, service, u string) (string, error) {
	if u == "" {
		return "", fmt.Errorf("cluster %q has no %s service", cluster, service)
	}
	return u, nil
}

// Jobs returns the jobs client of the selected cluster.
func (c *Client) Jobs() (*jobs.Client, error) {
	cl, err := c.cluster()
	if err != nil {
		return nil, err
	}
	mon, err := serviceURL(cl.Name, "monitoring", cl.MonitoringURL)
	if err != nil {
		return nil, err
	}
	return jobs.New(c.API, c.Config.URL, mon, cl.Name, c.Scope()).
		WithPolling(c.Timeouts.PollInitialDelay, c.Timeouts.PollMaxDelay), nil
}

// Storage returns the storage client of the selected cluster.
func (c *Client) Storage() (*storage.Client, error) {
	cl, err := c.cluster()
	if err != nil {
		return nil, err
	}
	u, err := serviceURL(cl.Name, "storage", cl.StorageURL)
	if err != nil {
		return nil, err
	}
	return storage.New(c.API, u), nil
}

// Buckets returns the buckets client of the selected cluster.
func (c *Client) Buckets() (*buckets.Client, error) {
	cl, err := c.cluster()
	if err != nil {
		return nil, err
	}
	u, err := serviceURL(cl.Name, "buckets", cl.BucketsURL)
	if err != nil {
		return nil, err
	}
	return buckets.New(c.API, u, c.Scope()), nil
}

// Disks returns the disks client of the selected cluster.
func (c *Client) Disks() (*disks.Client, error) {
	cl, err := c.cluster()
	if err != nil {
		return nil, err
	}
	u, err := serviceURL(cl.Name, "disks", cl.DisksURL)
	if err != nil {
		return nil, err
	}
	return disks.New(c.API, u, c.Scope()), nil
}

// Secrets returns the secrets client of the selected cluster.
func (c *Client) Secrets() (*secrets.Client, error) {
	cl, err := c.cluster()
	if err != nil {
		return nil, err
	}
	u, err := serviceURL(cl.Name, "secrets", cl.SecretsURL)
	if err != nil {
		return nil, err
	}
	return secrets.New(c.API, u, c.Scope()), nil
}

// Images returns the registry client of the selected cluster.
func (c *Client) Images() (*images.Client, error) {
	cl, err := c.cluster()
	if err != nil {
		return nil, err
	}
	u, err := serviceURL(cl.Name, "registry", cl.RegistryURL)
	if err != nil {
		return nil, err
	}
	return images.New(c.API, u, c.Config.Username, c.Scope())
}

// Admin returns the administration client.
func (c *Client) Admin() (*admin.Client, error) {
	if c.Config.AdminURL == "" {
		return nil, fmt.Errorf("the platform at %s does not expose an admin API", c.Config.URL)
	}
	return admin.New(c.API, c.Config.AdminURL), nil
}
