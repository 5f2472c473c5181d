package auth

import (
	"context"
	"fmt"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/platform/api"
)

// ServerConfig is what GET {url}/config reports. Anonymous requests get
// only the auth settings; authenticated ones also the clusters and
// projects available to the user.
type ServerConfig struct {
	Auth     config.AuthConfig
	AdminURL string
	Clusters map[string]config.Cluster
	Projects []config.Project
}

type wirePreset struct {
	Name string `json:"name"`
	config.Preset
}

type wireCluster struct {
	config.Cluster
	Presets []wirePreset `json:"resource_presets"`
}

type wireConfig struct {
	config.AuthConfig
	AdminURL string           `json:"admin_url"`
	Clusters []wireCluster    `json:"clusters"`
	Projects []config.Project `json:"projects"`
}

// FetchServerConfig discovers the platform configuration at url.
// authenticated selects whether the client's token is sent.
func FetchServerConfig(ctx context.Context, c *api.Client, url string, authenticated bool) (ServerConfig, error) {
	u, err := api.JoinURL(url, "config")
	if err != nil {
		return ServerConfig{}, err
	}
	var w wireConfig
	if err := c.Do(ctx, api.Request{URL: u, NoAuth: !authenticated}, &w); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to fetch server config from %s: %w", url, err)
	}
	if w.AuthURL == "" || w.TokenURL == "" || w.ClientID == "" {
		return ServerConfig{}, fmt.Errorf("server config from %s lacks auth settings", url)
	}

	out := ServerConfig{
		Auth:     w.AuthConfig,
		AdminURL: w.AdminURL,
		Clusters: make(map[string]config.Cluster, len(w.Clusters)),
		Projects: w.Projects,
	}
	if len(out.Auth.CallbackURLs) == 0 {
		out.Auth.CallbackURLs = DefaultCallbackURLs
	}
	for _, wc := range w.Clusters {
		cl := wc.Cluster
		cl.Presets = make(map[string]config.Preset, len(wc.Presets))
		for _, p := range wc.Presets {
			cl.Presets[p.Name] = p.Preset
		}
		out.Clusters[cl.Name] = cl
	}
	return out, nil
}

// Apply copies the discovered clusters and projects into cfg and keeps
// the current selection when it is still valid.
func (s ServerConfig) Apply(cfg *config.Config) error {
	cfg.Auth = s.Auth
	cfg.AdminURL = s.AdminURL
	cfg.Clusters = s.Clusters
	cfg.Projects = s.Projects
	if len(s.Clusters) == 0 {
		return fmt.Errorf("%w: the user has no access to any cluster", config.ErrUnknownCluster)
	}

	if _, ok := s.Clusters[cfg.ClusterName]; !ok {
		return cfg.SwitchCluster(cfg.ClusterNames()[0])
	}
	org, project := cfg.OrgName, cfg.ProjectName
	if err := cfg.SwitchCluster(cfg.ClusterName); err != nil {
		return err
	}
	// A selection that disappeared falls back to the cluster defaults.
	if org != "" {
		if err := cfg.SwitchOrg(org); err != nil {
			return nil
		}
	}
	if project != "" {
		_ = cfg.SwitchProject(project)
	}
	return nil
}
