package testing

import (
	"maps"
	"time"

	"github.com/neuro-inc/apolo-cli/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a logged-in config with one cluster "default",
// org "acme" and project "alpha".
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			URL:      "https://api.example.com/api/v1",
			Username: "alice",
			Token: config.AuthToken{
				Token:        "token-1",
				RefreshToken: "refresh-1",
				ExpiresAt:    time.Now().Add(time.Hour),
			},
			Clusters: map[string]config.Cluster{
				"default": {
					Name:       "default",
					Orgs:       []string{"acme"},
					StorageURL: "https://storage.example.com/api/v1/storage",
					Presets: map[string]config.Preset{
						"cpu-small": {CPU: 1, Memory: 2 << 30, CreditsPerHour: "1"},
					},
				},
			},
			Projects: []config.Project{
				{Name: "alpha", ClusterName: "default", OrgName: "acme", Role: "admin"},
			},
			ClusterName: "default",
			OrgName:     "acme",
			ProjectName: "alpha",
		},
	}
}

// WithPlatform points the API and every service URL of the current cluster at p.
func (b *ConfigBuilder) WithPlatform(p *Platform) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.URL = p.URL + "/api/v1"
	nb.cfg.AdminURL = p.URL + "/apis/admin/v1"
	cl := nb.cfg.Clusters[nb.cfg.ClusterName]
	cl.StorageURL = p.URL + "/storage"
	cl.SecretsURL = p.URL + "/secrets"
	cl.DisksURL = p.URL + "/disk"
	cl.BucketsURL = p.URL + "/buckets"
	cl.MonitoringURL = p.URL + "/jobs"
	cl.RegistryURL = p.URL
	nb.cfg.Clusters[nb.cfg.ClusterName] = cl
	return nb
}

// WithCluster adds a cluster with the given orgs.
func (b *ConfigBuilder) WithCluster(name string, orgs ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Clusters[name] = config.Cluster{Name: name, Orgs: orgs}
	return nb
}

// WithProject adds a project to the cluster and org.
func (b *ConfigBuilder) WithProject(cluster, org, name string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Projects = append(nb.cfg.Projects, config.Project{Name: name, ClusterName: cluster, OrgName: org, Role: "writer"})
	return nb
}

// WithPreset adds a preset to the current cluster.
func (b *ConfigBuilder) WithPreset(name string, p config.Preset) *ConfigBuilder {
	nb := b.clone()
	cl := nb.cfg.Clusters[nb.cfg.ClusterName]
	cl.Presets = maps.Clone(cl.Presets)
	if cl.Presets == nil {
		cl.Presets = map[string]config.Preset{}
	}
	cl.Presets[name] = p
	nb.cfg.Clusters[nb.cfg.ClusterName] = cl
	return nb
}

// WithToken replaces the access token.
func (b *ConfigBuilder) WithToken(tok config.AuthToken) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Token = tok
	return nb
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	nb := &ConfigBuilder{cfg: b.cfg}
	nb.cfg.Clusters = maps.Clone(b.cfg.Clusters)
	nb.cfg.Projects = append([]config.Project(nil), b.cfg.Projects...)
	return nb
}
