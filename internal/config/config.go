package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

// NoOrg selects the cluster's default (org-less) namespace.
const NoOrg = "NO_ORG"

var (
	// ErrNotLoggedIn is returned when no config file exists yet.
	ErrNotLoggedIn = errors.New("not logged in; run 'apolo config login' first")

	// ErrUnknownCluster is returned when switching to a cluster the user has no access to.
	ErrUnknownCluster = errors.New("unknown cluster")

	// ErrUnknownOrg is returned when switching to an org that is not available on the current cluster.
	ErrUnknownOrg = errors.New("unknown org")

	// ErrUnknownProject is returned when switching to a project outside the current cluster/org.
	ErrUnknownProject = errors.New("unknown project")
)

// AuthToken holds the OAuth tokens issued at login.
type AuthToken struct {
	Token        string    `yaml:"token"`
	ExpiresAt    time.Time `yaml:"expires_at"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
}

// Expired reports whether the access token expires within the given threshold.
func (t AuthToken) Expired(now time.Time, threshold time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(threshold).Before(t.ExpiresAt)
}

// AuthConfig describes the OAuth provider the platform delegates login to.
type AuthConfig struct {
	AuthURL            string   `yaml:"auth_url" json:"auth_url"`
	TokenURL           string   `yaml:"token_url" json:"token_url"`
	LogoutURL          string   `yaml:"logout_url,omitempty" json:"logout_url,omitempty"`
	ClientID           string   `yaml:"client_id" json:"client_id"`
	Audience           string   `yaml:"audience" json:"audience"`
	CallbackURLs       []string `yaml:"callback_urls" json:"callback_urls"`
	HeadlessCallback   string   `yaml:"headless_callback_url" json:"headless_callback_url"`
	SuccessRedirectURL string   `yaml:"success_redirect_url,omitempty" json:"success_redirect_url,omitempty"`
}

// Preset is a named bundle of compute resources offered by a cluster.
type Preset struct {
	CreditsPerHour     string   `yaml:"credits_per_hour" json:"credits_per_hour"`
	CPU                float64  `yaml:"cpu" json:"cpu"`
	Memory             int64    `yaml:"memory" json:"memory"`
	GPU                int      `yaml:"gpu,omitempty" json:"nvidia_gpu,omitempty"`
	GPUModel           string   `yaml:"gpu_model,omitempty" json:"nvidia_gpu_model,omitempty"`
	TPUType            string   `yaml:"tpu_type,omitempty" json:"tpu_type,omitempty"`
	TPUSoftwareVersion string   `yaml:"tpu_software_version,omitempty" json:"tpu_software_version,omitempty"`
	SchedulerEnabled   bool     `yaml:"scheduler_enabled,omitempty" json:"scheduler_enabled,omitempty"`
	Preemptible        bool     `yaml:"preemptible_node,omitempty" json:"preemptible_node,omitempty"`
	ResourcePools      []string `yaml:"resource_pools,omitempty" json:"resource_pool_names,omitempty"`
}

// Project is a project the user can access.
type Project struct {
	Name        string `yaml:"name" json:"name"`
	ClusterName string `yaml:"cluster_name" json:"cluster_name"`
	OrgName     string `yaml:"org_name,omitempty" json:"org_name,omitempty"`
	Role        string `yaml:"role" json:"role"`
}

// Cluster holds the service endpoints and presets of one cluster.
type Cluster struct {
	Name          string            `yaml:"name" json:"name"`
	RegistryURL   string            `yaml:"registry_url" json:"registry_url"`
	StorageURL    string            `yaml:"storage_url" json:"storage_url"`
	MonitoringURL string            `yaml:"monitoring_url" json:"monitoring_url"`
	SecretsURL    string            `yaml:"secrets_url" json:"secrets_url"`
	DisksURL      string            `yaml:"disks_url" json:"disks_url"`
	BucketsURL    string            `yaml:"buckets_url" json:"buckets_url"`
	Orgs          []string          `yaml:"orgs" json:"orgs"`
	Presets       map[string]Preset `yaml:"presets" json:"resource_presets"`
}

// Config is the persisted client state.
type Config struct {
	URL         string             `yaml:"url"`
	AdminURL    string             `yaml:"admin_url,omitempty"`
	Auth        AuthConfig         `yaml:"auth"`
	Token       AuthToken          `yaml:"token"`
	Username    string             `yaml:"username"`
	Clusters    map[string]Cluster `yaml:"clusters"`
	Projects    []Project          `yaml:"projects,omitempty"`
	ClusterName string             `yaml:"cluster_name"`
	OrgName     string             `yaml:"org_name,omitempty"`
	ProjectName string             `yaml:"project_name,omitempty"`
}

// ClusterConfig returns the settings of the currently selected cluster.
func (c *Config) ClusterConfig() (Cluster, error) {
	cl, ok := c.Clusters[c.ClusterName]
	if !ok {
		return Cluster{}, fmt.Errorf("%w %q; run 'apolo config switch-cluster'", ErrUnknownCluster, c.ClusterName)
	}
	return cl, nil
}

// ClusterNames returns the accessible cluster names in sorted order.
func (c *Config) ClusterNames() []string {
	names := make([]string, 0, len(c.Clusters))
	for name := range c.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns the presets of the current cluster.
func (c *Config) Presets() map[string]Preset {
	cl, err := c.ClusterConfig()
	if err != nil {
		return nil
	}
	return cl.Presets
}

// AvailableProjects lists projects in the current cluster and org.
func (c *Config) AvailableProjects() []Project {
	var out []Project
	for _, p := range c.Projects {
		if p.ClusterName == c.ClusterName && p.OrgName == c.OrgName {
			out = append(out, p)
		}
	}
	return out
}

// SwitchCluster selects a cluster and resets org and project to its defaults.
func (c *Config) SwitchCluster(name string) error {
	cl, ok := c.Clusters[name]
	if !ok {
		return fmt.Errorf("%w %q, available: %v", ErrUnknownCluster, name, c.ClusterNames())
	}
	c.ClusterName = name
	c.OrgName = ""
	if len(cl.Orgs) > 0 && !slices.Contains(cl.Orgs, NoOrg) {
		c.OrgName = cl.Orgs[0]
	}
	c.ProjectName = c.defaultProject()
	return nil
}

// SwitchOrg selects an org within the current cluster. NoOrg clears the selection.
func (c *Config) SwitchOrg(name string) error {
	cl, err := c.ClusterConfig()
	if err != nil {
		return err
	}
	if name == NoOrg || name == "" {
		if len(cl.Orgs) > 0 && !slices.Contains(cl.Orgs, NoOrg) {
			return fmt.Errorf("%w: cluster %q requires an org", ErrUnknownOrg, c.ClusterName)
		}
		c.OrgName = ""
		c.ProjectName = c.defaultProject()
		return nil
	}
	if !slices.Contains(cl.Orgs, name) {
		return fmt.Errorf("%w %q on cluster %q, available: %v", ErrUnknownOrg, name, c.ClusterName, cl.Orgs)
	}
	c.OrgName = name
	c.ProjectName = c.defaultProject()
	return nil
}

// SwitchProject selects a project within the current cluster and org.
func (c *Config) SwitchProject(name string) error {
	for _, p := range c.AvailableProjects() {
		if p.Name == name {
			c.ProjectName = name
			return nil
		}
	}
	return fmt.Errorf("%w %q in cluster %q", ErrUnknownProject, name, c.ClusterName)
}

func (c *Config) defaultProject() string {
	projects := c.AvailableProjects()
	if len(projects) == 1 {
		return projects[0].Name
	}
	return ""
}

// WithOverrides returns a copy with cluster/org/project taken from non-empty overrides.
// The copy is used for one invocation and is never persisted.
func (c *Config) WithOverrides(cluster, org, project string) (*Config, error) {
	out := *c
	if cluster != "" {
		if err := out.SwitchCluster(cluster); err != nil {
			return nil, err
		}
	}
	if org != "" {
		if err := out.SwitchOrg(org); err != nil {
			return nil, err
		}
	}
	if project != "" {
		out.ProjectName = project
	}
	return &out, nil
}
