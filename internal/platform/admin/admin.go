// Package admin is the client of the platform admin service: clusters,
// orgs, projects, their members, quotas, credits and resource presets.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
)

// Client talks to the admin service.
type Client struct {
	api     *api.Client
	baseURL string
}

// New creates an admin client for baseURL, the config's admin_url.
func New(c *api.Client, baseURL string) *Client {
	return &Client{api: c, baseURL: baseURL}
}

func (c *Client) do(ctx context.Context, method string, q url.Values, body, out any, elem ...string) error {
	u, err := api.JoinURL(c.baseURL, elem...)
	if err != nil {
		return err
	}
	return c.api.Do(ctx, api.Request{Method: method, URL: u, Query: q, JSON: body}, out)
}

// ListClusters returns every cluster the caller administers.
func (c *Client) ListClusters(ctx context.Context) ([]Cluster, error) {
	var out []Cluster
	if err := c.do(ctx, http.MethodGet, nil, nil, &out, "clusters"); err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	return out, nil
}

// GetCluster returns one cluster including its orchestrator configuration.
func (c *Client) GetCluster(ctx context.Context, name string) (Cluster, error) {
	var out Cluster
	if err := c.do(ctx, http.MethodGet, nil, nil, &out, "clusters", name); err != nil {
		return Cluster{}, fmt.Errorf("failed to get cluster %q: %w", name, err)
	}
	return out, nil
}

func orgQuery(org string) url.Values {
	if org == "" {
		return nil
	}
	return url.Values{"org_name": {org}}
}

// ListClusterUsers returns the members of a cluster, optionally within an org.
func (c *Client) ListClusterUsers(ctx context.Context, cluster, org string) ([]ClusterUser, error) {
	var out []ClusterUser
	if err := c.do(ctx, http.MethodGet, orgQuery(org), nil, &out, "clusters", cluster, "users"); err != nil {
		return nil, fmt.Errorf("failed to list users of cluster %q: %w", cluster, err)
	}
	return out, nil
}

// AddClusterUserRequest describes a new cluster member.
type AddClusterUserRequest struct {
	Cluster string
	Org     string
	User    string
	Role    Role
	// Credits and Jobs are unlimited when nil.
	Credits *string
	Jobs    *int
}

// AddClusterUser grants a user access to a cluster.
func (c *Client) AddClusterUser(ctx context.Context, req AddClusterUserRequest) (ClusterUser, error) {
	if err := checkRole("cluster", req.Role, clusterRoles); err != nil {
		return ClusterUser{}, err
	}
	body := ClusterUser{
		UserName: req.User,
		Role:     req.Role,
		OrgName:  req.Org,
		Quota:    Quota{TotalRunningJobs: req.Jobs},
		Balance:  Balance{Credits: req.Credits},
	}
	var out ClusterUser
	if err := c.do(ctx, http.MethodPost, nil, body, &out, "clusters", req.Cluster, "users"); err != nil {
		return ClusterUser{}, fmt.Errorf("failed to add user %q to cluster %q: %w", req.User, req.Cluster, err)
	}
	return out, nil
}

// RemoveClusterUser revokes a user's cluster access.
func (c *Client) RemoveClusterUser(ctx context.Context, cluster, org, user string) error {
	if err := c.do(ctx, http.MethodDelete, orgQuery(org), nil, nil, "clusters", cluster, "users", user); err != nil {
		return fmt.Errorf("failed to remove user %q from cluster %q: %w", user, cluster, err)
	}
	return nil
}

// SetUserQuota sets the running jobs quota; nil removes the limit.
func (c *Client) SetUserQuota(ctx context.Context, cluster, org, user string, jobs *int) (ClusterUser, error) {
	var out ClusterUser
	body := map[string]Quota{"quota": {TotalRunningJobs: jobs}}
	if err := c.do(ctx, http.MethodPatch, orgQuery(org), body, &out, "clusters", cluster, "users", user, "quota"); err != nil {
		return ClusterUser{}, fmt.Errorf("failed to set quota of %q: %w", user, err)
	}
	return out, nil
}

// SetUserCredits sets the credits balance; nil removes the limit.
func (c *Client) SetUserCredits(ctx context.Context, cluster, org, user string, credits *string) (ClusterUser, error) {
	var out ClusterUser
	body := map[string]*string{"credits": credits}
	if err := c.do(ctx, http.MethodPatch, orgQuery(org), body, &out, "clusters", cluster, "users", user, "balance"); err != nil {
		return ClusterUser{}, fmt.Errorf("failed to set credits of %q: %w", user, err)
	}
	return out, nil
}

// AddUserCredits adds (or with a negative amount, subtracts) credits.
func (c *Client) AddUserCredits(ctx context.Context, cluster, org, user, amount string) (ClusterUser, error) {
	var out ClusterUser
	body := map[string]string{"additional_credits": amount}
	if err := c.do(ctx, http.MethodPatch, orgQuery(org), body, &out, "clusters", cluster, "users", user, "balance"); err != nil {
		return ClusterUser{}, fmt.Errorf("failed to add credits to %q: %w", user, err)
	}
	return out, nil
}

// ListOrgs returns every org.
func (c *Client) ListOrgs(ctx context.Context) ([]Org, error) {
	var out []Org
	if err := c.do(ctx, http.MethodGet, nil, nil, &out, "orgs"); err != nil {
		return nil, fmt.Errorf("failed to list orgs: %w", err)
	}
	return out, nil
}

// CreateOrg creates an org.
func (c *Client) CreateOrg(ctx context.Context, name string) (Org, error) {
	var out Org
	if err := c.do(ctx, http.MethodPost, nil, map[string]string{"name": name}, &out, "orgs"); err != nil {
		return Org{}, fmt.Errorf("failed to create org %q: %w", name, err)
	}
	return out, nil
}

// RemoveOrg deletes an org.
func (c *Client) RemoveOrg(ctx context.Context, name string) error {
	if err := c.do(ctx, http.MethodDelete, nil, nil, nil, "orgs", name); err != nil {
		return fmt.Errorf("failed to remove org %q: %w", name, err)
	}
	return nil
}

// SetOrgCredits sets an org's balance; nil removes the limit.
func (c *Client) SetOrgCredits(ctx context.Context, org string, credits *string) (Org, error) {
	var out Org
	if err := c.do(ctx, http.MethodPatch, nil, map[string]*string{"credits": credits}, &out, "orgs", org, "balance"); err != nil {
		return Org{}, fmt.Errorf("failed to set credits of org %q: %w", org, err)
	}
	return out, nil
}

// ListOrgUsers returns the members of an org.
func (c *Client) ListOrgUsers(ctx context.Context, org string) ([]OrgUser, error) {
	var out []OrgUser
	if err := c.do(ctx, http.MethodGet, nil, nil, &out, "orgs", org, "users"); err != nil {
		return nil, fmt.Errorf("failed to list users of org %q: %w", org, err)
	}
	return out, nil
}

// AddOrgUser adds a member to an org.
func (c *Client) AddOrgUser(ctx context.Context, org, user string, role Role) (OrgUser, error) {
	if err := checkRole("org", role, orgRoles); err != nil {
		return OrgUser{}, err
	}
	var out OrgUser
	body := map[string]any{"user_name": user, "role": role}
	if err := c.do(ctx, http.MethodPost, nil, body, &out, "orgs", org, "users"); err != nil {
		return OrgUser{}, fmt.Errorf("failed to add user %q to org %q: %w", user, org, err)
	}
	return out, nil
}

// RemoveOrgUser removes a member from an org.
func (c *Client) RemoveOrgUser(ctx context.Context, org, user string) error {
	if err := c.do(ctx, http.MethodDelete, nil, nil, nil, "orgs", org, "users", user); err != nil {
		return fmt.Errorf("failed to remove user %q from org %q: %w", user, org, err)
	}
	return nil
}

func projectPath(cluster, org string, elem ...string) []string {
	p := []string{"clusters", cluster}
	if org != "" {
		p = append(p, "orgs", org)
	}
	return append(append(p, "projects"), elem...)
}

// ListProjects returns the projects of a cluster and org.
func (c *Client) ListProjects(ctx context.Context, cluster, org string) ([]Project, error) {
	var out []Project
	if err := c.do(ctx, http.MethodGet, nil, nil, &out, projectPath(cluster, org)...); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return out, nil
}

// CreateProjectRequest describes a new project.
type CreateProjectRequest struct {
	Cluster     string
	Org         string
	Name        string
	DefaultRole Role
	// IsDefault adds every new cluster member to the project.
	IsDefault bool
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (Project, error) {
	if req.DefaultRole == "" {
		req.DefaultRole = RoleWriter
	}
	if err := checkRole("project", req.DefaultRole, projectRoles); err != nil {
		return Project{}, err
	}
	body := map[string]any{"name": req.Name, "default_role": req.DefaultRole, "is_default": req.IsDefault}
	var out Project
	if err := c.do(ctx, http.MethodPost, nil, body, &out, projectPath(req.Cluster, req.Org)...); err != nil {
		return Project{}, fmt.Errorf("failed to create project %q: %w", req.Name, err)
	}
	return out, nil
}

// RemoveProject deletes a project.
func (c *Client) RemoveProject(ctx context.Context, cluster, org, name string) error {
	if err := c.do(ctx, http.MethodDelete, nil, nil, nil, projectPath(cluster, org, name)...); err != nil {
		return fmt.Errorf("failed to remove project %q: %w", name, err)
	}
	return nil
}

// ListProjectUsers returns the members of a project.
func (c *Client) ListProjectUsers(ctx context.Context, cluster, org, project string) ([]ProjectUser, error) {
	var out []ProjectUser
	if err := c.do(ctx, http.MethodGet, nil, nil, &out, projectPath(cluster, org, project, "users")...); err != nil {
		return nil, fmt.Errorf("failed to list users of project %q: %w", project, err)
	}
	return out, nil
}

// AddProjectUser adds a member to a project.
func (c *Client) AddProjectUser(ctx context.Context, cluster, org, project, user string, role Role) (ProjectUser, error) {
	if err := checkRole("project", role, projectRoles); err != nil {
		return ProjectUser{}, err
	}
	var out ProjectUser
	body := map[string]any{"user_name": user, "role": role}
	if err := c.do(ctx, http.MethodPost, nil, body, &out, projectPath(cluster, org, project, "users")...); err != nil {
		return ProjectUser{}, fmt.Errorf("failed to add user %q to project %q: %w", user, project, err)
	}
	return out, nil
}

// RemoveProjectUser removes a member from a project.
func (c *Client) RemoveProjectUser(ctx context.Context, cluster, org, project, user string) error {
	if err := c.do(ctx, http.MethodDelete, nil, nil, nil, projectPath(cluster, org, project, "users", user)...); err != nil {
		return fmt.Errorf("failed to remove user %q from project %q: %w", user, project, err)
	}
	return nil
}

// Presets returns the resource presets configured on a cluster.
func (c *Client) Presets(ctx context.Context, cluster string) ([]ResourcePreset, error) {
	cl, err := c.GetCluster(ctx, cluster)
	if err != nil {
		return nil, err
	}
	if cl.Orchestrator == nil {
		return nil, nil
	}
	return cl.Orchestrator.ResourcePresets, nil
}

func (c *Client) putPresets(ctx context.Context, cluster string, presets []ResourcePreset) error {
	if err := c.do(ctx, http.MethodPut, nil, presets, nil, "clusters", cluster, "orchestrator", "resource_presets"); err != nil {
		return fmt.Errorf("failed to update presets of cluster %q: %w", cluster, err)
	}
	return nil
}

func presetIndex(presets []ResourcePreset, name string) int {
	return slices.IndexFunc(presets, func(p ResourcePreset) bool { return p.Name == name })
}

// AddPreset adds a new preset; the name must be unused.
func (c *Client) AddPreset(ctx context.Context, cluster string, preset ResourcePreset) error {
	presets, err := c.Presets(ctx, cluster)
	if err != nil {
		return err
	}
	if presetIndex(presets, preset.Name) >= 0 {
		return fmt.Errorf("%w: preset %q already exists", api.ErrConflict, preset.Name)
	}
	return c.putPresets(ctx, cluster, append(presets, preset))
}

// UpdatePreset replaces an existing preset.
func (c *Client) UpdatePreset(ctx context.Context, cluster string, preset ResourcePreset) error {
	presets, err := c.Presets(ctx, cluster)
	if err != nil {
		return err
	}
	i := presetIndex(presets, preset.Name)
	if i < 0 {
		return fmt.Errorf("%w: preset %q", api.ErrResourceNotFound, preset.Name)
	}
	presets[i] = preset
	return c.putPresets(ctx, cluster, presets)
}

// RemovePreset deletes a preset by name.
func (c *Client) RemovePreset(ctx context.Context, cluster, name string) error {
	presets, err := c.Presets(ctx, cluster)
	if err != nil {
		return err
	}
	i := presetIndex(presets, name)
	if i < 0 {
		return fmt.Errorf("%w: preset %q", api.ErrResourceNotFound, name)
	}
	return c.putPresets(ctx, cluster, slices.Delete(presets, i, i+1))
}
