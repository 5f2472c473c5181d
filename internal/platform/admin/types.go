package admin

import (
	"fmt"
	"slices"

	"github.com/neuro-inc/apolo-cli/internal/config"
)

// Role is a user's role in a cluster, org or project.
type Role string

// Roles. Clusters and orgs use admin, manager and user; projects use
// admin, manager, writer and reader.
const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
	RoleMember  Role = "member"
	RoleWriter  Role = "writer"
	RoleReader  Role = "reader"
)

var (
	clusterRoles = []Role{RoleAdmin, RoleManager, RoleUser, RoleMember}
	orgRoles     = []Role{RoleAdmin, RoleManager, RoleUser}
	projectRoles = []Role{RoleAdmin, RoleManager, RoleWriter, RoleReader}
)

func checkRole(kind string, r Role, allowed []Role) error {
	if !slices.Contains(allowed, r) {
		return fmt.Errorf("invalid %s role %q, expected one of %v", kind, r, allowed)
	}
	return nil
}

// Cluster is a cluster known to the admin service.
type Cluster struct {
	Name         string              `json:"name"`
	Status       string              `json:"status,omitempty"`
	Orchestrator *OrchestratorConfig `json:"orchestrator,omitempty"`
}

// OrchestratorConfig is the scheduling part of a cluster's configuration.
type OrchestratorConfig struct {
	ResourcePresets []ResourcePreset `json:"resource_presets"`
}

// ResourcePreset is a named preset in a cluster's configuration.
type ResourcePreset struct {
	Name string `json:"name"`
	config.Preset
}

// Quota bounds what a user may run.
type Quota struct {
	TotalRunningJobs *int `json:"total_running_jobs,omitempty"`
}

// Balance tracks a user's or org's credits. Nil credits mean unlimited.
type Balance struct {
	Credits      *string `json:"credits,omitempty"`
	SpentCredits string  `json:"spent_credits,omitempty"`
}

// ClusterUser is a user's membership in a cluster.
type ClusterUser struct {
	UserName    string  `json:"user_name"`
	Role        Role    `json:"role"`
	OrgName     string  `json:"org_name,omitempty"`
	Quota       Quota   `json:"quota"`
	Balance     Balance `json:"balance"`
	ClusterName string  `json:"cluster_name"`
}

// Org is an organization.
type Org struct {
	Name    string  `json:"name"`
	Balance Balance `json:"balance"`
}

// OrgUser is a user's membership in an org.
type OrgUser struct {
	UserName string  `json:"user_name"`
	OrgName  string  `json:"org_name"`
	Role     Role    `json:"role"`
	Balance  Balance `json:"balance"`
}

// Project is a project as managed by admins.
type Project struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	OrgName     string `json:"org_name,omitempty"`
	DefaultRole Role   `json:"default_role"`
	IsDefault   bool   `json:"is_default"`
}

// ProjectUser is a user's membership in a project.
type ProjectUser struct {
	UserName    string `json:"user_name"`
	Role        Role   `json:"role"`
	ProjectName string `json:"project_name"`
}
