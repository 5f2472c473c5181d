package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/platform"
	"github.com/neuro-inc/apolo-cli/internal/platform/admin"
	"github.com/neuro-inc/apolo-cli/internal/platform/disks"
)

// ErrAborted is returned when the user declines a confirmation.
var ErrAborted = errors.New("aborted")

// Scope names the cluster and org an admin command acts on. Empty fields
// default to the current selection.
type Scope struct {
	Cluster string
	Org     string
}

func adminSession(ctx context.Context, s Scope) (*Env, *admin.Client, Scope, error) {
	env, client, err := session(ctx)
	if err != nil {
		return nil, nil, s, err
	}
	ac, err := client.Admin()
	if err != nil {
		return nil, nil, s, err
	}
	return env, ac, resolveScope(client, s), nil
}

func resolveScope(client *platform.Client, s Scope) Scope {
	if s.Cluster == "" {
		s.Cluster = client.Config.ClusterName
	}
	switch s.Org {
	case "":
		s.Org = client.Config.OrgName
	case config.NoOrg:
		s.Org = ""
	}
	return s
}

// confirm asks before a destructive action unless yes is set.
func confirm(ctx context.Context, yes bool, format string, a ...any) error {
	if yes {
		return nil
	}
	ok, err := newPrompter().Confirm(ctx, fmt.Sprintf(format, a...))
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}

// AdminGetClusters lists clusters.
func AdminGetClusters(ctx context.Context) error {
	env, ac, _, err := adminSession(ctx, Scope{})
	if err != nil {
		return err
	}
	list, err := ac.ListClusters(ctx)
	if err != nil {
		return err
	}
	env.Print.Clusters(list)
	return nil
}

// AdminGetClusterUsers lists the members of a cluster.
func AdminGetClusterUsers(ctx context.Context, s Scope) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	list, err := ac.ListClusterUsers(ctx, s.Cluster, s.Org)
	if err != nil {
		return err
	}
	env.Print.ClusterUsers(list)
	return nil
}

// Limits are the optional credits and jobs limits; nil means unlimited.
type Limits struct {
	Credits *string
	Jobs    *int
}

// AdminAddClusterUser grants a user access to a cluster.
func AdminAddClusterUser(ctx context.Context, s Scope, user, role string, limits Limits) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	if role == "" {
		role = string(admin.RoleUser)
	}
	u, err := ac.AddClusterUser(ctx, admin.AddClusterUserRequest{
		Cluster: s.Cluster,
		Org:     s.Org,
		User:    user,
		Role:    admin.Role(role),
		Credits: limits.Credits,
		Jobs:    limits.Jobs,
	})
	if err != nil {
		return err
	}
	env.Print.Success("Added %s to cluster %s as %s", user, s.Cluster, u.Role)
	env.Print.ClusterUser(u)
	return nil
}

// AdminRemoveClusterUser revokes a user's cluster access.
func AdminRemoveClusterUser(ctx context.Context, s Scope, user string, yes bool) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	if err := confirm(ctx, yes, "Remove %s from cluster %s?", user, s.Cluster); err != nil {
		return err
	}
	if err := ac.RemoveClusterUser(ctx, s.Cluster, s.Org, user); err != nil {
		return err
	}
	env.Print.Success("Removed %s from cluster %s", user, s.Cluster)
	return nil
}

// AdminSetUserQuota sets a user's running jobs quota; nil removes it.
func AdminSetUserQuota(ctx context.Context, s Scope, user string, jobs *int) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	u, err := ac.SetUserQuota(ctx, s.Cluster, s.Org, user, jobs)
	if err != nil {
		return err
	}
	env.Print.ClusterUser(u)
	return nil
}

// AdminSetUserCredits sets a user's credits; nil removes the limit.
func AdminSetUserCredits(ctx context.Context, s Scope, user string, credits *string) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	u, err := ac.SetUserCredits(ctx, s.Cluster, s.Org, user, credits)
	if err != nil {
		return err
	}
	env.Print.ClusterUser(u)
	return nil
}

// AdminAddUserCredits adds credits to a user's balance.
func AdminAddUserCredits(ctx context.Context, s Scope, user, amount string) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	u, err := ac.AddUserCredits(ctx, s.Cluster, s.Org, user, amount)
	if err != nil {
		return err
	}
	env.Print.ClusterUser(u)
	return nil
}

// AdminGetOrgs lists orgs.
func AdminGetOrgs(ctx context.Context) error {
	env, ac, _, err := adminSession(ctx, Scope{})
	if err != nil {
		return err
	}
	list, err := ac.ListOrgs(ctx)
	if err != nil {
		return err
	}
	env.Print.Orgs(list)
	return nil
}

// AdminAddOrg creates an org.
func AdminAddOrg(ctx context.Context, name string) error {
	env, ac, _, err := adminSession(ctx, Scope{})
	if err != nil {
		return err
	}
	if _, err := ac.CreateOrg(ctx, name); err != nil {
		return err
	}
	env.Print.Success("Created org %s", name)
	return nil
}

// AdminRemoveOrg deletes an org.
func AdminRemoveOrg(ctx context.Context, name string, yes bool) error {
	env, ac, _, err := adminSession(ctx, Scope{})
	if err != nil {
		return err
	}
	if err := confirm(ctx, yes, "Remove org %s and all its data?", name); err != nil {
		return err
	}
	if err := ac.RemoveOrg(ctx, name); err != nil {
		return err
	}
	env.Print.Success("Removed org %s", name)
	return nil
}

// AdminGetOrgUsers lists the members of an org.
func AdminGetOrgUsers(ctx context.Context, org string) error {
	env, ac, _, err := adminSession(ctx, Scope{})
	if err != nil {
		return err
	}
	list, err := ac.ListOrgUsers(ctx, org)
	if err != nil {
		return err
	}
	env.Print.OrgUsers(list)
	return nil
}

// AdminAddOrgUser adds a user to an org.
func AdminAddOrgUser(ctx context.Context, org, user, role string) error {
	env, ac, _, err := adminSession(ctx, Scope{})
	if err != nil {
		return err
	}
	if role == "" {
		role = string(admin.RoleUser)
	}
	u, err := ac.AddOrgUser(ctx, org, user, admin.Role(role))
	if err != nil {
		return err
	}
	env.Print.Success("Added %s to org %s as %s", user, org, u.Role)
	return nil
}

// AdminRemoveOrgUser removes a user from an org.
func AdminRemoveOrgUser(ctx context.Context, org, user string, yes bool) error {
	env, ac, _, err := adminSession(ctx, Scope{})
	if err != nil {
		return err
	}
	if err := confirm(ctx, yes, "Remove %s from org %s?", user, org); err != nil {
		return err
	}
	if err := ac.RemoveOrgUser(ctx, org, user); err != nil {
		return err
	}
	env.Print.Success("Removed %s from org %s", user, org)
	return nil
}

// AdminGetProjects lists the projects of a cluster and org.
func AdminGetProjects(ctx context.Context, s Scope) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	list, err := ac.ListProjects(ctx, s.Cluster, s.Org)
	if err != nil {
		return err
	}
	env.Print.Projects(list)
	return nil
}

// AdminAddProject creates a project.
func AdminAddProject(ctx context.Context, s Scope, name, defaultRole string, isDefault bool) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	p, err := ac.CreateProject(ctx, admin.CreateProjectRequest{
		Cluster:     s.Cluster,
		Org:         s.Org,
		Name:        name,
		DefaultRole: admin.Role(defaultRole),
		IsDefault:   isDefault,
	})
	if err != nil {
		return err
	}
	env.Print.Success("Created project %s on cluster %s", p.Name, s.Cluster)
	return nil
}

// AdminRemoveProject deletes a project.
func AdminRemoveProject(ctx context.Context, s Scope, name string, yes bool) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	if err := confirm(ctx, yes, "Remove project %s from cluster %s?", name, s.Cluster); err != nil {
		return err
	}
	if err := ac.RemoveProject(ctx, s.Cluster, s.Org, name); err != nil {
		return err
	}
	env.Print.Success("Removed project %s", name)
	return nil
}

// AdminGetProjectUsers lists the members of a project.
func AdminGetProjectUsers(ctx context.Context, s Scope, project string) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	list, err := ac.ListProjectUsers(ctx, s.Cluster, s.Org, project)
	if err != nil {
		return err
	}
	env.Print.ProjectUsers(list)
	return nil
}

// AdminAddProjectUser adds a user to a project.
func AdminAddProjectUser(ctx context.Context, s Scope, project, user, role string) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	if role == "" {
		role = string(admin.RoleWriter)
	}
	u, err := ac.AddProjectUser(ctx, s.Cluster, s.Org, project, user, admin.Role(role))
	if err != nil {
		return err
	}
	env.Print.Success("Added %s to project %s as %s", user, project, u.Role)
	return nil
}

// AdminRemoveProjectUser removes a user from a project.
func AdminRemoveProjectUser(ctx context.Context, s Scope, project, user string, yes bool) error {
	env, ac, s, err := adminSession(ctx, s)
	if err != nil {
		return err
	}
	if err := confirm(ctx, yes, "Remove %s from project %s?", user, project); err != nil {
		return err
	}
	if err := ac.RemoveProjectUser(ctx, s.Cluster, s.Org, project, user); err != nil {
		return err
	}
	env.Print.Success("Removed %s from project %s", user, project)
	return nil
}

// PresetOptions are the resource preset flags.
type PresetOptions struct {
	CreditsPerHour string
	CPU            float64
	// Memory is a size such as "4G".
	Memory           string
	GPU              int
	GPUModel         string
	TPUType          string
	TPUVersion       string
	SchedulerEnabled bool
	Preemptible      bool
	ResourcePools    []string
}

func (o PresetOptions) preset(name string) (admin.ResourcePreset, error) {
	if o.CPU <= 0 {
		return admin.ResourcePreset{}, fmt.Errorf("preset %s: cpu must be positive", name)
	}
	mem, err := disks.ParseSize(o.Memory)
	if err != nil {
		return admin.ResourcePreset{}, fmt.Errorf("preset %s: %w", name, err)
	}
	credits := o.CreditsPerHour
	if credits == "" {
		credits = "0"
	}
	return admin.ResourcePreset{Name: name, Preset: config.Preset{
		CreditsPerHour:     credits,
		CPU:                o.CPU,
		Memory:             mem,
		GPU:                o.GPU,
		GPUModel:           o.GPUModel,
		TPUType:            o.TPUType,
		TPUSoftwareVersion: o.TPUVersion,
		SchedulerEnabled:   o.SchedulerEnabled,
		Preemptible:        o.Preemptible,
		ResourcePools:      o.ResourcePools,
	}}, nil
}

// AdminAddResourcePreset adds a preset to a cluster.
func AdminAddResourcePreset(ctx context.Context, cluster, name string, opts PresetOptions) error {
	env, ac, s, err := adminSession(ctx, Scope{Cluster: cluster})
	if err != nil {
		return err
	}
	p, err := opts.preset(name)
	if err != nil {
		return err
	}
	if err := ac.AddPreset(ctx, s.Cluster, p); err != nil {
		return err
	}
	env.Print.Success("Added resource preset %s to cluster %s", name, s.Cluster)
	return nil
}

// AdminUpdateResourcePreset replaces a preset of a cluster.
func AdminUpdateResourcePreset(ctx context.Context, cluster, name string, opts PresetOptions) error {
	env, ac, s, err := adminSession(ctx, Scope{Cluster: cluster})
	if err != nil {
		return err
	}
	p, err := opts.preset(name)
	if err != nil {
		return err
	}
	if err := ac.UpdatePreset(ctx, s.Cluster, p); err != nil {
		return err
	}
	env.Print.Success("Updated resource preset %s on cluster %s", name, s.Cluster)
	return nil
}

// AdminRemoveResourcePreset deletes a preset from a cluster.
func AdminRemoveResourcePreset(ctx context.Context, cluster, name string, yes bool) error {
	env, ac, s, err := adminSession(ctx, Scope{Cluster: cluster})
	if err != nil {
		return err
	}
	if err := confirm(ctx, yes, "Remove resource preset %s from cluster %s?", name, s.Cluster); err != nil {
		return err
	}
	if err := ac.RemovePreset(ctx, s.Cluster, name); err != nil {
		return err
	}
	env.Print.Success("Removed resource preset %s from cluster %s", name, s.Cluster)
	return nil
}

// AdminGetResourcePresets lists the presets of a cluster as configured.
func AdminGetResourcePresets(ctx context.Context, cluster string) error {
	env, ac, s, err := adminSession(ctx, Scope{Cluster: cluster})
	if err != nil {
		return err
	}
	list, err := ac.Presets(ctx, s.Cluster)
	if err != nil {
		return err
	}
	env.Print.ResourcePresets(list)
	return nil
}
