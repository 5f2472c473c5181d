package admin

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
)

func newTestClient(t *testing.T) (*Client, *apolotest.Platform) {
	t.Helper()
	p := apolotest.NewPlatform(t)
	return New(api.New(), p.URL+"/apis/admin/v1"), p
}

func decode[T any](t *testing.T, r *http.Request) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(r.Body).Decode(&v))
	return v
}

func TestClient_ClusterUsers(t *testing.T) {
	c, p := newTestClient(t)
	var added ClusterUser
	p.Handle("POST /apis/admin/v1/clusters/{cluster}/users", func(w http.ResponseWriter, r *http.Request) {
		added = decode[ClusterUser](t, r)
		added.ClusterName = r.PathValue("cluster")
		apolotest.WriteJSON(w, http.StatusCreated, added)
	})
	var listQuery string
	p.Handle("GET /apis/admin/v1/clusters/{cluster}/users", func(w http.ResponseWriter, r *http.Request) {
		listQuery = r.URL.RawQuery
		apolotest.WriteJSON(w, http.StatusOK, []ClusterUser{added})
	})
	var patches []map[string]any
	var mu sync.Mutex
	patch := func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		patches = append(patches, decode[map[string]any](t, r))
		mu.Unlock()
		apolotest.WriteJSON(w, http.StatusOK, added)
	}
	p.Handle("PATCH /apis/admin/v1/clusters/{cluster}/users/{user}/quota", patch)
	p.Handle("PATCH /apis/admin/v1/clusters/{cluster}/users/{user}/balance", patch)
	p.JSON("DELETE /apis/admin/v1/clusters/{cluster}/users/{user}", http.StatusNoContent, nil)
	ctx := apolotest.TestContext(t)

	jobs, credits := 5, "100"
	u, err := c.AddClusterUser(ctx, AddClusterUserRequest{Cluster: "default", User: "bob", Role: RoleUser, Jobs: &jobs, Credits: &credits})
	require.NoError(t, err)
	assert.Equal(t, "default", u.ClusterName)
	assert.Equal(t, 5, *added.Quota.TotalRunningJobs)
	assert.Equal(t, "100", *added.Balance.Credits)

	_, err = c.AddClusterUser(ctx, AddClusterUserRequest{Cluster: "default", User: "bob", Role: "owner"})
	assert.ErrorContains(t, err, "invalid cluster role")

	users, err := c.ListClusterUsers(ctx, "default", "acme")
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "org_name=acme", listQuery)

	_, err = c.SetUserQuota(ctx, "default", "", "bob", nil)
	require.NoError(t, err)
	_, err = c.SetUserCredits(ctx, "default", "", "bob", &credits)
	require.NoError(t, err)
	_, err = c.AddUserCredits(ctx, "default", "", "bob", "-10")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"quota": map[string]any{}},
		{"credits": "100"},
		{"additional_credits": "-10"},
	}, patches)

	require.NoError(t, c.RemoveClusterUser(ctx, "default", "", "bob"))
}

func TestClient_OrgsAndProjects(t *testing.T) {
	c, p := newTestClient(t)
	p.JSON("GET /apis/admin/v1/orgs", http.StatusOK, []Org{{Name: "acme"}})
	p.Handle("POST /apis/admin/v1/orgs", func(w http.ResponseWriter, r *http.Request) {
		apolotest.WriteJSON(w, http.StatusCreated, Org{Name: decode[map[string]string](t, r)["name"]})
	})
	p.JSON("DELETE /apis/admin/v1/orgs/{org}", http.StatusNoContent, nil)
	p.JSON("POST /apis/admin/v1/orgs/{org}/users", http.StatusCreated, OrgUser{UserName: "bob", Role: RoleManager})
	p.Handle("POST /apis/admin/v1/clusters/{cluster}/orgs/{org}/projects", func(w http.ResponseWriter, r *http.Request) {
		body := decode[map[string]any](t, r)
		apolotest.WriteJSON(w, http.StatusCreated, Project{
			Name:        body["name"].(string),
			ClusterName: r.PathValue("cluster"),
			OrgName:     r.PathValue("org"),
			DefaultRole: Role(body["default_role"].(string)),
		})
	})
	p.JSON("GET /apis/admin/v1/clusters/{cluster}/projects", http.StatusOK, []Project{{Name: "legacy"}})
	p.JSON("POST /apis/admin/v1/clusters/{cluster}/orgs/{org}/projects/{project}/users", http.StatusCreated, ProjectUser{UserName: "bob", Role: RoleReader})
	ctx := apolotest.TestContext(t)

	orgs, err := c.ListOrgs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme", orgs[0].Name)

	org, err := c.CreateOrg(ctx, "globex")
	require.NoError(t, err)
	assert.Equal(t, "globex", org.Name)
	require.NoError(t, c.RemoveOrg(ctx, "globex"))

	_, err = c.AddOrgUser(ctx, "acme", "bob", RoleReader)
	assert.Error(t, err, "reader is a project role")
	ou, err := c.AddOrgUser(ctx, "acme", "bob", RoleManager)
	require.NoError(t, err)
	assert.Equal(t, RoleManager, ou.Role)

	proj, err := c.CreateProject(ctx, CreateProjectRequest{Cluster: "default", Org: "acme", Name: "vision"})
	require.NoError(t, err)
	assert.Equal(t, RoleWriter, proj.DefaultRole)
	assert.Equal(t, "acme", proj.OrgName)

	legacy, err := c.ListProjects(ctx, "default", "")
	require.NoError(t, err)
	assert.Equal(t, "legacy", legacy[0].Name)

	pu, err := c.AddProjectUser(ctx, "default", "acme", "vision", "bob", RoleReader)
	require.NoError(t, err)
	assert.Equal(t, RoleReader, pu.Role)
}

func TestClient_Presets(t *testing.T) {
	c, p := newTestClient(t)
	var mu sync.Mutex
	presets := []ResourcePreset{{Name: "cpu-small", Preset: config.Preset{CPU: 1, Memory: 1 << 30}}}
	p.Handle("GET /apis/admin/v1/clusters/{cluster}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		apolotest.WriteJSON(w, http.StatusOK, Cluster{Name: r.PathValue("cluster"), Orchestrator: &OrchestratorConfig{ResourcePresets: presets}})
	})
	p.Handle("PUT /apis/admin/v1/clusters/{cluster}/orchestrator/resource_presets", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		presets = decode[[]ResourcePreset](t, r)
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := apolotest.TestContext(t)

	gpu := ResourcePreset{Name: "gpu", Preset: config.Preset{CPU: 8, Memory: 64 << 30, GPU: 1, GPUModel: "a100"}}
	require.NoError(t, c.AddPreset(ctx, "default", gpu))
	assert.ErrorIs(t, c.AddPreset(ctx, "default", gpu), api.ErrConflict)

	gpu.GPU = 2
	require.NoError(t, c.UpdatePreset(ctx, "default", gpu))
	got, err := c.Presets(ctx, "default")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].GPU)
	assert.Equal(t, "a100", got[1].GPUModel)

	assert.ErrorIs(t, c.UpdatePreset(ctx, "default", ResourcePreset{Name: "nope"}), api.ErrResourceNotFound)
	require.NoError(t, c.RemovePreset(ctx, "default", "cpu-small"))
	got, err = c.Presets(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, []string{"gpu"}, []string{got[0].Name})
	assert.ErrorIs(t, c.RemovePreset(ctx, "default", "cpu-small"), api.ErrResourceNotFound)
}
