package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/platform/admin"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
	"github.com/neuro-inc/apolo-cli/internal/ui/prompt"
	"github.com/neuro-inc/apolo-cli/internal/util/ptr"
)

func TestAdminRemoveOrg_Confirmation(t *testing.T) {
	tests := []struct {
		name    string
		yes     bool
		answer  bool
		removed bool
	}{
		{"declined", false, false, false},
		{"confirmed", false, true, true},
		{"--yes", true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.prompter = prompt.Static{Yes: tt.answer}
			h.platform.Handle("DELETE /apis/admin/v1/orgs/{name}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			err := AdminRemoveOrg(h.ctx, "acme", tt.yes)

			if tt.removed {
				require.NoError(t, err)
				assert.Contains(t, h.out.String(), "Removed org acme")
			} else {
				assert.ErrorIs(t, err, ErrAborted)
			}
			assert.Equal(t, tt.removed, h.requested("DELETE /apis/admin/v1/orgs/acme"))
		})
	}
}

func TestAdminAddClusterUser(t *testing.T) {
	h := newHarness(t)
	var got admin.ClusterUser
	h.platform.Handle("POST /apis/admin/v1/clusters/default/users", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		apolotest.WriteJSON(w, http.StatusCreated, got)
	})

	require.NoError(t, AdminAddClusterUser(h.ctx, Scope{}, "bob", "", Limits{Credits: ptr.To("100"), Jobs: ptr.To(5)}))

	assert.Equal(t, "bob", got.UserName)
	assert.Equal(t, admin.RoleUser, got.Role)
	assert.Equal(t, "acme", got.OrgName)
	require.NotNil(t, got.Balance.Credits)
	assert.Equal(t, "100", *got.Balance.Credits)
	require.NotNil(t, got.Quota.TotalRunningJobs)
	assert.Equal(t, 5, *got.Quota.TotalRunningJobs)
	assert.Contains(t, h.out.String(), "Added bob to cluster default as user")
}

func TestAdminAddClusterUser_InvalidRole(t *testing.T) {
	h := newHarness(t)

	err := AdminAddClusterUser(h.ctx, Scope{}, "bob", "writer", Limits{})

	assert.ErrorContains(t, err, "invalid cluster role")
	assert.Empty(t, h.platform.Requests())
}

func TestResolveScope(t *testing.T) {
	h := newHarness(t)
	_, client, err := session(h.ctx)
	require.NoError(t, err)

	tests := []struct {
		in   Scope
		want Scope
	}{
		{Scope{}, Scope{Cluster: "default", Org: "acme"}},
		{Scope{Cluster: "other"}, Scope{Cluster: "other", Org: "acme"}},
		{Scope{Org: config.NoOrg}, Scope{Cluster: "default"}},
		{Scope{Org: "beta"}, Scope{Cluster: "default", Org: "beta"}},
	}
	for _, tt := range tests {
		if got := resolveScope(client, tt.in); got != tt.want {
			t.Errorf("resolveScope(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestAdminGetProjects_OrgPath(t *testing.T) {
	h := newHarness(t)
	h.platform.JSON("GET /apis/admin/v1/clusters/default/orgs/acme/projects", http.StatusOK, []admin.Project{
		{Name: "alpha", ClusterName: "default", OrgName: "acme", DefaultRole: admin.RoleWriter},
	})

	require.NoError(t, AdminGetProjects(h.ctx, Scope{}))

	assert.Contains(t, h.out.String(), "alpha")
}

// presetServer serves a cluster's orchestrator config and records updates.
func presetServer(h *harness, presets []admin.ResourcePreset) *[]admin.ResourcePreset {
	var put []admin.ResourcePreset
	h.platform.JSON("GET /apis/admin/v1/clusters/default", http.StatusOK, admin.Cluster{
		Name:         "default",
		Orchestrator: &admin.OrchestratorConfig{ResourcePresets: presets},
	})
	h.platform.Handle("PUT /apis/admin/v1/clusters/default/orchestrator/resource_presets", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&put)
		w.WriteHeader(http.StatusOK)
	})
	return &put
}

func TestAdminAddResourcePreset(t *testing.T) {
	h := newHarness(t)
	existing := []admin.ResourcePreset{{Name: "cpu-small", Preset: config.Preset{CPU: 1, Memory: 1 << 30, CreditsPerHour: "1"}}}
	put := presetServer(h, existing)

	err := AdminAddResourcePreset(h.ctx, "", "gpu-large", PresetOptions{CPU: 8, Memory: "32Gi", GPU: 2, GPUModel: "nvidia-a100", CreditsPerHour: "20"})
	require.NoError(t, err)

	require.Len(t, *put, 2)
	added := (*put)[1]
	assert.Equal(t, "gpu-large", added.Name)
	assert.Equal(t, int64(32<<30), added.Memory)
	assert.Equal(t, 2, added.GPU)
	assert.Equal(t, "20", added.CreditsPerHour)

	err = AdminAddResourcePreset(h.ctx, "", "cpu-small", PresetOptions{CPU: 1, Memory: "1Gi"})
	assert.ErrorContains(t, err, "already exists")
}

func TestAdminUpdateAndRemoveResourcePreset(t *testing.T) {
	h := newHarness(t)
	put := presetServer(h, []admin.ResourcePreset{
		{Name: "a", Preset: config.Preset{CPU: 1, Memory: 1 << 30}},
		{Name: "b", Preset: config.Preset{CPU: 2, Memory: 2 << 30}},
	})

	require.NoError(t, AdminUpdateResourcePreset(h.ctx, "default", "b", PresetOptions{CPU: 4, Memory: "4Gi"}))
	require.Len(t, *put, 2)
	assert.Equal(t, 4.0, (*put)[1].CPU)

	require.NoError(t, AdminRemoveResourcePreset(h.ctx, "default", "a", true))
	require.Len(t, *put, 1)
	assert.Equal(t, "b", (*put)[0].Name)

	err := AdminUpdateResourcePreset(h.ctx, "default", "missing", PresetOptions{CPU: 1, Memory: "1Gi"})
	assert.Error(t, err)
}

func TestPresetOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts PresetOptions
		want string
	}{
		{"no cpu", PresetOptions{Memory: "1Gi"}, "cpu must be positive"},
		{"bad memory", PresetOptions{CPU: 1, Memory: "lots"}, "invalid size"},
		{"missing memory", PresetOptions{CPU: 1}, "invalid size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.preset("p")
			assert.ErrorContains(t, err, tt.want)
		})
	}

	p, err := PresetOptions{CPU: 0.5, Memory: "512Mi"}.preset("tiny")
	require.NoError(t, err)
	assert.Equal(t, "0", p.CreditsPerHour)
	assert.Equal(t, int64(512<<20), p.Memory)
}
