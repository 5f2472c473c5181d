package handlers

import (
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuro-inc/apolo-cli/internal/config"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
	"github.com/neuro-inc/apolo-cli/internal/ui/prompt"
)

// serveDiscovery answers the anonymous and authenticated config requests
// and records the Authorization header of each.
func serveDiscovery(h *harness) func() []string {
	var mu sync.Mutex
	var authHeaders []string
	h.platform.Handle("GET /api/v1/config", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		mu.Unlock()
		apolotest.WriteJSON(w, http.StatusOK, map[string]any{
			"auth_url":  "https://auth.example.com/authorize",
			"token_url": "https://auth.example.com/oauth/token",
			"client_id": "cli",
			"admin_url": h.platform.URL + "/apis/admin/v1",
			"clusters": []map[string]any{{
				"name":             "default",
				"orgs":             []string{"acme"},
				"storage_url":      h.platform.URL + "/storage",
				"resource_presets": []map[string]any{{"name": "cpu-large", "cpu": 4, "memory": 8 << 30}},
			}},
			"projects": []map[string]any{{"name": "alpha", "cluster_name": "default", "org_name": "acme", "role": "admin"}},
		})
	})
	h.env.Settings.URL = h.platform.URL + "/api/v1"
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), authHeaders...)
	}
}

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func TestLoginWithToken(t *testing.T) {
	h := newHarness(t)
	token := signedToken(t, "dave")
	headers := serveDiscovery(h)

	require.NoError(t, LoginWithToken(h.ctx, token))

	assert.Equal(t, 1, h.saves)
	assert.Equal(t, "dave", h.cfg.Username)
	assert.Equal(t, token, h.cfg.Token.Token)
	assert.Equal(t, "default", h.cfg.ClusterName)
	assert.Equal(t, "acme", h.cfg.OrgName)
	assert.Equal(t, "alpha", h.cfg.ProjectName)
	assert.Contains(t, h.cfg.Presets(), "cpu-large")
	authHeaders := headers()
	require.Len(t, authHeaders, 2)
	assert.Empty(t, authHeaders[0], "discovery is anonymous")
	assert.Equal(t, "Bearer "+token, authHeaders[1])
	assert.Contains(t, h.out.String(), "Logged in to")
}

func TestLoginWithToken_Stdin(t *testing.T) {
	h := newHarness(t)
	token := signedToken(t, "erin")
	serveDiscovery(h)
	h.env.In = strings.NewReader(token + "\n")

	require.NoError(t, LoginWithToken(h.ctx, ""))

	assert.Equal(t, token, h.cfg.Token.Token)
	assert.Equal(t, "erin", h.cfg.Username)
}

func TestLoginWithToken_EmptyStdin(t *testing.T) {
	h := newHarness(t)
	serveDiscovery(h)

	err := LoginWithToken(h.ctx, "")

	assert.EqualError(t, err, "no token given")
	assert.Empty(t, h.platform.Requests())
}

func TestLogout(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, Logout(h.ctx))

	assert.True(t, h.removed)
	assert.Contains(t, h.out.String(), "Logged out")

	err := ConfigShow(h.ctx)
	assert.ErrorIs(t, err, config.ErrNotLoggedIn)
}

func TestConfigShowToken(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, ConfigShowToken(h.ctx))

	assert.Equal(t, "token-1\n", h.out.String())
}

func TestSwitchCluster(t *testing.T) {
	h := newHarnessWith(t, apolotest.NewConfigBuilder().WithCluster("gpu", "acme"))

	require.NoError(t, SwitchCluster(h.ctx, "gpu"))

	assert.Equal(t, "gpu", h.cfg.ClusterName)
	assert.Equal(t, "acme", h.cfg.OrgName)
	assert.Empty(t, h.cfg.ProjectName, "gpu has no projects")
	assert.Contains(t, h.out.String(), "The current cluster is gpu")
}

func TestSwitchCluster_Unknown(t *testing.T) {
	h := newHarness(t)

	err := SwitchCluster(h.ctx, "missing")

	assert.ErrorIs(t, err, config.ErrUnknownCluster)
	assert.Zero(t, h.saves)
}

func TestSwitchProject(t *testing.T) {
	tests := []struct {
		name   string
		arg    string
		choice string
	}{
		{"argument", "beta", ""},
		{"prompt", "", "beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarnessWith(t, apolotest.NewConfigBuilder().WithProject("default", "acme", "beta"))
			h.prompter = prompt.Static{Choice: tt.choice}

			require.NoError(t, SwitchProject(h.ctx, tt.arg))

			assert.Equal(t, "beta", h.cfg.ProjectName)
			assert.Contains(t, h.out.String(), "The current project is beta")
		})
	}
}

func TestSwitchOrg_Unknown(t *testing.T) {
	h := newHarness(t)

	err := SwitchOrg(h.ctx, "other")

	assert.ErrorIs(t, err, config.ErrUnknownOrg)
	assert.Zero(t, h.saves)
}
