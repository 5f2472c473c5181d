package secrets

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
)

func TestReadValue(t *testing.T) {
	v, err := ReadValue("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", string(v))

	p := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(p, []byte("-----BEGIN-----"), 0o600))
	v, err = ReadValue("@" + p)
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN-----", string(v))

	_, err = ReadValue("@" + filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	p := apolotest.NewPlatform(t)
	c := New(api.New(), p.URL+"/secrets", api.Scope{Org: "acme", Project: "alpha"})

	stored := map[string]string{}
	p.Handle("POST /secrets", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		value, err := base64.StdEncoding.DecodeString(body["value"])
		require.NoError(t, err)
		stored[body["key"]] = string(value)
		w.WriteHeader(http.StatusCreated)
	})
	p.Handle("GET /secrets", func(w http.ResponseWriter, r *http.Request) {
		var out []Secret
		for k := range stored {
			out = append(out, Secret{Key: k, Owner: "alice", ProjectName: r.URL.Query().Get("project_name")})
		}
		apolotest.WriteJSON(w, http.StatusOK, out)
	})
	p.Handle("DELETE /secrets/{key}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := stored[r.PathValue("key")]; !ok {
			apolotest.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no secret"})
			return
		}
		delete(stored, r.PathValue("key"))
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := apolotest.TestContext(t)

	require.NoError(t, c.Add(ctx, "api-key", []byte("s3cr3t")))
	assert.Equal(t, "s3cr3t", stored["api-key"])

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "api-key", list[0].Key)
	assert.Equal(t, "alpha", list[0].ProjectName)

	require.NoError(t, c.Rm(ctx, "api-key"))
	assert.ErrorIs(t, c.Rm(ctx, "api-key"), api.ErrResourceNotFound)
}
