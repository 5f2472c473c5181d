package disks

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"10G", 10_000_000_000, false},
		{"10Gi", 10 << 30, false},
		{"500Mi", 500 << 20, false},
		{"1024", 1024, false},
		{"0", 0, true},
		{"-1G", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestClient(t *testing.T) (*Client, *apolotest.Platform) {
	t.Helper()
	p := apolotest.NewPlatform(t)
	return New(api.New(), p.URL+"/disk", api.Scope{Org: "acme", Project: "alpha"}), p
}

func TestClient_Create(t *testing.T) {
	c, p := newTestClient(t)
	var body map[string]any
	p.Handle("POST /disk", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		life := 3600.0
		apolotest.WriteJSON(w, http.StatusCreated, Disk{ID: "disk-1", Name: "data", Storage: 1 << 30, Status: StatusPending, LifeSpan: &life})
	})

	d, err := c.Create(apolotest.TestContext(t), CreateRequest{Storage: 1 << 30, TimeoutUnused: time.Hour, Name: "data"})
	require.NoError(t, err)
	assert.Equal(t, "disk-1", d.ID)
	assert.Equal(t, time.Hour, d.TimeoutUnused())
	assert.Equal(t, float64(1<<30), body["storage"])
	assert.Equal(t, 3600.0, body["life_span"])
	assert.Equal(t, "data", body["name"])
	assert.Equal(t, "alpha", body["project_name"])
}

func TestClient_ListGetRm(t *testing.T) {
	c, p := newTestClient(t)
	p.Handle("GET /disk", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme", r.URL.Query().Get("org_name"))
		apolotest.WriteJSON(w, http.StatusOK, []Disk{{ID: "disk-1"}, {ID: "disk-2", Status: StatusReady}})
	})
	p.Handle("GET /disk/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "disk-1" {
			apolotest.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		apolotest.WriteJSON(w, http.StatusOK, Disk{ID: "disk-1", Status: StatusReady})
	})
	p.JSON("DELETE /disk/{id}", http.StatusNoContent, nil)
	ctx := apolotest.TestContext(t)

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	d, err := c.Get(ctx, "disk-1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, d.Status)
	assert.Zero(t, d.TimeoutUnused())

	_, err = c.Get(ctx, "disk-9")
	assert.ErrorIs(t, err, api.ErrResourceNotFound)

	require.NoError(t, c.Rm(ctx, "disk-1"))
}
