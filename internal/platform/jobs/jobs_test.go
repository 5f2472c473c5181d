package jobs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
	"github.com/neuro-inc/apolo-cli/internal/util/retry"
)

func newTestClient(t *testing.T) (*Client, *apolotest.Platform) {
	t.Helper()
	p := apolotest.NewPlatform(t)
	a := api.New(api.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})))
	c := New(a, p.URL+"/api/v1", p.URL+"/jobs", "default", api.Scope{Org: "acme", Project: "alpha"})
	c.pollOptions = []retry.Option{retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(time.Millisecond)}
	return c, p
}

func TestClient_Start(t *testing.T) {
	c, p := newTestClient(t)
	var got StartRequest
	p.Handle("POST /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		apolotest.WriteJSON(w, http.StatusAccepted, JobDescription{ID: "job-1", Status: StatusPending, ProjectName: got.ProjectName})
	})

	job, err := c.Start(apolotest.TestContext(t), StartRequest{
		Container: Container{Image: "ubuntu", Command: "sleep 1", Resources: Resources{CPU: 0.5, Memory: 1 << 30}},
		Name:      "train",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "default", got.ClusterName)
	assert.Equal(t, "acme", got.OrgName)
	assert.Equal(t, "alpha", got.ProjectName)
	assert.Equal(t, int64(1<<30), got.Container.Resources.Memory)
}

func TestClient_List(t *testing.T) {
	c, p := newTestClient(t)
	var query map[string][]string
	p.Handle("GET /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = io.WriteString(w, `{"id":"job-1","status":"running"}`+"\n"+`{"id":"job-2","status":"pending","name":"eval"}`+"\n")
	})

	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var ids []string
	for job, err := range c.List(apolotest.TestContext(t), ListFilter{
		Statuses: []JobStatus{StatusRunning, StatusPending},
		Tags:     []string{"exp"},
		Since:    since,
		Limit:    10,
		Reverse:  true,
	}) {
		require.NoError(t, err)
		ids = append(ids, job.DisplayName())
	}
	assert.Equal(t, []string{"job-1", "eval"}, ids)
	assert.Equal(t, []string{"running", "pending"}, query["status"])
	assert.Equal(t, []string{"exp"}, query["tag"])
	assert.Equal(t, []string{"2026-01-02T03:04:05Z"}, query["since"])
	assert.Equal(t, []string{"10"}, query["limit"])
	assert.Equal(t, []string{"1"}, query["reverse"])
	assert.Equal(t, []string{"alpha"}, query["project_name"])
}

func TestListFilter_AllScopes(t *testing.T) {
	scope := api.Scope{Org: "acme", Project: "alpha"}

	q := ListFilter{AllProjects: true}.query("default", scope)
	assert.Equal(t, "acme", q.Get("org_name"))
	assert.False(t, q.Has("project_name"))

	q = ListFilter{AllOrgs: true}.query("default", scope)
	assert.False(t, q.Has("org_name"))
	assert.False(t, q.Has("project_name"))
	assert.Equal(t, "default", q.Get("cluster_name"))
}

func TestClient_StatusKillBump(t *testing.T) {
	c, p := newTestClient(t)
	p.JSON("GET /api/v1/jobs/{id}", http.StatusOK, JobDescription{ID: "job-1", Status: StatusSucceeded})
	var killed string
	p.Handle("DELETE /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		killed = r.PathValue("id")
		w.WriteHeader(http.StatusNoContent)
	})
	var bump map[string]int
	p.Handle("PUT /api/v1/jobs/{id}/max_run_time_minutes", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&bump))
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := apolotest.TestContext(t)

	job, err := c.Status(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, job.Status.IsFinished())

	require.NoError(t, c.Kill(ctx, "job-1"))
	assert.Equal(t, "job-1", killed)

	require.NoError(t, c.BumpLifeSpan(ctx, "job-1", 90*time.Minute))
	assert.Equal(t, map[string]int{"additional_max_run_time_minutes": 90}, bump)

	assert.Error(t, c.BumpLifeSpan(ctx, "job-1", 10*time.Second))
}

func TestClient_StatusNotFound(t *testing.T) {
	c, p := newTestClient(t)
	p.JSON("GET /api/v1/jobs/{id}", http.StatusNotFound, map[string]string{"error": "no such job"})

	_, err := c.Status(apolotest.TestContext(t), "job-x")
	assert.ErrorIs(t, err, api.ErrResourceNotFound)
}

func TestClient_WaitStart(t *testing.T) {
	c, p := newTestClient(t)
	var calls atomic.Int32
	p.Handle("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		job := JobDescription{ID: "job-1", Status: StatusPending, History: JobStatusHistory{Reason: "Creating"}}
		if n == 2 {
			job.History.Reason = "ContainerCreating"
		}
		if n >= 3 {
			job.Status = StatusRunning
			job.History.Reason = ""
		}
		apolotest.WriteJSON(w, http.StatusOK, job)
	})

	var seen []string
	job, err := c.WaitStart(apolotest.TestContext(t), "job-1", func(j JobDescription) {
		seen = append(seen, string(j.Status)+"/"+j.History.Reason)
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, []string{"pending/Creating", "pending/ContainerCreating", "running/"}, seen)
}

func TestClient_WaitStart_ServerErrors(t *testing.T) {
	c, p := newTestClient(t)
	var calls atomic.Int32
	p.Handle("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			apolotest.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy"})
		case 2:
			apolotest.WriteJSON(w, http.StatusOK, JobDescription{ID: "job-1", Status: StatusPending})
		default:
			apolotest.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "gone"})
		}
	})

	job, err := c.WaitStart(apolotest.TestContext(t), "job-1", nil)

	assert.ErrorIs(t, err, api.ErrResourceNotFound)
	assert.Equal(t, int32(3), calls.Load(), "unavailable is polled again, not found stops")
	assert.Equal(t, StatusPending, job.Status)
}

func TestClient_WaitFinish(t *testing.T) {
	c, p := newTestClient(t)
	var calls atomic.Int32
	p.Handle("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		job := JobDescription{ID: "job-1", Status: StatusRunning}
		if calls.Add(1) >= 2 {
			job.Status = StatusSucceeded
		}
		apolotest.WriteJSON(w, http.StatusOK, job)
	})

	job, err := c.WaitFinish(apolotest.TestContext(t), "job-1")

	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, job.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Logs(t *testing.T) {
	c, p := newTestClient(t)
	p.Handle("GET /jobs/{id}/log", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("timestamps"))
		_, _ = io.WriteString(w, "line 1\nline 2\n")
	})

	rc, err := c.Logs(apolotest.TestContext(t), "job-1", LogOptions{Timestamps: true})
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\n", string(data))
}

func TestClient_Top(t *testing.T) {
	c, p := newTestClient(t)
	upgrader := websocket.Upgrader{}
	p.Handle("GET /jobs/{id}/top", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for i := range 3 {
			_ = conn.WriteJSON(JobTelemetry{Timestamp: float64(1700000000 + i), CPU: 0.25 * float64(i+1), Memory: 1 << 20})
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	var cpu []float64
	for sample, err := range c.Top(apolotest.TestContext(t), "job-1") {
		require.NoError(t, err)
		cpu = append(cpu, sample.CPU)
	}
	assert.Equal(t, []float64{0.25, 0.5, 0.75}, cpu)
}

func TestClient_TopStopsOnBreak(t *testing.T) {
	c, p := newTestClient(t)
	upgrader := websocket.Upgrader{}
	p.Handle("GET /jobs/{id}/top", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			if err := conn.WriteJSON(JobTelemetry{CPU: 1}); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n := 0
	for _, err := range c.Top(ctx, "job-1") {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestToWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://h/x", toWebsocketURL("https://h/x"))
	assert.Equal(t, "ws://h/x", toWebsocketURL("http://h/x"))
}

func TestJobTelemetry_Time(t *testing.T) {
	tm := JobTelemetry{Timestamp: 1700000000.5}.Time()
	assert.Equal(t, int64(1700000000), tm.Unix())
	assert.Equal(t, 500*time.Millisecond, time.Duration(tm.Nanosecond()))
}
