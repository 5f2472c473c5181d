package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/platform/jobs"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
)

// captureStart answers job starts with id and records the request.
func captureStart(h *harness, id string) *jobs.StartRequest {
	var got jobs.StartRequest
	h.platform.Handle("POST /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		apolotest.WriteJSON(w, http.StatusAccepted, jobs.JobDescription{ID: id, Status: jobs.StatusPending})
	})
	return &got
}

func writeNDJSON(w http.ResponseWriter, items ...any) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, it := range items {
		_ = enc.Encode(it)
	}
}

func TestJobRun_Request(t *testing.T) {
	h := newHarnessWith(t, apolotest.NewConfigBuilder().
		WithPreset("gpu-small", config.Preset{CPU: 4, Memory: 16 << 30, GPU: 1, GPUModel: "nvidia-t4", CreditsPerHour: "10"}))
	got := captureStart(h, "job-1")

	err := JobRun(h.ctx, RunOptions{
		Image:    "ubuntu:22.04",
		Command:  []string{"echo", "hello world"},
		Preset:   "gpu-small",
		Name:     "train",
		Tags:     []string{"exp"},
		Volumes:  []string{"storage:data:/mnt/data:ro"},
		Env:      []string{"A=1"},
		LifeSpan: "1d2h",
	})
	require.NoError(t, err)

	assert.Equal(t, "ubuntu:22.04", got.Container.Image)
	assert.Equal(t, "echo 'hello world'", got.Container.Command)
	assert.Equal(t, map[string]string{"A": "1"}, got.Container.Env)
	assert.Equal(t, []jobs.Volume{{StorageURI: "storage://default/acme/alpha/data", MountPath: "/mnt/data", ReadOnly: true}}, got.Container.Volumes)
	assert.Equal(t, "gpu-small", got.PresetName)
	assert.Equal(t, 4.0, got.Container.Resources.CPU)
	assert.Equal(t, 1, got.Container.Resources.GPU)
	assert.True(t, got.Container.Resources.SharedMemory)
	assert.Equal(t, float64(26*60*60), got.LifeSpan)
	assert.Equal(t, "train", got.Name)
	assert.Equal(t, "acme", got.OrgName)
	assert.Equal(t, "alpha", got.ProjectName)
	assert.Equal(t, "default", got.ClusterName)
	assert.Contains(t, h.out.String(), "job-1")
}

func TestJobRun_DefaultPresetAndQuiet(t *testing.T) {
	h := newHarness(t)
	h.env.Settings.Quiet = true
	got := captureStart(h, "job-2")

	require.NoError(t, JobRun(h.ctx, RunOptions{Image: "alpine"}))

	assert.Equal(t, "cpu-small", got.PresetName)
	assert.Equal(t, "job-2\n", h.out.String())
}

func TestJobRun_SpecFile(t *testing.T) {
	h := newHarness(t)
	got := captureStart(h, "job-3")
	spec := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(spec, []byte(`
image: python:3.12
command: [python, train.py]
name: from-spec
env:
  B: "2"
  A: "1"
life_span: 2h
`), 0o644))

	require.NoError(t, JobRun(h.ctx, RunOptions{SpecFile: spec, Name: "from-flag", Env: []string{"A=override"}}))

	assert.Equal(t, "python:3.12", got.Container.Image)
	assert.Equal(t, "python train.py", got.Container.Command)
	assert.Equal(t, "from-flag", got.Name)
	assert.Equal(t, map[string]string{"A": "override", "B": "2"}, got.Container.Env)
	assert.Equal(t, float64(2*60*60), got.LifeSpan)
}

func TestJobRun_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts RunOptions
		want string
	}{
		{"no image", RunOptions{}, "an image is required"},
		{"unknown preset", RunOptions{Image: "alpine", Preset: "huge"}, "unknown preset"},
		{"bad life span", RunOptions{Image: "alpine", LifeSpan: "forever"}, "invalid duration"},
		{"bad restart policy", RunOptions{Image: "alpine", RestartPolicy: "sometimes"}, "invalid restart policy"},
		{"bad volume", RunOptions{Image: "alpine", Volumes: []string{"storage:data"}}, "volume"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := JobRun(h.ctx, tt.opts)
			assert.ErrorContains(t, err, tt.want)
			assert.False(t, h.requested("POST /api/v1/jobs"))
		})
	}
}

func TestJobRun_WaitExitCode(t *testing.T) {
	h := newHarness(t)
	captureStart(h, "job-4")
	var polls atomic.Int32
	h.platform.Handle("GET /api/v1/jobs/job-4", func(w http.ResponseWriter, _ *http.Request) {
		job := jobs.JobDescription{ID: "job-4", Status: jobs.StatusRunning}
		if polls.Add(1) > 1 {
			code := 3
			job.Status = jobs.StatusFailed
			job.History = jobs.JobStatusHistory{Status: jobs.StatusFailed, Reason: "Error", ExitCode: &code}
		}
		apolotest.WriteJSON(w, http.StatusOK, job)
	})
	h.platform.Handle("GET /jobs/job-4/log", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "epoch 1\nepoch 2\n")
	})

	err := JobRun(h.ctx, RunOptions{Image: "alpine", Wait: true})

	assert.Equal(t, 3, ExitCode(err))
	out := h.out.String()
	assert.Contains(t, out, "Status: running")
	assert.Contains(t, out, "epoch 1\nepoch 2\n")
	assert.Contains(t, out, "job-4 failed")
}

func TestJobRun_WaitSucceeded(t *testing.T) {
	h := newHarness(t)
	captureStart(h, "job-5")
	var polls atomic.Int32
	h.platform.Handle("GET /api/v1/jobs/job-5", func(w http.ResponseWriter, _ *http.Request) {
		job := jobs.JobDescription{ID: "job-5", Status: jobs.StatusPending}
		switch n := polls.Add(1); {
		case n == 2:
			job.Status = jobs.StatusRunning
		case n > 2:
			code := 0
			job.Status = jobs.StatusSucceeded
			job.History.ExitCode = &code
		}
		apolotest.WriteJSON(w, http.StatusOK, job)
	})
	h.platform.Handle("GET /jobs/job-5/log", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "ok\n")
	})

	require.NoError(t, JobRun(h.ctx, RunOptions{Image: "alpine", Wait: true}))
	assert.Contains(t, h.out.String(), "Status: pending")
}

func TestJobKill(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var listQueries []string
	h.platform.Handle("GET /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		listQueries = append(listQueries, r.URL.RawQuery)
		mu.Unlock()
		writeNDJSON(w, jobs.JobDescription{ID: "job-7", Name: "train", Status: jobs.StatusRunning})
	})
	h.platform.Handle("DELETE /api/v1/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, JobKill(h.ctx, []string{"train", "job-8", "job:/acme/alpha/job-9"}))

	assert.True(t, h.requested("DELETE /api/v1/jobs/job-7"))
	assert.True(t, h.requested("DELETE /api/v1/jobs/job-8"))
	assert.True(t, h.requested("DELETE /api/v1/jobs/job-9"))
	assert.Equal(t, "job-7\njob-8\njob-9\n", h.out.String())
	require.Len(t, listQueries, 1)
	assert.Contains(t, listQueries[0], "name=train")
	assert.Contains(t, listQueries[0], "reverse=1")
	assert.Contains(t, listQueries[0], "limit=1")
}

func TestJobKill_NotFound(t *testing.T) {
	h := newHarness(t)
	h.platform.Handle("GET /api/v1/jobs", func(w http.ResponseWriter, _ *http.Request) {
		writeNDJSON(w)
	})

	err := JobKill(h.ctx, []string{"ghost"})

	assert.ErrorContains(t, err, `job "ghost" not found`)
}

func TestJobLs(t *testing.T) {
	h := newHarness(t)
	var query string
	h.platform.Handle("GET /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeNDJSON(w,
			jobs.JobDescription{ID: "job-a", Status: jobs.StatusRunning, Owner: "alice"},
			jobs.JobDescription{ID: "job-b", Status: jobs.StatusPending, Owner: "alice"},
		)
	})

	require.NoError(t, JobLs(h.ctx, LsOptions{Owners: []string{"ME"}}))

	assert.Contains(t, h.out.String(), "job-a")
	assert.Contains(t, h.out.String(), "job-b")
	assert.Contains(t, query, "status=pending")
	assert.Contains(t, query, "status=running")
	assert.NotContains(t, query, "status=succeeded")
	assert.Contains(t, query, "owner=alice")
	assert.Contains(t, query, "project_name=alpha")
}

func TestJobLs_AllAndJSON(t *testing.T) {
	h := newHarness(t)
	var query string
	h.platform.Handle("GET /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeNDJSON(w, jobs.JobDescription{ID: "job-c", Status: jobs.StatusSucceeded})
	})

	require.NoError(t, JobLs(h.ctx, LsOptions{All: true, AllProjects: true, Output: "json"}))

	assert.NotContains(t, query, "status=")
	assert.NotContains(t, query, "project_name")
	var list []jobs.JobDescription
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "job-c", list[0].ID)
}

func TestJobLs_BadStatus(t *testing.T) {
	h := newHarness(t)

	err := JobLs(h.ctx, LsOptions{Statuses: []string{"sleeping"}})

	assert.ErrorContains(t, err, "unknown job status")
}

func TestJobBumpLifeSpan(t *testing.T) {
	h := newHarness(t)
	var body map[string]int
	h.platform.Handle("PUT /api/v1/jobs/job-1/max_run_time_minutes", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, JobBumpLifeSpan(h.ctx, "job-1", "1h30m"))

	assert.Equal(t, map[string]int{"additional_max_run_time_minutes": 90}, body)
}

func TestJobTop_Finished(t *testing.T) {
	h := newHarness(t)
	h.platform.JSON("GET /api/v1/jobs/job-1", http.StatusOK, jobs.JobDescription{ID: "job-1", Status: jobs.StatusSucceeded})

	err := JobTop(h.ctx, "job-1")

	assert.ErrorContains(t, err, "job-1")
}

func TestJoinCommand(t *testing.T) {
	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"bash -c 'echo hi'"}, "bash -c 'echo hi'"},
		{[]string{"python", "train.py", "--lr", "0.1"}, "python train.py --lr 0.1"},
		{[]string{"echo", "it's"}, `echo 'it'"'"'s'`},
		{[]string{"echo", ""}, "echo ''"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := joinCommand(tt.argv); got != tt.want {
			t.Errorf("joinCommand(%q) = %q, want %q", tt.argv, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1d", 24 * time.Hour, false},
		{"2h30m", 2*time.Hour + 30*time.Minute, false},
		{"1d2h3m4s", 26*time.Hour + 3*time.Minute + 4*time.Second, false},
		{"45s", 45 * time.Second, false},
		{"", 0, true},
		{"1w", 0, true},
		{"2m1h", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	got, err := parseTime("", now)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseTime("2024-05-01T08:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), got)

	got, err = parseTime("2024-05-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local), got)

	got, err = parseTime("2h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-2*time.Hour), got)

	_, err = parseTime("yesterday", now)
	assert.Error(t, err)
}

func TestMergeSpec(t *testing.T) {
	auth := false
	spec := jobs.JobSpec{
		Image:    "python:3.12",
		Name:     "spec-name",
		Tags:     []string{"spec"},
		Env:      map[string]string{"Z": "1", "A": "2"},
		HTTPPort: 8080,
		HTTPAuth: &auth,
	}

	got := mergeSpec(RunOptions{Name: "flag-name", Tags: []string{"flag"}, Env: []string{"A=3"}}, spec)

	assert.Equal(t, "python:3.12", got.Image)
	assert.Equal(t, "flag-name", got.Name)
	assert.Equal(t, []string{"spec", "flag"}, got.Tags)
	assert.Equal(t, []string{"A=2", "Z=1", "A=3"}, got.Env)
	assert.Equal(t, "8080", got.HTTPPort)
	assert.True(t, got.NoHTTPAuth)
}
