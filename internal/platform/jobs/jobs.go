// Package jobs is the client of the platform jobs API and the cluster
// monitoring service that streams job logs and telemetry.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	"github.com/neuro-inc/apolo-cli/internal/util/retry"
)

// Client manages jobs of one cluster.
type Client struct {
	api           *api.Client
	baseURL       string
	monitoringURL string
	cluster       string
	scope         api.Scope

	pollOptions []retry.Option
	dialer      *websocket.Dialer
}

// New creates a jobs client. baseURL is the platform API root and
// monitoringURL the cluster's monitoring_url.
func New(c *api.Client, baseURL, monitoringURL, cluster string, scope api.Scope) *Client {
	return &Client{
		api:           c,
		baseURL:       baseURL,
		monitoringURL: monitoringURL,
		cluster:       cluster,
		scope:         scope,
		pollOptions: []retry.Option{
			retry.WithInitialDelay(200 * time.Millisecond),
			retry.WithMaxDelay(5 * time.Second),
			retry.WithMultiplier(1.5),
		},
		dialer: websocket.DefaultDialer,
	}
}

// WithPolling sets the delays between WaitStart polls.
func (c *Client) WithPolling(initial, max time.Duration) *Client {
	c.pollOptions = []retry.Option{
		retry.WithInitialDelay(initial),
		retry.WithMaxDelay(max),
		retry.WithMultiplier(1.5),
	}
	return c
}

// ListFilter narrows a job listing. Zero fields do not filter.
type ListFilter struct {
	Statuses []JobStatus
	Name     string
	Owners   []string
	Tags     []string
	Since    time.Time
	Until    time.Time
	Reverse  bool
	Limit    int
	// AllProjects lists across every project of the org; AllOrgs across orgs too.
	AllProjects bool
	AllOrgs     bool
}

func (f ListFilter) query(cluster string, scope api.Scope) url.Values {
	q := url.Values{}
	for _, s := range f.Statuses {
		q.Add("status", string(s))
	}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	for _, o := range f.Owners {
		q.Add("owner", o)
	}
	for _, t := range f.Tags {
		q.Add("tag", t)
	}
	if !f.Since.IsZero() {
		q.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if !f.Until.IsZero() {
		q.Set("until", f.Until.UTC().Format(time.RFC3339))
	}
	if f.Reverse {
		q.Set("reverse", "1")
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	q.Set("cluster_name", cluster)
	if !f.AllOrgs && scope.Org != "" {
		q.Set("org_name", scope.Org)
	}
	if !f.AllOrgs && !f.AllProjects && scope.Project != "" {
		q.Set("project_name", scope.Project)
	}
	return q
}

func (c *Client) jobURL(elem ...string) (string, error) {
	return api.JoinURL(c.baseURL, append([]string{"jobs"}, elem...)...)
}

// Start submits a job. Cluster, org and project default to the client's.
func (c *Client) Start(ctx context.Context, req StartRequest) (JobDescription, error) {
	if req.ClusterName == "" {
		req.ClusterName = c.cluster
	}
	if req.OrgName == "" {
		req.OrgName = c.scope.Org
	}
	if req.ProjectName == "" {
		req.ProjectName = c.scope.Project
	}
	u, err := c.jobURL()
	if err != nil {
		return JobDescription{}, err
	}
	var out JobDescription
	if err := c.api.Do(ctx, api.Request{Method: http.MethodPost, URL: u, JSON: req}, &out); err != nil {
		return JobDescription{}, fmt.Errorf("failed to start job: %w", err)
	}
	return out, nil
}

// List yields jobs matching filter in server order.
func (c *Client) List(ctx context.Context, filter ListFilter) iter.Seq2[JobDescription, error] {
	return func(yield func(JobDescription, error) bool) {
		u, err := c.jobURL()
		if err != nil {
			yield(JobDescription{}, err)
			return
		}
		resp, err := c.api.Stream(ctx, api.Request{
			URL:    u,
			Query:  filter.query(c.cluster, c.scope),
			Header: http.Header{"Accept": {"application/x-ndjson"}},
		})
		if err != nil {
			yield(JobDescription{}, fmt.Errorf("failed to list jobs: %w", err))
			return
		}
		defer func() { _ = resp.Body.Close() }()

		for job, err := range api.DecodeNDJSON[JobDescription](resp.Body) {
			if !yield(job, err) || err != nil {
				return
			}
		}
	}
}

// Status returns the current description of a job.
func (c *Client) Status(ctx context.Context, id string) (JobDescription, error) {
	u, err := c.jobURL(id)
	if err != nil {
		return JobDescription{}, err
	}
	var out JobDescription
	if err := c.api.Do(ctx, api.Request{URL: u}, &out); err != nil {
		return JobDescription{}, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return out, nil
}

// Kill stops a job.
func (c *Client) Kill(ctx context.Context, id string) error {
	u, err := c.jobURL(id)
	if err != nil {
		return err
	}
	if err := c.api.Do(ctx, api.Request{Method: http.MethodDelete, URL: u}, nil); err != nil {
		return fmt.Errorf("failed to kill job %s: %w", id, err)
	}
	return nil
}

// BumpLifeSpan extends a job's maximum run time.
func (c *Client) BumpLifeSpan(ctx context.Context, id string, extra time.Duration) error {
	minutes := int(extra.Round(time.Minute) / time.Minute)
	if minutes <= 0 {
		return fmt.Errorf("life span increase must be at least one minute, got %s", extra)
	}
	u, err := c.jobURL(id, "max_run_time_minutes")
	if err != nil {
		return err
	}
	err = c.api.Do(ctx, api.Request{
		Method: http.MethodPut,
		URL:    u,
		JSON:   map[string]int{"additional_max_run_time_minutes": minutes},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to bump life span of job %s: %w", id, err)
	}
	return nil
}

// WaitStart polls until the job leaves the pending states and returns its
// latest description. onStatus, when set, sees every status change.
func (c *Client) WaitStart(ctx context.Context, id string, onStatus func(JobDescription)) (JobDescription, error) {
	return c.waitFor(ctx, id, func(j JobDescription) bool { return !j.Status.IsPending() }, onStatus)
}

// WaitFinish polls until the job reaches a final status.
func (c *Client) WaitFinish(ctx context.Context, id string) (JobDescription, error) {
	return c.waitFor(ctx, id, func(j JobDescription) bool { return j.Status.IsFinished() }, nil)
}

// waitFor polls the job status until done holds. An unavailable server is
// polled again; any other error ends the wait.
func (c *Client) waitFor(ctx context.Context, id string, done func(JobDescription) bool, onStatus func(JobDescription)) (JobDescription, error) {
	var last JobDescription
	err := retry.Poll(ctx, func(ctx context.Context) (bool, error) {
		job, err := c.Status(ctx, id)
		if err != nil {
			if api.Temporary(err) {
				return false, err
			}
			return false, retry.Fatal(err)
		}
		changed := job.Status != last.Status || job.History.Reason != last.History.Reason
		last = job
		if changed && onStatus != nil {
			onStatus(job)
		}
		return done(job), nil
	}, c.pollOptions...)
	return last, err
}

// LogOptions selects the part of a log stream to read.
type LogOptions struct {
	Since      time.Time
	Timestamps bool
}

// Logs streams a job's output. The caller closes the reader.
func (c *Client) Logs(ctx context.Context, id string, opts LogOptions) (io.ReadCloser, error) {
	u, err := api.JoinURL(c.monitoringURL, id, "log")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if opts.Timestamps {
		q.Set("timestamps", "true")
	}
	resp, err := c.api.Stream(ctx, api.Request{
		URL:    u,
		Query:  q,
		Header: http.Header{"Accept": {"text/plain"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read logs of job %s: %w", id, err)
	}
	return resp.Body, nil
}

// Top yields telemetry samples of a running job until ctx ends or the
// server closes the stream.
func (c *Client) Top(ctx context.Context, id string) iter.Seq2[JobTelemetry, error] {
	return func(yield func(JobTelemetry, error) bool) {
		u, err := api.JoinURL(c.monitoringURL, id, "top")
		if err != nil {
			yield(JobTelemetry{}, err)
			return
		}
		u = toWebsocketURL(u)
		header, err := c.api.Header()
		if err != nil {
			yield(JobTelemetry{}, err)
			return
		}

		conn, resp, err := c.dialer.DialContext(ctx, u, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			yield(JobTelemetry{}, fmt.Errorf("failed to connect to telemetry of job %s: %w", id, err))
			return
		}
		defer func() { _ = conn.Close() }()

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					yield(JobTelemetry{}, ctx.Err())
					return
				}
				var ce *websocket.CloseError
				if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
					return
				}
				yield(JobTelemetry{}, fmt.Errorf("telemetry stream of job %s: %w", id, err))
				return
			}
			var t JobTelemetry
			if err := json.Unmarshal(data, &t); err != nil {
				yield(JobTelemetry{}, fmt.Errorf("failed to decode telemetry: %w", err))
				return
			}
			if !yield(t, nil) {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}

func toWebsocketURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
