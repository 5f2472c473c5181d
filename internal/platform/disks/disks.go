// Package disks manages persistent disks that jobs mount as volumes.
package disks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
)

// Status is the provisioning state of a disk.
type Status string

// Disk states.
const (
	StatusPending Status = "Pending"
	StatusReady   Status = "Ready"
	StatusBroken  Status = "Broken"
)

// Disk is a persistent volume.
type Disk struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Storage     int64      `json:"storage"`
	UsedBytes   *int64     `json:"used_bytes,omitempty"`
	Owner       string     `json:"owner"`
	Status      Status     `json:"status"`
	ClusterName string     `json:"cluster_name"`
	OrgName     string     `json:"org_name,omitempty"`
	ProjectName string     `json:"project_name"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsage   *time.Time `json:"last_usage,omitempty"`
	// LifeSpan is the idle time in seconds after which the disk is deleted.
	LifeSpan *float64 `json:"life_span,omitempty"`
}

// TimeoutUnused returns the idle lifetime, zero when unlimited.
func (d Disk) TimeoutUnused() time.Duration {
	if d.LifeSpan == nil {
		return 0
	}
	return time.Duration(*d.LifeSpan * float64(time.Second))
}

// ParseSize parses a storage size such as "10G" or "500Mi" into bytes.
func ParseSize(s string) (int64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	n, ok := q.AsInt64()
	if !ok || n <= 0 {
		return 0, fmt.Errorf("invalid size %q: must be a positive whole number of bytes", s)
	}
	return n, nil
}

// Client talks to a cluster's disk service.
type Client struct {
	api     *api.Client
	baseURL string
	scope   api.Scope
}

// New creates a disks client for baseURL, the cluster's disks_url.
func New(c *api.Client, baseURL string, scope api.Scope) *Client {
	return &Client{api: c, baseURL: baseURL, scope: scope}
}

func (c *Client) url(elem ...string) (string, error) {
	return api.JoinURL(c.baseURL, elem...)
}

// CreateRequest describes a new disk.
type CreateRequest struct {
	Storage       int64
	TimeoutUnused time.Duration
	Name          string
}

// Create provisions a disk.
func (c *Client) Create(ctx context.Context, req CreateRequest) (Disk, error) {
	u, err := c.url()
	if err != nil {
		return Disk{}, err
	}
	body := map[string]any{
		"storage":      req.Storage,
		"org_name":     c.scope.Org,
		"project_name": c.scope.Project,
	}
	if req.Name != "" {
		body["name"] = req.Name
	}
	if req.TimeoutUnused > 0 {
		body["life_span"] = req.TimeoutUnused.Seconds()
	}
	var out Disk
	if err := c.api.Do(ctx, api.Request{Method: http.MethodPost, URL: u, JSON: body}, &out); err != nil {
		return Disk{}, fmt.Errorf("failed to create disk: %w", err)
	}
	return out, nil
}

// List returns the disks of the client's org and project.
func (c *Client) List(ctx context.Context) ([]Disk, error) {
	u, err := c.url()
	if err != nil {
		return nil, err
	}
	var out []Disk
	if err := c.api.Do(ctx, api.Request{URL: u, Query: c.scope.Query()}, &out); err != nil {
		return nil, fmt.Errorf("failed to list disks: %w", err)
	}
	return out, nil
}

// Get looks a disk up by id or name.
func (c *Client) Get(ctx context.Context, idOrName string) (Disk, error) {
	u, err := c.url(idOrName)
	if err != nil {
		return Disk{}, err
	}
	var out Disk
	if err := c.api.Do(ctx, api.Request{URL: u, Query: c.scope.Query()}, &out); err != nil {
		return Disk{}, fmt.Errorf("failed to get disk %q: %w", idOrName, err)
	}
	return out, nil
}

// Rm deletes a disk by id or name.
func (c *Client) Rm(ctx context.Context, idOrName string) error {
	u, err := c.url(idOrName)
	if err != nil {
		return err
	}
	if err := c.api.Do(ctx, api.Request{Method: http.MethodDelete, URL: u, Query: c.scope.Query()}, nil); err != nil {
		return fmt.Errorf("failed to remove disk %q: %w", idOrName, err)
	}
	return nil
}
