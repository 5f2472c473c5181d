// Package buckets manages platform buckets and reads and writes their
// objects.
//
// The buckets service owns bucket metadata and issues credentials; the
// objects themselves live in an S3-compatible store reached with those
// credentials through BlobFS.
package buckets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
)

// Provider identifies the object store backing a bucket.
type Provider string

// Known providers.
const (
	ProviderAWS       Provider = "aws"
	ProviderMinio     Provider = "minio"
	ProviderAzure     Provider = "azure"
	ProviderGCP       Provider = "gcp"
	ProviderOpenStack Provider = "open_stack"
)

// Bucket is a bucket as reported by the buckets service.
type Bucket struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name,omitempty"`
	Provider    Provider  `json:"provider"`
	CreatedAt   time.Time `json:"created_at"`
	Imported    bool      `json:"imported"`
	Public      bool      `json:"public"`
	OrgName     string    `json:"org_name,omitempty"`
	ProjectName string    `json:"project_name"`
}

// DisplayName is the name when set, otherwise the id.
func (b Bucket) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.ID
}

// Credentials grant access to one bucket in its provider's terms. For S3
// compatible providers the map carries bucket_name, endpoint_url,
// region_name, access_key_id, secret_access_key and optionally session_token.
type Credentials struct {
	BucketID    string            `json:"bucket_id"`
	Provider    Provider          `json:"provider"`
	ReadOnly    bool              `json:"read_only,omitempty"`
	Credentials map[string]string `json:"credentials"`
}

// PersistentCredentials are long-lived credentials for a set of buckets.
type PersistentCredentials struct {
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	Owner       string        `json:"owner"`
	ReadOnly    bool          `json:"read_only"`
	Credentials []Credentials `json:"credentials"`
}

// Client talks to a cluster's buckets service.
type Client struct {
	api     *api.Client
	baseURL string
	scope   api.Scope
}

// New creates a buckets client for baseURL, the cluster's buckets_url.
func New(c *api.Client, baseURL string, scope api.Scope) *Client {
	return &Client{api: c, baseURL: baseURL, scope: scope}
}

func (c *Client) do(ctx context.Context, method string, out any, body any, elem ...string) error {
	u, err := api.JoinURL(c.baseURL, elem...)
	if err != nil {
		return err
	}
	return c.api.Do(ctx, api.Request{Method: method, URL: u, Query: c.scope.Query(), JSON: body}, out)
}

// Create creates a bucket. An empty name lets the service assign an id only.
func (c *Client) Create(ctx context.Context, name string) (Bucket, error) {
	body := map[string]any{"org_name": c.scope.Org, "project_name": c.scope.Project}
	if name != "" {
		body["name"] = name
	}
	var out Bucket
	if err := c.do(ctx, http.MethodPost, &out, body, "buckets"); err != nil {
		return Bucket{}, fmt.Errorf("failed to create bucket %q: %w", name, err)
	}
	return out, nil
}

// List returns the buckets visible in the client's org and project.
func (c *Client) List(ctx context.Context) ([]Bucket, error) {
	u, err := api.JoinURL(c.baseURL, "buckets")
	if err != nil {
		return nil, err
	}
	resp, err := c.api.Stream(ctx, api.Request{
		URL:    u,
		Query:  c.scope.Query(),
		Header: http.Header{"Accept": {"application/x-ndjson"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out []Bucket
	for b, err := range api.DecodeNDJSON[Bucket](resp.Body) {
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Get looks a bucket up by id or name.
func (c *Client) Get(ctx context.Context, idOrName string) (Bucket, error) {
	var out Bucket
	if err := c.do(ctx, http.MethodGet, &out, nil, "buckets", idOrName); err != nil {
		return Bucket{}, fmt.Errorf("failed to get bucket %q: %w", idOrName, err)
	}
	return out, nil
}

// Rm deletes a bucket by id or name.
func (c *Client) Rm(ctx context.Context, idOrName string) error {
	if err := c.do(ctx, http.MethodDelete, nil, nil, "buckets", idOrName); err != nil {
		return fmt.Errorf("failed to remove bucket %q: %w", idOrName, err)
	}
	return nil
}

// TemporaryCredentials issues short-lived credentials for one bucket.
func (c *Client) TemporaryCredentials(ctx context.Context, idOrName string) (Credentials, error) {
	var out Credentials
	if err := c.do(ctx, http.MethodPost, &out, nil, "buckets", idOrName, "make_tmp_credentials"); err != nil {
		return Credentials{}, fmt.Errorf("failed to get credentials for bucket %q: %w", idOrName, err)
	}
	return out, nil
}

// CreatePersistentCredentials issues long-lived credentials for the buckets.
func (c *Client) CreatePersistentCredentials(ctx context.Context, name string, bucketIDs []string, readOnly bool) (PersistentCredentials, error) {
	body := map[string]any{"bucket_ids": bucketIDs, "read_only": readOnly}
	if name != "" {
		body["name"] = name
	}
	var out PersistentCredentials
	if err := c.do(ctx, http.MethodPost, &out, body, "buckets", "persistent_credentials"); err != nil {
		return PersistentCredentials{}, fmt.Errorf("failed to create credentials: %w", err)
	}
	return out, nil
}

// ListPersistentCredentials returns the caller's persistent credentials.
func (c *Client) ListPersistentCredentials(ctx context.Context) ([]PersistentCredentials, error) {
	var out []PersistentCredentials
	if err := c.do(ctx, http.MethodGet, &out, nil, "buckets", "persistent_credentials"); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return out, nil
}

// RmPersistentCredentials revokes credentials by id or name.
func (c *Client) RmPersistentCredentials(ctx context.Context, idOrName string) error {
	if err := c.do(ctx, http.MethodDelete, nil, nil, "buckets", "persistent_credentials", idOrName); err != nil {
		return fmt.Errorf("failed to remove credentials %q: %w", idOrName, err)
	}
	return nil
}
