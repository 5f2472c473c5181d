// Package secrets manages the per-project key/value secrets that jobs
// receive as environment variables or files.
package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
)

// Secret is a secret's metadata; values are never returned.
type Secret struct {
	Key         string `json:"key"`
	Owner       string `json:"owner"`
	OrgName     string `json:"org_name,omitempty"`
	ProjectName string `json:"project_name"`
}

// Client talks to a cluster's secrets service.
type Client struct {
	api     *api.Client
	baseURL string
	scope   api.Scope
}

// New creates a secrets client for baseURL, the cluster's secrets_url.
func New(c *api.Client, baseURL string, scope api.Scope) *Client {
	return &Client{api: c, baseURL: baseURL, scope: scope}
}

// ReadValue resolves a command-line value: "@path" reads the file at path,
// anything else is used verbatim.
func ReadValue(v string) ([]byte, error) {
	if p, ok := strings.CutPrefix(v, "@"); ok {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret value: %w", err)
		}
		return data, nil
	}
	return []byte(v), nil
}

// Add creates or replaces a secret.
func (c *Client) Add(ctx context.Context, key string, value []byte) error {
	u, err := api.JoinURL(c.baseURL)
	if err != nil {
		return err
	}
	err = c.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		URL:    u,
		JSON: map[string]string{
			"key":          key,
			"value":        base64.StdEncoding.EncodeToString(value),
			"org_name":     c.scope.Org,
			"project_name": c.scope.Project,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to add secret %q: %w", key, err)
	}
	return nil
}

// List returns the secrets of the client's org and project.
func (c *Client) List(ctx context.Context) ([]Secret, error) {
	u, err := api.JoinURL(c.baseURL)
	if err != nil {
		return nil, err
	}
	var out []Secret
	if err := c.api.Do(ctx, api.Request{URL: u, Query: c.scope.Query()}, &out); err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	return out, nil
}

// Rm deletes a secret.
func (c *Client) Rm(ctx context.Context, key string) error {
	u, err := api.JoinURL(c.baseURL, key)
	if err != nil {
		return err
	}
	if err := c.api.Do(ctx, api.Request{Method: http.MethodDelete, URL: u, Query: c.scope.Query()}, nil); err != nil {
		return fmt.Errorf("failed to remove secret %q: %w", key, err)
	}
	return nil
}
