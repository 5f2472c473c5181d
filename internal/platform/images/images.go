// Package images lists the container images pushed to a cluster's registry.
package images

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
)

// Image is a repository in the project's namespace.
type Image struct {
	// Repository is the full path within the registry, e.g. acme/alpha/train.
	Repository string
	// Name is the path relative to the project.
	Name string
}

// URI renders the image as an image: URI relative to the project.
func (i Image) URI() string {
	return "image:" + i.Name
}

// Client reads a cluster registry with the user's platform token.
type Client struct {
	api       *api.Client
	registry  name.Registry
	user      string
	scope     api.Scope
	transport http.RoundTripper
}

// New creates a client for registryURL, the cluster's registry_url.
func New(c *api.Client, registryURL, user string, scope api.Scope) (*Client, error) {
	u, err := url.Parse(registryURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid registry url %q", registryURL)
	}
	var opts []name.Option
	if u.Scheme == "http" {
		opts = append(opts, name.Insecure)
	}
	reg, err := name.NewRegistry(u.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid registry url %q: %w", registryURL, err)
	}
	return &Client{api: c, registry: reg, user: user, scope: scope, transport: remote.DefaultTransport}, nil
}

// Host returns the registry host, used to build pullable references.
func (c *Client) Host() string {
	return c.registry.RegistryStr()
}

func (c *Client) prefix() string {
	if c.scope.Org != "" {
		return c.scope.Org + "/" + c.scope.Project + "/"
	}
	return c.scope.Project + "/"
}

func (c *Client) options(ctx context.Context) ([]remote.Option, error) {
	token, err := c.api.Token()
	if err != nil {
		return nil, err
	}
	auth := authn.FromConfig(authn.AuthConfig{Username: c.user, Password: token})
	return []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuth(auth),
		remote.WithTransport(c.transport),
	}, nil
}

// Ls lists the repositories of the current project.
func (c *Client) Ls(ctx context.Context) ([]Image, error) {
	opts, err := c.options(ctx)
	if err != nil {
		return nil, err
	}
	repos, err := remote.Catalog(ctx, c.registry, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	prefix := c.prefix()
	var out []Image
	for _, r := range repos {
		if rel, ok := strings.CutPrefix(r, prefix); ok && rel != "" {
			out = append(out, Image{Repository: r, Name: rel})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Tags lists the tags of an image given by project-relative name.
func (c *Client) Tags(ctx context.Context, image string) ([]string, error) {
	image = strings.TrimPrefix(image, "image:")
	if i := strings.LastIndex(image, ":"); i > strings.LastIndex(image, "/") {
		image = image[:i]
	}
	repo := c.registry.Repo(strings.TrimSuffix(c.prefix(), "/"), image)
	opts, err := c.options(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := remote.List(repo, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags of %s: %w", image, err)
	}
	sort.Strings(tags)
	return tags, nil
}
