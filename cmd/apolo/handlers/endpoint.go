package handlers

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"net/url"
	"path"
	"strings"

	"github.com/neuro-inc/apolo-cli/internal/platform"
	"github.com/neuro-inc/apolo-cli/internal/platform/buckets"
	"github.com/neuro-inc/apolo-cli/internal/platform/uri"
	"github.com/neuro-inc/apolo-cli/internal/transfer"
)

// blobStore is the object access used by the blob commands.
type blobStore interface {
	transfer.FileSystem
	ListBlobs(ctx context.Context, prefix string, recursive bool) ([]buckets.BlobListing, []buckets.PrefixListing, error)
	Rm(ctx context.Context, p string, recursive bool) error
}

// newBlobStore connects to a bucket; tests replace it with an in-memory store.
var newBlobStore = func(ctx context.Context, creds buckets.Credentials) (blobStore, error) {
	return buckets.NewBlobFS(ctx, creds)
}

// endpoint is one side of a copy: a URI and the file system that serves it.
type endpoint struct {
	u    *url.URL
	fsys transfer.FileSystem
	// path addresses u within fsys.
	path string
}

func (e endpoint) local() bool { return e.u.Scheme == uri.File }

func (e endpoint) String() string {
	if e.local() {
		return uri.LocalPath(e.u)
	}
	return uri.String(e.u)
}

// at returns the endpoint for another path of the same file system.
func (e endpoint) at(p string) endpoint {
	prefix := e.u.Path
	if e.path != "/" {
		prefix = strings.TrimSuffix(e.u.Path, e.path)
	}
	u := *e.u
	u.Path = path.Join("/", prefix, p)
	return endpoint{u: &u, fsys: e.fsys, path: p}
}

func (e endpoint) join(name string) endpoint {
	return e.at(path.Join(e.path, name))
}

func (e endpoint) glob(ctx context.Context) iter.Seq2[endpoint, error] {
	return func(yield func(endpoint, error) bool) {
		for st, err := range transfer.Glob(ctx, e.fsys, e.path) {
			if err != nil {
				yield(endpoint{}, err)
				return
			}
			if !yield(e.at(st.Path), nil) {
				return
			}
		}
	}
}

// resolver opens file systems for URIs and caches bucket connections.
type resolver struct {
	client  *platform.Client
	buckets map[string]blobStore
}

func newResolver(client *platform.Client) *resolver {
	return &resolver{client: client, buckets: map[string]blobStore{}}
}

func (r *resolver) checkCluster(u *url.URL) error {
	if u.Host != r.client.Config.ClusterName {
		return fmt.Errorf("%s is on cluster %q, not the selected %q; pass --cluster %s",
			uri.String(u), u.Host, r.client.Config.ClusterName, u.Host)
	}
	return nil
}

func (r *resolver) endpoint(ctx context.Context, u *url.URL) (endpoint, error) {
	switch u.Scheme {
	case uri.File:
		return endpoint{u: u, fsys: transfer.LocalFS{}, path: u.Path}, nil
	case uri.Storage:
		if err := r.checkCluster(u); err != nil {
			return endpoint{}, err
		}
		st, err := r.client.Storage()
		if err != nil {
			return endpoint{}, err
		}
		return endpoint{u: u, fsys: st, path: u.Path}, nil
	case uri.Blob:
		bucket, key, err := r.blobPath(u)
		if err != nil {
			return endpoint{}, err
		}
		store, err := r.bucket(ctx, bucket)
		if err != nil {
			return endpoint{}, err
		}
		return endpoint{u: u, fsys: store, path: "/" + key}, nil
	}
	return endpoint{}, fmt.Errorf("%w %q", uri.ErrUnsupportedScheme, u.Scheme)
}

// blobPath splits blob://cluster/[org/]project/bucket/key. The org segment
// is expected when an org is selected.
func (r *resolver) blobPath(u *url.URL) (bucket, key string, err error) {
	if err := r.checkCluster(u); err != nil {
		return "", "", err
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	skip := 1
	if r.client.Config.OrgName != "" {
		skip = 2
	}
	if len(segs) <= skip || segs[skip] == "" {
		return "", "", fmt.Errorf("%s does not name a bucket", uri.String(u))
	}
	return segs[skip], strings.Join(segs[skip+1:], "/"), nil
}

func (r *resolver) bucket(ctx context.Context, name string) (blobStore, error) {
	if store, ok := r.buckets[name]; ok {
		return store, nil
	}
	bc, err := r.client.Buckets()
	if err != nil {
		return nil, err
	}
	creds, err := bc.TemporaryCredentials(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials for bucket %s: %w", name, err)
	}
	store, err := newBlobStore(ctx, creds)
	if err != nil {
		return nil, err
	}
	r.buckets[name] = store
	return store, nil
}

// expand resolves a source argument, expanding glob patterns when enabled.
// A pattern matching nothing is an error.
func (r *resolver) expand(ctx context.Context, u *url.URL, useGlob bool) ([]endpoint, error) {
	e, err := r.endpoint(ctx, u)
	if err != nil {
		return nil, err
	}
	if !useGlob || !transfer.HasMagic(e.path) {
		return []endpoint{e}, nil
	}
	var out []endpoint
	for m, err := range e.glob(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, &fs.PathError{Op: "glob", Path: e.String(), Err: fs.ErrNotExist}
	}
	return out, nil
}
