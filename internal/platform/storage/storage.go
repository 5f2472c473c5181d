// Package storage is the client of the platform storage service, a
// hierarchical file store addressed as storage://cluster/org/project/path.
//
// Requests go to {storage_url}/{org}/{project}/{path} with an op query
// parameter selecting the operation. *Client implements
// transfer.FileSystem and transfer.Appender, so the transfer engine can
// upload to and download from it directly.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	"github.com/neuro-inc/apolo-cli/internal/transfer"
)

// Operation names understood by the storage service.
const (
	opStatus    = "GETFILESTATUS"
	opList      = "LISTSTATUS"
	opMkdirs    = "MKDIRS"
	opOpen      = "OPEN"
	opWrite     = "WRITE"
	opDelete    = "DELETE"
	opRename    = "RENAME"
	opDiskUsage = "GETDISKUSAGE"
)

// Client talks to one cluster's storage service. Paths are service paths
// such as /org/project/data.
type Client struct {
	api     *api.Client
	baseURL string
}

var _ interface {
	transfer.FileSystem
	transfer.Appender
} = (*Client)(nil)

// New creates a storage client for baseURL, the cluster's storage_url.
func New(c *api.Client, baseURL string) *Client {
	return &Client{api: c, baseURL: baseURL}
}

// FileStatus is the wire form of one entry.
type FileStatus struct {
	Path             string `json:"path"`
	Type             string `json:"type"`
	Length           int64  `json:"length"`
	ModificationTime int64  `json:"modificationTime"`
	Permission       string `json:"permission"`
}

type fileStatusEnvelope struct {
	FileStatus FileStatus `json:"FileStatus"`
}

// DiskUsage reports the capacity of the storage volume in bytes.
type DiskUsage struct {
	Total int64 `json:"total"`
	Used  int64 `json:"used"`
	Free  int64 `json:"free"`
}

func (c *Client) url(p string) (string, error) {
	return api.JoinURL(c.baseURL, strings.TrimPrefix(p, "/"))
}

func (c *Client) request(method, p, op string) (api.Request, error) {
	u, err := c.url(p)
	if err != nil {
		return api.Request{}, err
	}
	return api.Request{Method: method, URL: u, Query: url.Values{"op": {op}}}, nil
}

// toStatus converts the wire form. Listings carry the child name in path.
func toStatus(dir string, fsw FileStatus) transfer.FileStatus {
	p := fsw.Path
	if dir != "" {
		p = strings.TrimSuffix(dir, "/") + "/" + strings.TrimPrefix(fsw.Path, "/")
	}
	st := transfer.FileStatus{
		Path:       p,
		Size:       fsw.Length,
		ModTime:    time.Unix(fsw.ModificationTime, 0),
		Permission: fsw.Permission,
	}
	switch strings.ToUpper(fsw.Type) {
	case "FILE":
		st.Type = transfer.TypeFile
	case "DIRECTORY":
		st.Type = transfer.TypeDir
	case "SYMLINK":
		st.Type = transfer.TypeSymlink
	}
	return st
}

// notExist makes a plain 404 match fs.ErrNotExist for callers that only
// know about file system errors.
func notExist(op, p string, err error) error {
	if errors.Is(err, api.ErrResourceNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return &fs.PathError{Op: op, Path: p, Err: errors.Join(fs.ErrNotExist, err)}
	}
	return err
}

// Stat returns the status of p.
func (c *Client) Stat(ctx context.Context, p string) (transfer.FileStatus, error) {
	req, err := c.request(http.MethodGet, p, opStatus)
	if err != nil {
		return transfer.FileStatus{}, err
	}
	var out fileStatusEnvelope
	if err := c.api.Do(ctx, req, &out); err != nil {
		return transfer.FileStatus{}, notExist("stat", p, err)
	}
	st := toStatus("", out.FileStatus)
	st.Path = "/" + strings.TrimPrefix(p, "/")
	return st, nil
}

// List yields the children of directory p. The listing is streamed as
// NDJSON and fully read before the first entry is yielded, so callers may
// issue further requests while iterating.
func (c *Client) List(ctx context.Context, p string) iter.Seq2[transfer.FileStatus, error] {
	return func(yield func(transfer.FileStatus, error) bool) {
		entries, err := c.list(ctx, p)
		if err != nil {
			yield(transfer.FileStatus{}, err)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (c *Client) list(ctx context.Context, p string) ([]transfer.FileStatus, error) {
	req, err := c.request(http.MethodGet, p, opList)
	if err != nil {
		return nil, err
	}
	req.Header = http.Header{"Accept": {"application/x-ndjson"}}

	resp, err := c.api.Stream(ctx, req)
	if err != nil {
		return nil, notExist("list", p, err)
	}
	defer func() { _ = resp.Body.Close() }()

	dir := "/" + strings.Trim(p, "/")
	var out []transfer.FileStatus
	for item, err := range api.DecodeNDJSON[fileStatusEnvelope](resp.Body) {
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}
		out = append(out, toStatus(dir, item.FileStatus))
	}
	return out, nil
}

// Mkdir creates p and any missing parents; an existing directory is fine.
func (c *Client) Mkdir(ctx context.Context, p string) error {
	req, err := c.request(http.MethodPut, p, opMkdirs)
	if err != nil {
		return err
	}
	return c.api.Do(ctx, req, nil)
}

// MakeDir implements the mkdir command: without parents the parent must
// exist, and without existOK p must not.
func (c *Client) MakeDir(ctx context.Context, p string, parents, existOK bool) error {
	if !existOK || !parents {
		st, err := c.Stat(ctx, p)
		switch {
		case err == nil && st.IsDir() && existOK:
			return nil
		case err == nil:
			return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
		case !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}
	if !parents {
		parent := parentPath(p)
		st, err := c.Stat(ctx, parent)
		if err != nil {
			return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrNotExist}
		}
		if !st.IsDir() {
			return &fs.PathError{Op: "mkdir", Path: p, Err: syscall.ENOTDIR}
		}
	}
	return c.Mkdir(ctx, p)
}

func parentPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i > 0 {
		return p[:i]
	}
	return "/"
}

// Open reads p from offset using a range request.
func (c *Client) Open(ctx context.Context, p string, offset int64) (io.ReadCloser, error) {
	req, err := c.request(http.MethodGet, p, opOpen)
	if err != nil {
		return nil, err
	}
	req.Header = http.Header{"Accept": {"application/octet-stream"}}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := c.api.Stream(ctx, req)
	if err != nil {
		return nil, notExist("open", p, err)
	}
	if offset > 0 && resp.StatusCode == http.StatusOK {
		// Range ignored: skip to the offset ourselves.
		if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("failed to seek %s: %w", p, err)
		}
	}
	return resp.Body, nil
}

// Create uploads r as the full content of p.
func (c *Client) Create(ctx context.Context, p string, r io.Reader, size int64) error {
	u, err := c.url(p)
	if err != nil {
		return err
	}
	return c.api.Do(ctx, api.Request{
		Method:        http.MethodPut,
		URL:           u,
		Body:          r,
		ContentLength: size,
		Header:        http.Header{"Content-Type": {"application/octet-stream"}},
	}, nil)
}

// Append writes r at offset of an existing file.
func (c *Client) Append(ctx context.Context, p string, offset int64, r io.Reader, size int64) error {
	if size == 0 {
		return nil
	}
	req, err := c.request(http.MethodPatch, p, opWrite)
	if err != nil {
		return err
	}
	req.Body = r
	req.ContentLength = size
	req.Header = http.Header{
		"Content-Type":  {"application/octet-stream"},
		"Content-Range": {fmt.Sprintf("bytes %d-%d/*", offset, offset+size-1)},
	}
	return c.api.Do(ctx, req, nil)
}

// Rm removes p. Directories require recursive.
func (c *Client) Rm(ctx context.Context, p string, recursive bool) error {
	if !recursive {
		st, err := c.Stat(ctx, p)
		if err != nil {
			return err
		}
		if st.IsDir() {
			return &fs.PathError{Op: "rm", Path: p, Err: syscall.EISDIR}
		}
	}
	req, err := c.request(http.MethodDelete, p, opDelete)
	if err != nil {
		return err
	}
	req.Query.Set("recursive", strconv.FormatBool(recursive))
	return notExist("rm", p, c.api.Do(ctx, req, nil))
}

// Mv renames src to dst within the same storage.
func (c *Client) Mv(ctx context.Context, src, dst string) error {
	req, err := c.request(http.MethodPost, src, opRename)
	if err != nil {
		return err
	}
	req.Query.Set("destination", "/"+strings.TrimPrefix(dst, "/"))
	return notExist("mv", src, c.api.Do(ctx, req, nil))
}

// DiskUsage returns the usage of the volume holding p.
func (c *Client) DiskUsage(ctx context.Context, p string) (DiskUsage, error) {
	req, err := c.request(http.MethodGet, p, opDiskUsage)
	if err != nil {
		return DiskUsage{}, err
	}
	var out DiskUsage
	if err := c.api.Do(ctx, req, &out); err != nil {
		return DiskUsage{}, err
	}
	return out, nil
}

// Glob lazily yields storage entries matching pattern.
func (c *Client) Glob(ctx context.Context, pattern string) iter.Seq2[transfer.FileStatus, error] {
	return transfer.Glob(ctx, c, "/"+strings.TrimPrefix(pattern, "/"))
}

// CopyFromLocal uploads a local file, or with recursive a directory tree,
// to the storage path dst. src is a slash-separated absolute local path.
func (c *Client) CopyFromLocal(ctx context.Context, src, dst string, recursive bool, opts transfer.Options) error {
	return transfer.Upload(ctx, transfer.LocalFS{}, src, c, dst, recursive, opts)
}

// CopyToLocal downloads the storage path src to the local path dst.
func (c *Client) CopyToLocal(ctx context.Context, src, dst string, recursive bool, opts transfer.Options) error {
	return transfer.Download(ctx, c, src, transfer.LocalFS{}, dst, recursive, opts)
}
