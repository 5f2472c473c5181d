// Package uri parses and normalizes the resource URIs accepted on the command
// line: storage:, blob:, file:, image:, disk: and secret:.
//
// Platform URIs are normalized to the absolute form
// scheme://cluster/org/project/path (without the org segment when no org is
// selected). Relative forms such as storage:data or blob:bucket/key resolve
// against the current cluster, org and project. Local paths become file://
// URIs with an absolute path.
package uri

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Supported schemes.
const (
	Storage = "storage"
	Blob    = "blob"
	File    = "file"
	Image   = "image"
	Disk    = "disk"
	Secret  = "secret"
)

// ErrUnsupportedScheme is returned when a URI's scheme is not allowed in its position.
var ErrUnsupportedScheme = errors.New("unsupported URI scheme")

// Context is what relative URIs resolve against.
type Context struct {
	Cluster string
	Org     string
	Project string
	// WorkDir is the base for relative local paths; the process cwd when empty.
	WorkDir string
}

// Root returns scheme://cluster/org/project for the context.
func (c Context) Root(scheme string) *url.URL {
	p := "/" + c.Project
	if c.Org != "" {
		p = "/" + c.Org + p
	}
	return &url.URL{Scheme: scheme, Host: c.Cluster, Path: p}
}

// Parse normalizes s. A string without a scheme is treated as defaultScheme,
// so storage commands accept bare remote paths and cp treats them as local.
// allowed restricts the accepted schemes; empty allows all.
func Parse(s string, ctx Context, defaultScheme string, allowed ...string) (*url.URL, error) {
	scheme, rest, hasScheme := splitScheme(s)
	if !hasScheme {
		scheme, rest = defaultScheme, s
	}
	if len(allowed) > 0 && !contains(allowed, scheme) {
		return nil, fmt.Errorf("%w %q in %q, expected one of %v", ErrUnsupportedScheme, scheme, s, allowed)
	}

	switch scheme {
	case File:
		return parseFile(rest, ctx, hasScheme)
	case Storage, Blob, Image, Disk, Secret:
		return parsePlatform(scheme, rest, ctx)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, scheme)
	}
}

func splitScheme(s string) (scheme, rest string, ok bool) {
	i := strings.Index(s, ":")
	if i <= 1 {
		// A single letter before ':' is a Windows drive, not a scheme.
		return "", s, false
	}
	scheme = s[:i]
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return "", s, false
		}
	}
	return strings.ToLower(scheme), s[i+1:], true
}

func parseFile(rest string, ctx Context, hasScheme bool) (*url.URL, error) {
	p := rest
	if hasScheme && strings.HasPrefix(rest, "//") {
		u, err := url.Parse("file:" + rest)
		if err != nil {
			return nil, fmt.Errorf("invalid file URI %q: %w", rest, err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return nil, fmt.Errorf("file URI %q must not name a host", rest)
		}
		p = filepath.FromSlash(u.Path)
	}
	if strings.HasPrefix(p, "~") {
		return nil, fmt.Errorf("cannot expand %q; use an absolute path", p)
	}
	if !filepath.IsAbs(p) {
		base := ctx.WorkDir
		if base == "" {
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %q: %w", p, err)
			}
			p = abs
		} else {
			p = filepath.Join(base, p)
		}
	}
	return &url.URL{Scheme: File, Path: filepath.ToSlash(filepath.Clean(p))}, nil
}

func parsePlatform(scheme, rest string, ctx Context) (*url.URL, error) {
	if strings.HasPrefix(rest, "//") {
		u, err := url.Parse(scheme + ":" + rest)
		if err != nil {
			return nil, fmt.Errorf("invalid %s URI %q: %w", scheme, rest, err)
		}
		if u.Host == "" {
			u.Host = ctx.Cluster
		}
		u.Path = cleanPath(u.Path)
		u.RawQuery, u.Fragment = "", ""
		return u, nil
	}

	if ctx.Cluster == "" {
		return nil, fmt.Errorf("cannot resolve %s:%s without a selected cluster", scheme, rest)
	}

	// storage:/project/path is absolute within the cluster and org.
	if strings.HasPrefix(rest, "/") {
		base := "/"
		if ctx.Org != "" {
			base = "/" + ctx.Org + "/"
		}
		return &url.URL{Scheme: scheme, Host: ctx.Cluster, Path: cleanPath(base + strings.TrimPrefix(rest, "/"))}, nil
	}

	if ctx.Project == "" {
		return nil, fmt.Errorf("cannot resolve %s:%s without a selected project", scheme, rest)
	}
	root := ctx.Root(scheme)
	root.Path = cleanPath(path.Join(root.Path, rest))
	return root, nil
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ServicePath returns the path of u below its cluster, which is what the
// storage and blob services address, e.g. "org/project/data".
func ServicePath(u *url.URL) string {
	return strings.TrimPrefix(u.Path, "/")
}

// LocalPath returns the filesystem path of a file:// URI.
func LocalPath(u *url.URL) string {
	return filepath.FromSlash(u.Path)
}

// Base returns the last path element of u.
func Base(u *url.URL) string {
	return path.Base(u.Path)
}

// String renders u in its canonical form: scheme://host/path.
func String(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

// Short renders u relative to ctx when it lies within the current project.
func Short(u *url.URL, ctx Context) string {
	root := ctx.Root(u.Scheme)
	if u.Host == root.Host && (u.Path == root.Path || strings.HasPrefix(u.Path, root.Path+"/")) {
		return u.Scheme + ":" + strings.TrimPrefix(strings.TrimPrefix(u.Path, root.Path), "/")
	}
	return String(u)
}
