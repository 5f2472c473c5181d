package transfer

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"path"
	"strings"
)

// HasMagic reports whether p contains glob metacharacters.
func HasMagic(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// Glob lazily yields the entries of fsys matching pattern, a slash-separated
// absolute path. '*', '?' and '[...]' match within one path segment; a '**'
// segment matches zero or more segments. Listing errors are yielded and end
// the sequence; missing directories simply produce no matches.
func Glob(ctx context.Context, fsys FileSystem, pattern string) iter.Seq2[FileStatus, error] {
	return func(yield func(FileStatus, error) bool) {
		base, segs := splitPattern(pattern)
		if _, err := path.Match(strings.Join(segs, "/"), ""); err != nil {
			yield(FileStatus{}, err)
			return
		}
		g := &globber{ctx: ctx, fsys: fsys, yield: yield}
		g.match(base, segs)
	}
}

// splitPattern separates the literal leading directory from the segments
// that need matching and collapses repeated '**'.
func splitPattern(pattern string) (string, []string) {
	lead := ""
	if strings.HasPrefix(pattern, "/") {
		lead = "/"
	}
	parts := strings.Split(strings.Trim(pattern, "/"), "/")

	i := 0
	for i < len(parts) && !HasMagic(parts[i]) {
		i++
	}
	base := lead + path.Join(parts[:i]...)
	if i == 0 {
		base = lead
	}

	var segs []string
	for _, s := range parts[i:] {
		if s == "**" && len(segs) > 0 && segs[len(segs)-1] == "**" {
			continue
		}
		segs = append(segs, s)
	}
	return base, segs
}

type globber struct {
	ctx   context.Context
	fsys  FileSystem
	yield func(FileStatus, error) bool
	done  bool
}

func (g *globber) emit(st FileStatus, err error) bool {
	if g.done {
		return false
	}
	if !g.yield(st, err) || err != nil {
		g.done = true
		return false
	}
	return true
}

// match returns false once iteration must stop.
func (g *globber) match(dir string, segs []string) bool {
	if err := g.ctx.Err(); err != nil {
		return g.emit(FileStatus{}, err)
	}
	if len(segs) == 0 {
		st, err := g.fsys.Stat(g.ctx, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return true
			}
			return g.emit(FileStatus{}, err)
		}
		return g.emit(st, nil)
	}

	seg, rest := segs[0], segs[1:]
	if seg == "**" {
		if len(rest) == 0 {
			return g.everything(dir)
		}
		if !g.match(dir, rest) {
			return false
		}
		return g.children(dir, func(child FileStatus) bool {
			if !child.IsDir() {
				return true
			}
			return g.match(child.Path, segs)
		})
	}

	return g.children(dir, func(child FileStatus) bool {
		ok, _ := path.Match(seg, child.Name())
		if !ok {
			return true
		}
		if len(rest) == 0 {
			return g.emit(child, nil)
		}
		if !child.IsDir() {
			return true
		}
		return g.match(child.Path, rest)
	})
}

// everything yields dir and all entries below it.
func (g *globber) everything(dir string) bool {
	st, err := g.fsys.Stat(g.ctx, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true
		}
		return g.emit(FileStatus{}, err)
	}
	if !g.emit(st, nil) {
		return false
	}
	if !st.IsDir() {
		return true
	}
	return g.children(dir, func(child FileStatus) bool {
		if child.IsDir() {
			return g.everything(child.Path)
		}
		return g.emit(child, nil)
	})
}

func (g *globber) children(dir string, fn func(FileStatus) bool) bool {
	for child, err := range g.fsys.List(g.ctx, dir) {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
				return true
			}
			return g.emit(FileStatus{}, err)
		}
		if !fn(child) {
			return false
		}
	}
	return true
}
