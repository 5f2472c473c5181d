package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
)

// LocalFS is the local disk. Paths are absolute, in slash form.
type LocalFS struct{}

var _ interface {
	FileSystem
	Appender
} = LocalFS{}

func (LocalFS) native(p string) string {
	return filepath.FromSlash(p)
}

func localStatus(p string, info fs.FileInfo) FileStatus {
	st := FileStatus{
		Path:       p,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		Permission: info.Mode().Perm().String(),
	}
	switch {
	case info.Mode().IsRegular():
		st.Type = TypeFile
	case info.IsDir():
		st.Type = TypeDir
		st.Size = 0
	case info.Mode()&fs.ModeSymlink != 0:
		st.Type = TypeSymlink
	}
	return st
}

// Stat follows symlinks.
func (l LocalFS) Stat(_ context.Context, p string) (FileStatus, error) {
	info, err := os.Stat(l.native(p))
	if err != nil {
		return FileStatus{}, err
	}
	return localStatus(p, info), nil
}

// List yields entries sorted by name, as os.ReadDir returns them. Symlinks
// are followed. A dangling link, or a link to p or one of its ancestors, is
// reported as a symlink so walkers skip it instead of looping.
func (l LocalFS) List(_ context.Context, p string) iter.Seq2[FileStatus, error] {
	return func(yield func(FileStatus, error) bool) {
		entries, err := os.ReadDir(l.native(p))
		if err != nil {
			yield(FileStatus{}, err)
			return
		}
		for _, e := range entries {
			child := joinPath(p, e.Name())
			info, err := os.Stat(l.native(child))
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					if !yield(FileStatus{}, err) {
						return
					}
					continue
				}
				if info, err = e.Info(); err != nil {
					continue
				}
			}
			st := localStatus(child, info)
			if e.Type()&fs.ModeSymlink != 0 && info.IsDir() && l.isAncestor(p, info) {
				st.Type = TypeSymlink
			}
			if !yield(st, nil) {
				return
			}
		}
	}
}

// isAncestor reports whether dir is p or a directory above it. The check
// runs on the path as walked, so loops through several links are caught
// once the walk reaches a directory it already entered.
func (l LocalFS) isAncestor(p string, dir fs.FileInfo) bool {
	for a := p; ; {
		if info, err := os.Stat(l.native(a)); err == nil && os.SameFile(info, dir) {
			return true
		}
		parent := path.Dir(a)
		if parent == a {
			return false
		}
		a = parent
	}
}

func (l LocalFS) Mkdir(_ context.Context, p string) error {
	return os.MkdirAll(l.native(p), 0o755)
}

func (l LocalFS) Open(_ context.Context, p string, offset int64) (io.ReadCloser, error) {
	f, err := os.Open(l.native(p))
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to seek %s: %w", p, err)
		}
	}
	return f, nil
}

func (l LocalFS) Create(_ context.Context, p string, r io.Reader, _ int64) error {
	f, err := os.OpenFile(l.native(p), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return f.Close()
}

func (l LocalFS) Append(_ context.Context, p string, offset int64, r io.Reader, _ int64) error {
	f, err := os.OpenFile(l.native(p), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := f.Truncate(offset); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to truncate %s: %w", p, err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to seek %s: %w", p, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return f.Close()
}
