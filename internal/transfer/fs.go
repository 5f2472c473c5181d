package transfer

import (
	"context"
	"errors"
	"io"
	"iter"
	"path"
	"syscall"
	"time"
)

// FileType is the kind of entry a FileStatus describes.
type FileType int

const (
	TypeUnknown FileType = iota
	TypeFile
	TypeDir
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileStatus describes one entry of a FileSystem.
type FileStatus struct {
	// Path is slash-separated and absolute within its FileSystem.
	Path       string
	Size       int64
	ModTime    time.Time
	Type       FileType
	Permission string
}

// Name returns the last element of Path.
func (s FileStatus) Name() string {
	return path.Base(s.Path)
}

// IsDir reports whether the entry is a directory.
func (s FileStatus) IsDir() bool {
	return s.Type == TypeDir
}

// IsFile reports whether the entry is a regular file.
func (s FileStatus) IsFile() bool {
	return s.Type == TypeFile
}

// FileSystem is one side of a transfer. Missing paths are reported with
// errors that match fs.ErrNotExist.
type FileSystem interface {
	Stat(ctx context.Context, p string) (FileStatus, error)
	// List yields the direct children of a directory.
	List(ctx context.Context, p string) iter.Seq2[FileStatus, error]
	// Mkdir creates a directory and its parents. An existing directory is not an error.
	Mkdir(ctx context.Context, p string) error
	// Open reads a file starting at offset.
	Open(ctx context.Context, p string, offset int64) (io.ReadCloser, error)
	// Create writes a file from r, replacing any previous content.
	Create(ctx context.Context, p string, r io.Reader, size int64) error
}

// Appender is implemented by file systems that can extend a file in place.
// Without it, chunked writes and resumed transfers fall back to a full
// Create.
type Appender interface {
	// Append writes r at offset, discarding anything after offset first.
	Append(ctx context.Context, p string, offset int64, r io.Reader, size int64) error
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
