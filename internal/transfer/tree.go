package transfer

import (
	"context"
	"errors"
	"io/fs"
)

// Upload copies src, a file or with recursive a directory tree, to dst.
// A directory source without recursive fails like UploadFile does.
func Upload(ctx context.Context, local FileSystem, src string, remote FileSystem, dst string, recursive bool, opts Options) error {
	if recursive && isDir(ctx, local, src) {
		return UploadDir(ctx, local, src, remote, dst, opts)
	}
	return UploadFile(ctx, local, src, remote, dst, opts)
}

// Download is the reverse of Upload.
func Download(ctx context.Context, remote FileSystem, src string, local FileSystem, dst string, recursive bool, opts Options) error {
	if recursive && isDir(ctx, remote, src) {
		return DownloadDir(ctx, remote, src, local, dst, opts)
	}
	return DownloadFile(ctx, remote, src, local, dst, opts)
}

// IsDir reports whether p exists and is a directory. Other errors than a
// missing path are returned.
func IsDir(ctx context.Context, fsys FileSystem, p string) (bool, error) {
	st, err := fsys.Stat(ctx, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return st.IsDir(), nil
}

// isDir lets the copy itself report stat failures.
func isDir(ctx context.Context, fsys FileSystem, p string) bool {
	ok, _ := IsDir(ctx, fsys, p)
	return ok
}
