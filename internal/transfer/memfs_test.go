package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

// memFS is an in-memory FileSystem used as the remote side in tests.
// Every mutation advances its clock by one second.
type memFS struct {
	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	mtimes  map[string]time.Time
	now     time.Time
	writes  int
	mkdirs  int
	// failAfter makes writes fail once this many bytes have been stored; 0 disables.
	failAfter int64
}

// newMemFS starts its clock at the current time, so files written to it
// are never older than local files created earlier in the test.
func newMemFS() *memFS {
	return newMemFSAt(time.Now())
}

// newMemFSAt starts the clock at start; use a past time for remote files
// that must look older than what a download writes locally.
func newMemFSAt(start time.Time) *memFS {
	return &memFS{
		files:  map[string][]byte{},
		dirs:   map[string]bool{"/": true},
		mtimes: map[string]time.Time{},
		now:    start,
	}
}

func clean(p string) string {
	return path.Clean("/" + p)
}

func (m *memFS) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memFS) put(p string, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	m.mkdirLocked(path.Dir(p))
	m.files[p] = []byte(data)
	m.mtimes[p] = m.tick()
}

func (m *memFS) content(p string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.files[clean(p)])
}

func (m *memFS) has(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[clean(p)]
	return ok || m.dirs[clean(p)]
}

func (m *memFS) mkdirLocked(p string) {
	for p != "/" && !m.dirs[p] {
		m.dirs[p] = true
		m.mtimes[p] = m.now
		p = path.Dir(p)
	}
}

func (m *memFS) Stat(_ context.Context, p string) (FileStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if data, ok := m.files[p]; ok {
		return FileStatus{Path: p, Size: int64(len(data)), ModTime: m.mtimes[p], Type: TypeFile}, nil
	}
	if m.dirs[p] {
		return FileStatus{Path: p, ModTime: m.mtimes[p], Type: TypeDir}, nil
	}
	return FileStatus{}, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (m *memFS) List(ctx context.Context, p string) iter.Seq2[FileStatus, error] {
	return func(yield func(FileStatus, error) bool) {
		m.mu.Lock()
		p = clean(p)
		if _, ok := m.files[p]; ok {
			m.mu.Unlock()
			yield(FileStatus{}, &fs.PathError{Op: "list", Path: p, Err: syscall.ENOTDIR})
			return
		}
		if !m.dirs[p] {
			m.mu.Unlock()
			yield(FileStatus{}, &fs.PathError{Op: "list", Path: p, Err: fs.ErrNotExist})
			return
		}
		names := map[string]bool{}
		for _, set := range []map[string]bool{m.dirs, keys(m.files)} {
			for k := range set {
				if k != p && path.Dir(k) == p {
					names[k] = true
				}
			}
		}
		sorted := make([]string, 0, len(names))
		for k := range names {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)
		m.mu.Unlock()

		for _, k := range sorted {
			st, err := m.Stat(ctx, k)
			if !yield(st, err) {
				return
			}
		}
	}
}

func keys(files map[string][]byte) map[string]bool {
	out := make(map[string]bool, len(files))
	for k := range files {
		out[k] = true
	}
	return out
}

func (m *memFS) Mkdir(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if _, ok := m.files[p]; ok {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
	}
	m.mkdirs++
	m.tick()
	m.mkdirLocked(p)
	return nil
}

func (m *memFS) Open(_ context.Context, p string, offset int64) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[clean(p)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data[offset:]))), nil
}

func (m *memFS) Create(_ context.Context, p string, r io.Reader, _ int64) error {
	return m.store(p, 0, r, true)
}

// memAppendFS exposes Append; memFS alone behaves like a blob store.
type memAppendFS struct{ *memFS }

func (m memAppendFS) Append(_ context.Context, p string, offset int64, r io.Reader, _ int64) error {
	return m.store(p, offset, r, false)
}

func (m *memFS) store(p string, offset int64, r io.Reader, truncate bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if m.dirs[p] {
		return &fs.PathError{Op: "write", Path: p, Err: syscall.EISDIR}
	}
	if !m.dirs[path.Dir(p)] {
		return &fs.PathError{Op: "write", Path: p, Err: fs.ErrNotExist}
	}
	m.writes++

	var cur []byte
	if !truncate {
		cur = m.files[p]
		if int64(len(cur)) < offset {
			return fmt.Errorf("append at %d beyond size %d", offset, len(cur))
		}
		cur = cur[:offset]
	}
	next := append(bytes.Clone(cur), data...)
	if m.failAfter > 0 && int64(len(next)) > m.failAfter {
		m.files[p] = next[:m.failAfter]
		m.mtimes[p] = m.tick()
		return fmt.Errorf("connection reset while writing %s", p)
	}
	m.files[p] = next
	m.mtimes[p] = m.tick()
	return nil
}

// walkFiles returns path -> content for every file below root.
func (m *memFS) walkFiles(root string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	root = clean(root)
	out := map[string]string{}
	for k, v := range m.files {
		if strings.HasPrefix(k, root+"/") {
			out[strings.TrimPrefix(k, root+"/")] = string(v)
		}
	}
	return out
}
