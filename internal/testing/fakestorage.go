package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FakeStorage is an in-memory storage service speaking the op=... protocol.
// Mount it under /storage on an httptest server.
type FakeStorage struct {
	mu     sync.Mutex
	files  map[string][]byte
	dirs   map[string]bool
	mtimes map[string]time.Time
	now    time.Time

	// Writes counts create and append requests.
	Writes int
	// IgnoreRange serves full bodies regardless of the Range header.
	IgnoreRange bool
}

// NewFakeStorage returns an empty store whose clock starts at start.
func NewFakeStorage(start time.Time) *FakeStorage {
	return &FakeStorage{
		files:  map[string][]byte{},
		dirs:   map[string]bool{"/": true},
		mtimes: map[string]time.Time{},
		now:    start,
	}
}

// Put stores a file, creating its parents.
func (s *FakeStorage) Put(p, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean("/" + p)
	s.mkdirs(path.Dir(p))
	s.files[p] = []byte(content)
	s.mtimes[p] = s.tick()
}

// Content returns a file's content.
func (s *FakeStorage) Content(p string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path.Clean("/"+p)]
	return string(data), ok
}

// IsDir reports whether p is a directory.
func (s *FakeStorage) IsDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[path.Clean("/"+p)]
}

func (s *FakeStorage) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *FakeStorage) mkdirs(p string) {
	for p != "/" && !s.dirs[p] {
		s.dirs[p] = true
		s.mtimes[p] = s.now
		p = path.Dir(p)
	}
}

type fakeStatus struct {
	Path             string `json:"path"`
	Type             string `json:"type"`
	Length           int64  `json:"length"`
	ModificationTime int64  `json:"modificationTime"`
	Permission       string `json:"permission"`
}

func (s *FakeStorage) status(p string) (fakeStatus, bool) {
	if data, ok := s.files[p]; ok {
		return fakeStatus{Path: p, Type: "FILE", Length: int64(len(data)), ModificationTime: s.mtimes[p].Unix(), Permission: "write"}, true
	}
	if s.dirs[p] {
		return fakeStatus{Path: p, Type: "DIRECTORY", ModificationTime: s.mtimes[p].Unix(), Permission: "write"}, true
	}
	return fakeStatus{}, false
}

func writeErrno(w http.ResponseWriter, status int, errno, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "errno": errno})
}

// ServeHTTP implements the storage protocol.
func (s *FakeStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean("/" + strings.TrimPrefix(r.URL.Path, "/storage"))
	op := r.URL.Query().Get("op")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && op == "GETFILESTATUS":
		st, ok := s.status(p)
		if !ok {
			writeErrno(w, http.StatusNotFound, "ENOENT", "no such file or directory: "+p)
			return
		}
		st.Path = path.Base(p)
		_ = json.NewEncoder(w).Encode(map[string]fakeStatus{"FileStatus": st})

	case r.Method == http.MethodGet && op == "LISTSTATUS":
		if _, ok := s.files[p]; ok {
			writeErrno(w, http.StatusBadRequest, "ENOTDIR", "not a directory: "+p)
			return
		}
		if !s.dirs[p] {
			writeErrno(w, http.StatusNotFound, "ENOENT", "no such file or directory: "+p)
			return
		}
		var names []string
		for k := range s.dirs {
			if k != p && path.Dir(k) == p {
				names = append(names, k)
			}
		}
		for k := range s.files {
			if path.Dir(k) == p {
				names = append(names, k)
			}
		}
		sort.Strings(names)
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, k := range names {
			st, _ := s.status(k)
			st.Path = path.Base(k)
			_ = enc.Encode(map[string]fakeStatus{"FileStatus": st})
		}

	case r.Method == http.MethodPut && op == "MKDIRS":
		if _, ok := s.files[p]; ok {
			writeErrno(w, http.StatusBadRequest, "EEXIST", "file exists: "+p)
			return
		}
		s.tick()
		s.mkdirs(p)
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPut && op == "":
		if !s.dirs[path.Dir(p)] {
			writeErrno(w, http.StatusNotFound, "ENOENT", "no such directory: "+path.Dir(p))
			return
		}
		if s.dirs[p] {
			writeErrno(w, http.StatusBadRequest, "EISDIR", "is a directory: "+p)
			return
		}
		data, _ := io.ReadAll(r.Body)
		s.files[p] = data
		s.mtimes[p] = s.tick()
		s.Writes++
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodGet && op == "OPEN":
		data, ok := s.files[p]
		if !ok {
			writeErrno(w, http.StatusNotFound, "ENOENT", "no such file: "+p)
			return
		}
		if rng := r.Header.Get("Range"); rng != "" && !s.IgnoreRange {
			start, _ := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"), 10, 64)
			if start > int64(len(data)) {
				start = int64(len(data))
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(data)-1, len(data)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(data[start:])
			return
		}
		_, _ = w.Write(data)

	case r.Method == http.MethodPatch && op == "WRITE":
		cur, ok := s.files[p]
		if !ok {
			writeErrno(w, http.StatusNotFound, "ENOENT", "no such file: "+p)
			return
		}
		var start, end int64
		if _, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/*", &start, &end); err != nil || start > int64(len(cur)) {
			writeErrno(w, http.StatusBadRequest, "EINVAL", "bad content range")
			return
		}
		data, _ := io.ReadAll(r.Body)
		s.files[p] = append(append([]byte{}, cur[:start]...), data...)
		s.mtimes[p] = s.tick()
		s.Writes++
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodDelete && op == "DELETE":
		if _, ok := s.files[p]; ok {
			delete(s.files, p)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !s.dirs[p] {
			writeErrno(w, http.StatusNotFound, "ENOENT", "no such file or directory: "+p)
			return
		}
		recursive := r.URL.Query().Get("recursive") == "true"
		prefix := p + "/"
		var children []string
		for k := range s.files {
			if strings.HasPrefix(k, prefix) {
				children = append(children, k)
			}
		}
		for k := range s.dirs {
			if strings.HasPrefix(k, prefix) {
				children = append(children, k)
			}
		}
		if len(children) > 0 && !recursive {
			writeErrno(w, http.StatusBadRequest, "ENOTEMPTY", "directory not empty: "+p)
			return
		}
		for _, k := range children {
			delete(s.files, k)
			delete(s.dirs, k)
		}
		delete(s.dirs, p)
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && op == "RENAME":
		dst := path.Clean("/" + strings.TrimPrefix(r.URL.Query().Get("destination"), "/storage"))
		if data, ok := s.files[p]; ok {
			delete(s.files, p)
			s.files[dst] = data
			s.mtimes[dst] = s.tick()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !s.dirs[p] {
			writeErrno(w, http.StatusNotFound, "ENOENT", "no such file or directory: "+p)
			return
		}
		moved := map[string][]byte{}
		for k, v := range s.files {
			if strings.HasPrefix(k, p+"/") {
				moved[dst+strings.TrimPrefix(k, p)] = v
				delete(s.files, k)
			}
		}
		for k := range s.dirs {
			if k == p || strings.HasPrefix(k, p+"/") {
				delete(s.dirs, k)
				s.dirs[dst+strings.TrimPrefix(k, p)] = true
			}
		}
		for k, v := range moved {
			s.files[k] = v
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && op == "GETDISKUSAGE":
		_ = json.NewEncoder(w).Encode(map[string]int64{"total": 1 << 40, "used": 1 << 30, "free": 1<<40 - 1<<30})

	default:
		writeErrno(w, http.StatusBadRequest, "EINVAL", fmt.Sprintf("unsupported %s op=%q", r.Method, op))
	}
}
