package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Platform is an httptest server standing in for every platform service.
// Storage requests are served by Storage; other routes are registered
// with Handle.
type Platform struct {
	URL     string
	Storage *FakeStorage

	mu       sync.Mutex
	mux      *http.ServeMux
	requests []string
}

// NewPlatform starts a platform server that is closed with the test.
func NewPlatform(t *testing.T) *Platform {
	t.Helper()
	p := &Platform{
		Storage: NewFakeStorage(time.Now().Add(-time.Hour).Truncate(time.Second)),
		mux:     http.NewServeMux(),
	}
	p.mux.Handle("/storage/", p.Storage)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.requests = append(p.requests, r.Method+" "+r.URL.Path)
		p.mu.Unlock()
		p.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	p.URL = srv.URL
	return p
}

// Handle registers a handler for a ServeMux pattern such as "GET /api/v1/jobs".
func (p *Platform) Handle(pattern string, h http.HandlerFunc) {
	p.mux.HandleFunc(pattern, h)
}

// JSON registers a route answering with a fixed status and JSON body.
func (p *Platform) JSON(pattern string, status int, body any) {
	p.Handle(pattern, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Requests returns "METHOD /path" for every request served so far.
func (p *Platform) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
