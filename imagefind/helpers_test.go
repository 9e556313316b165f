package imagefind

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	gifBytes  = append([]byte("GIF89a\x01\x00\x01\x00"), make([]byte, 32)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), make([]byte, 64)...)
	htmlBytes = []byte("<!DOCTYPE html><html><body>rate limited</body></html>")
)

type fixture struct {
	contentType string
	body        []byte
	status      int
}

// imageServer serves fixed payloads by path and records request headers.
type imageServer struct {
	*httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	lastUser string
}

func newImageServer(t *testing.T, routes map[string]fixture) *imageServer {
	t.Helper()
	s := &imageServer{hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.lastUser = r.Header.Get("User-Agent")
		s.mu.Unlock()

		f, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if f.contentType != "" {
			w.Header().Set("Content-Type", f.contentType)
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = w.Write(f.body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// fakeSearcher returns canned candidates and records queries.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string]string
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	u, ok := f.results[query]
	if !ok {
		return "", ErrNoCandidate
	}
	return u, nil
}

func (f *fakeSearcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func strPtr(s string) *string { return &s }
