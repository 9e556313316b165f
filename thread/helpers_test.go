package thread

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"auto_x_thread_publisher/browser"
	"auto_x_thread_publisher/draft"
	"auto_x_thread_publisher/generator"
	"auto_x_thread_publisher/imagefind"
	"auto_x_thread_publisher/operator"
	"auto_x_thread_publisher/publisher"
	"auto_x_thread_publisher/retry"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

const homeURL = "https://x.test/home"

// composerPage is a browser page where every composer control exists.
type composerPage struct {
	mu      sync.Mutex
	visited []string
	values  map[string]string
	files   []string
	clicks  []string
}

func newComposerPage() *composerPage {
	return &composerPage{values: map[string]string{}}
}

func (p *composerPage) Goto(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	return nil
}

func (p *composerPage) Count(context.Context, string) (int, error) { return 1, nil }
func (p *composerPage) Visible(context.Context, string) (bool, error) { return false, nil }
func (p *composerPage) ClickAt(context.Context, float64, float64) error { return nil }

func (p *composerPage) Attribute(context.Context, string, string) (string, error) {
	return "", errors.New("no search results")
}

func (p *composerPage) Fill(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[selector] = value
	return nil
}

func (p *composerPage) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *composerPage) SetInputFiles(_ context.Context, _, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, path)
	return nil
}

// recordingPublisher captures the posts it is asked to publish.
type recordingPublisher struct {
	posts [][]publisher.Post
	err   error
}

func (r *recordingPublisher) PublishThread(_ context.Context, posts []publisher.Post) (publisher.Result, error) {
	r.posts = append(r.posts, posts)
	if r.err != nil {
		return publisher.Result{State: publisher.ReadyToSubmit, Slots: len(posts)}, r.err
	}
	return publisher.Result{State: publisher.Submitted, Slots: len(posts)}, nil
}

// editingPrompter edits the draft on disk when the review question comes up,
// then answers from its script.
type editingPrompter struct {
	*operator.Script
	onReview func()
}

func (e *editingPrompter) Confirm(ctx context.Context, q string) (bool, error) {
	if strings.HasPrefix(q, "Proceed") && e.onReview != nil {
		e.onReview()
	}
	return e.Script.Confirm(ctx, q)
}

type harness struct {
	store    *draft.Store
	page     *composerPage
	launches int
	sessions []*browser.Session
	closed   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		store: draft.NewStore(filepath.Join(t.TempDir(), "threads")),
		page:  newComposerPage(),
	}
}

func (h *harness) launch(context.Context) (*browser.Session, error) {
	h.launches++
	s := browser.NewSession(h.page, func() error {
		h.closed++
		return nil
	})
	h.sessions = append(h.sessions, s)
	return s, nil
}

func (h *harness) deps(llm generator.LLMClient, prompt operator.Prompter, pub PublisherFactory) Deps {
	agent, _ := generator.NewAgent(llm)
	if pub == nil {
		pub = func(page browser.Page) Publisher {
			return publisher.New(page, publisher.WithClock(&retry.RecordingClock{}))
		}
	}
	return Deps{
		Store:    h.store,
		Agent:    agent,
		Prompter: prompt,
		Launch:   h.launch,
		Resolver: func(dir string, page browser.Page) Resolver {
			return imagefind.NewResolver(dir, imagefind.NewDownloader(nil), nil, prompt,
				imagefind.WithSearchInterval(0))
		},
		Publisher: pub,
	}
}

func newTestManager(t *testing.T, deps Deps, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{
		WithHomeURL(homeURL),
		WithRenderer(func(src []byte) (string, error) { return string(src), nil }),
	}, opts...)
	m, err := NewManager(deps, opts...)
	require.NoError(t, err)
	return m
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".png") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// onlyDraft returns the single draft id in the store.
func onlyDraft(t *testing.T, s *draft.Store) string {
	t.Helper()
	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0].ID
}

// setCustomURLs fills the custom URL lines of the given sections.
func setCustomURLs(t *testing.T, s *draft.Store, urls map[int]string) {
	t.Helper()
	id := onlyDraft(t, s)
	path := s.DocumentPath(id)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	parts := strings.Split(string(data), "### Tweet ")
	for section, u := range urls {
		i := section + 1
		parts[i] = strings.Replace(parts[i], "**Custom Image URL:** \n", "**Custom Image URL:** "+u+"\n", 1)
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(parts, "### Tweet ")), 0o644))
}

// scriptedLLM returns canned completions in order.
type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Complete(context.Context, generator.Prompt) (string, error) {
	s.calls++
	if len(s.replies) == 0 {
		return "", errors.New("no more replies")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}
