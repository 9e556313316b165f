// Package server exposes saved drafts over a local HTTP server: an HTML
// preview for the operator and a small JSON API, including draft generation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"auto_x_thread_publisher/draft"
	"auto_x_thread_publisher/generator"
)

const (
	generateTimeout = 90 * time.Second
	maxSessions     = 64
)

var imageNameRe = regexp.MustCompile(`^tweet_\d+\.[A-Za-z0-9]+$`)

type Server struct {
	drafts   *draft.Store
	genAgent *generator.Agent
	count    int
	sessions *sessionStore
	logger   zerolog.Logger
}

// sessionStore keeps generation sessions so an incomplete thread can be
// retried with its history. A session is dropped once its draft is saved, and
// the oldest sessions are evicted past the limit.
type sessionStore struct {
	mu       sync.Mutex
	limit    int
	order    []string
	sessions map[string]*genSession
}

type genSession struct {
	mu       sync.Mutex
	gen      *generator.Session
	threadID string
}

func newStore(limit int) *sessionStore {
	return &sessionStore{limit: limit, sessions: make(map[string]*genSession)}
}

func (s *sessionStore) set(id string, sess *genSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.order = append(s.order, id)
	}
	s.sessions[id] = sess
	for len(s.order) > s.limit {
		delete(s.sessions, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
}

func (s *sessionStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionStore) get(id string) (*genSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// New builds the server. genAgent may be nil, which disables the generation
// endpoints.
func New(drafts *draft.Store, genAgent *generator.Agent, count int, logger zerolog.Logger) (*Server, error) {
	if drafts == nil {
		return nil, errors.New("draft store required")
	}
	if count <= 0 {
		count = generator.DefaultTweetCount
	}
	return &Server{
		drafts:   drafts,
		genAgent: genAgent,
		count:    count,
		sessions: newStore(maxSessions),
		logger:   logger,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /threads/{id}", s.handleThreadPage)
	mux.HandleFunc("GET /threads/{id}/images/{name}", s.handleImage)
	mux.HandleFunc("GET /api/threads", s.handleThreadList)
	mux.HandleFunc("GET /api/threads/{id}", s.handleThread)
	mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("POST /api/sessions/{id}/retry", s.handleSessionRetry)
	return logMiddleware(s.logger, mux)
}

// --- Drafts ---

type threadSummary struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Posts     int       `json:"posts"`
	Error     string    `json:"error,omitempty"`
}

type postResp struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	ImageQuery string `json:"image_query"`
	CustomURL  string `json:"custom_url,omitempty"`
	Image      string `json:"image,omitempty"`
}

type threadResp struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Posts     []postResp `json:"posts"`
}

func (s *Server) handleThreadList(w http.ResponseWriter, r *http.Request) {
	list, err := s.drafts.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]threadSummary, 0, len(list))
	for _, d := range list {
		out = append(out, toSummary(d))
	}
	writeJSON(w, out)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.loadThread(w, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, resp)
}

func (s *Server) loadThread(w http.ResponseWriter, id string) (threadResp, bool) {
	t, err := s.drafts.Load(id)
	if err != nil {
		writeLoadError(w, err)
		return threadResp{}, false
	}
	images, err := s.drafts.ListImages(t.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return threadResp{}, false
	}

	byIndex := make(map[int]string, len(images))
	for _, img := range images {
		if _, dup := byIndex[img.Index]; !dup {
			byIndex[img.Index] = "/threads/" + t.ID + "/images/" + filepath.Base(img.Path)
		}
	}

	resp := threadResp{
		ID:        t.ID,
		Topic:     t.Topic,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		Posts:     make([]postResp, 0, len(t.Posts)),
	}
	for _, p := range t.Posts {
		custom, _ := p.CustomImageURL()
		resp.Posts = append(resp.Posts, postResp{
			Index:      p.Index,
			Text:       p.Text,
			ImageQuery: p.ImageQuery,
			CustomURL:  custom,
			Image:      byIndex[p.Index],
		})
	}
	return resp, true
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !imageNameRe.MatchString(name) {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.drafts.ImagesDir(r.PathValue("id")), name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func toSummary(d draft.Summary) threadSummary {
	out := threadSummary{
		ID:        d.ID,
		Topic:     d.Topic,
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt,
		Posts:     d.Posts,
	}
	if d.Err != nil {
		out.Error = d.Err.Error()
	}
	return out
}

func writeLoadError(w http.ResponseWriter, err error) {
	var pe *draft.ParseError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "thread not found", http.StatusNotFound)
	case errors.As(err, &pe):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// --- Generation sessions ---

type sessionCreateReq struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

type attemptResp struct {
	Declared  int       `json:"declared"`
	Parsed    int       `json:"parsed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResp struct {
	SessionID  string        `json:"session_id"`
	Topic      string        `json:"topic"`
	Incomplete bool          `json:"incomplete"`
	ThreadID   string        `json:"thread_id,omitempty"`
	Attempts   []attemptResp `json:"attempts"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if s.genAgent == nil {
		http.Error(w, "generation not configured", http.StatusServiceUnavailable)
		return
	}
	var req sessionCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}
	count := req.Count
	if count <= 0 {
		count = s.count
	}

	id := newSessionID()
	sess := &genSession{gen: generator.NewSession(req.Topic, count, s.genAgent)}
	s.sessions.set(id, sess)

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	s.runGeneration(ctx, w, id, sess, sess.gen.Propose)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, sess.response(id))
}

func (s *Server) handleSessionRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	s.runGeneration(ctx, w, id, sess, sess.gen.Retry)
}

// runGeneration runs one attempt and saves the draft once a complete thread
// comes back. Incomplete threads are reported, never saved.
func (s *Server) runGeneration(ctx context.Context, w http.ResponseWriter, id string, sess *genSession, attempt func(context.Context) (generator.Thread, error)) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.threadID != "" {
		http.Error(w, "session already produced thread "+sess.threadID, http.StatusConflict)
		return
	}

	th, err := attempt(ctx)
	var inc *generator.IncompleteError
	switch {
	case errors.As(err, &inc):
		s.logger.Warn().Str("session", id).Int("declared", inc.Declared).Int("parsed", inc.Parsed).Msg("incomplete thread")
		writeJSON(w, sess.response(id))
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	posts := make([]draft.Post, len(th.Posts))
	for i, p := range th.Posts {
		posts[i] = draft.NewPost(p.Text, p.ImageQuery)
	}
	threadID, err := s.drafts.Save(sess.gen.Topic, posts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.threadID = threadID
	s.sessions.remove(id)
	s.logger.Info().Str("session", id).Str("thread", threadID).Msg("draft saved")
	writeJSON(w, sess.response(id))
}

func (g *genSession) response(id string) sessionResp {
	resp := sessionResp{
		SessionID: id,
		Topic:     g.gen.Topic,
		ThreadID:  g.threadID,
		Attempts:  make([]attemptResp, 0, len(g.gen.Attempts)),
	}
	for _, a := range g.gen.Attempts {
		ar := attemptResp{Declared: a.Declared, Parsed: a.Parsed, CreatedAt: a.CreatedAt}
		if a.Err != nil {
			ar.Error = a.Err.Error()
		}
		resp.Attempts = append(resp.Attempts, ar)
	}
	if n := len(g.gen.Attempts); n > 0 && g.threadID == "" {
		var inc *generator.IncompleteError
		resp.Incomplete = errors.As(g.gen.Attempts[n-1].Err, &inc)
	}
	return resp
}

// --- Helpers ---

func newSessionID() string {
	return strings.ReplaceAll(time.Now().Format("20060102T150405.000000000"), ".", "")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}
