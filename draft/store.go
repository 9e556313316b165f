package draft

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	dirPrefix    = "thread_"
	documentName = "thread.md"
	imagesDir    = "images"
	idLayout     = "20060102_150405"
)

var slotFileRe = regexp.MustCompile(`^tweet_(\d+)\.[A-Za-z0-9]+$`)

// SlotName is the base filename (without extension) of the image for a post.
func SlotName(index int) string {
	return fmt.Sprintf("tweet_%d", index)
}

// Store reads and writes drafts under a root directory (usually "threads").
type Store struct {
	root string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to derive draft IDs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store rooted at root. The directory is created lazily.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{root: root, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory holding all drafts.
func (s *Store) Root() string { return s.root }

// Dir returns the directory of a draft.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, dirPrefix+normalizeID(id))
}

// ImagesDir returns the slot image directory of a draft.
func (s *Store) ImagesDir(id string) string {
	return filepath.Join(s.Dir(id), imagesDir)
}

// DocumentPath returns the path of the editable document of a draft.
func (s *Store) DocumentPath(id string) string {
	return filepath.Join(s.Dir(id), documentName)
}

// normalizeID accepts both "<id>" and the directory name "thread_<id>".
func normalizeID(id string) string {
	return strings.TrimPrefix(filepath.Base(strings.TrimSpace(id)), dirPrefix)
}

// Save allocates a new draft directory and writes the document. Posts are
// re-indexed by position; custom URLs always start blank.
func (s *Store) Save(topic string, posts []Post) (string, error) {
	if len(posts) == 0 {
		return "", errors.New("draft has no posts")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create threads dir: %w", err)
	}

	now := s.now()
	id, err := s.allocate(now.Format(idLayout))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.ImagesDir(id), 0o755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}

	t := Thread{
		ID:        id,
		Topic:     topic,
		Status:    StatusDraft,
		CreatedAt: now,
		Posts:     make([]Post, len(posts)),
	}
	for i, p := range posts {
		t.Posts[i] = Post{Index: i, Text: p.Text, ImageQuery: p.ImageQuery}
	}

	if err := writeFileAtomic(s.DocumentPath(id), render(t)); err != nil {
		return "", fmt.Errorf("write draft: %w", err)
	}
	return id, nil
}

// allocate creates the draft directory, suffixing the ID when two drafts are
// saved within the same second. The directory name is never changed later.
func (s *Store) allocate(base string) (string, error) {
	id := base
	for n := 2; ; n++ {
		err := os.Mkdir(s.Dir(id), 0o755)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create draft dir: %w", err)
		}
		id = base + "_" + strconv.Itoa(n)
	}
}

// Load parses a draft, picking up any edits made to the document.
func (s *Store) Load(id string) (Thread, error) {
	id = normalizeID(id)
	src, err := os.ReadFile(s.DocumentPath(id))
	if err != nil {
		return Thread{}, fmt.Errorf("read draft %s: %w", id, err)
	}
	t, err := parse(src)
	if err != nil {
		return Thread{}, err
	}
	// The directory name is the identity; the header line is informational.
	t.ID = id
	return t, nil
}

// MarkPublished flips the header status to PUBLISHED.
func (s *Store) MarkPublished(id string) error {
	path := s.DocumentPath(id)
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read draft %s: %w", normalizeID(id), err)
	}
	out, ok := setStatus(src, StatusPublished)
	if !ok {
		return &ParseError{Section: -1, Reason: "missing status line"}
	}
	return writeFileAtomic(path, out)
}

// List returns every draft under the root, newest first. Drafts that fail to
// parse are still listed, with Err set.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read threads dir: %w", err)
	}

	var out []Summary
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		id := normalizeID(e.Name())
		t, err := s.Load(id)
		if err != nil {
			out = append(out, Summary{ID: id, Err: err})
			continue
		}
		out = append(out, Summary{
			ID:        id,
			Topic:     t.Topic,
			Status:    t.Status,
			CreatedAt: t.CreatedAt,
			Posts:     len(t.Posts),
		})
	}

	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(b.ID, a.ID) })
	return out, nil
}

// ListImages returns the slot images present on disk, ordered by post index.
// Missing slots are simply absent.
func (s *Store) ListImages(id string) ([]Image, error) {
	dir := s.ImagesDir(id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read images dir: %w", err)
	}

	var out []Image
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := slotFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, Image{Index: idx, Path: filepath.Join(dir, e.Name())})
	}

	slices.SortFunc(out, func(a, b Image) int {
		if a.Index != b.Index {
			return a.Index - b.Index
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
