// Package draft persists thread drafts as operator-editable markdown documents.
//
// One draft lives in one directory:
//
//	threads/thread_<id>/thread.md
//	threads/thread_<id>/images/tweet_<index>.<ext>
//
// The document is the only persistence format. The operator edits it by hand
// between generation and publishing, so loading is deliberately tolerant of
// untouched fields and strict about structure.
package draft

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle tag written in the document header.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
)

// Thread is a full draft as read back from disk.
type Thread struct {
	ID        string
	Topic     string
	Status    Status
	CreatedAt time.Time
	Posts     []Post
}

// Post is one unit of the thread at a fixed index.
type Post struct {
	Index      int
	Text       string
	ImageQuery string
	// CustomURL is the operator's image override. nil means unset; the store
	// never returns a pointer to a blank string.
	CustomURL *string
	// ImagePath is filled by image resolution and never persisted.
	ImagePath string
}

// CustomImageURL reports the override, treating blank the same as absent.
func (p Post) CustomImageURL() (string, bool) {
	if p.CustomURL == nil {
		return "", false
	}
	u := strings.TrimSpace(*p.CustomURL)
	if u == "" {
		return "", false
	}
	return u, true
}

// NewPost is the generator-facing constructor: text and query only.
func NewPost(text, imageQuery string) Post {
	return Post{Text: text, ImageQuery: imageQuery}
}

// Summary is the directory listing view of a draft.
type Summary struct {
	ID        string
	Topic     string
	Status    Status
	CreatedAt time.Time
	Posts     int
	Err       error
}

// Image is an already-resolved slot image found on disk.
type Image struct {
	Index int
	Path  string
}

// ParseError is returned when a section of the document lost its structure.
// Section is the 0-based post index, or -1 for the header.
type ParseError struct {
	Section int
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Section < 0 {
		return fmt.Sprintf("parse draft header: %s", e.Reason)
	}
	return fmt.Sprintf("parse draft section %d (Tweet %d): %s", e.Section, e.Section+1, e.Reason)
}
