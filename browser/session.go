// Package browser owns the single automated browser page used for image
// search and thread composition.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSessionBusy is returned when the page is already held by another owner.
	ErrSessionBusy = errors.New("browser session is busy")
	// ErrNotOwner is returned when releasing a page held by someone else.
	ErrNotOwner = errors.New("browser session not held by caller")
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("browser session closed")
)

// Page is everything the pipeline does with a page: image search and
// composer automation.
type Page interface {
	Goto(ctx context.Context, url string) error
	Count(ctx context.Context, selector string) (int, error)
	Visible(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	ClickAt(ctx context.Context, x, y float64) error
	SetInputFiles(ctx context.Context, selector, path string) error
	Attribute(ctx context.Context, selector, name string) (string, error)
}

// Session hands one page to one owner at a time.
type Session struct {
	mu     sync.Mutex
	page   Page
	owner  string
	closed bool
	close  func() error
}

// NewSession wraps an already open page. closeFn releases the underlying
// browser and may be nil.
func NewSession(page Page, closeFn func() error) *Session {
	return &Session{page: page, close: closeFn}
}

// Acquire hands the page to owner until Release.
func (s *Session) Acquire(owner string) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.owner != "" {
		return nil, fmt.Errorf("%w: held by %s", ErrSessionBusy, s.owner)
	}
	s.owner = owner
	return s.page, nil
}

// Release returns the page. Only the current owner may release it.
func (s *Session) Release(owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, owner)
	}
	s.owner = ""
	return nil
}

// Owner reports who currently holds the page, or "".
func (s *Session) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.owner = ""
	if s.close == nil {
		return nil
	}
	return s.close()
}
