package imagefind

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"auto_x_thread_publisher/retry"
)

// ErrNoCandidate means the search produced nothing downloadable.
var ErrNoCandidate = errors.New("no image candidate found")

// Searcher turns an image query into a candidate image URL.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearchPage is the slice of a browser page the Google searcher drives.
type SearchPage interface {
	Goto(ctx context.Context, url string) error
	Count(ctx context.Context, selector string) (int, error)
	Click(ctx context.Context, selector string) error
	Attribute(ctx context.Context, selector, name string) (string, error)
}

const (
	googleImagesURL = "https://www.google.com/search?tbm=isch&q="

	thumbnailSelector = ".H8Rx8c img"
	fullImageSelector = `img[class*="iPVvYb"]`
)

// GoogleSearcher scrapes the first Google Images result on a borrowed page.
type GoogleSearcher struct {
	page   SearchPage
	wait   retry.Policy
	settle time.Duration
}

// NewGoogleSearcher returns a searcher that waits for results with wait and
// pauses settle after opening the preview pane.
func NewGoogleSearcher(page SearchPage, wait retry.Policy, settle time.Duration) *GoogleSearcher {
	if wait.Clock == nil {
		wait.Clock = retry.RealClock{}
	}
	return &GoogleSearcher{page: page, wait: wait, settle: settle}
}

func (g *GoogleSearcher) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrNoCandidate
	}
	if err := g.page.Goto(ctx, googleImagesURL+url.QueryEscape(query)); err != nil {
		return "", fmt.Errorf("open image search: %w", err)
	}

	err := retry.Until(ctx, g.wait, func(ctx context.Context) (bool, error) {
		n, err := g.page.Count(ctx, thumbnailSelector)
		return n > 0, err
	})
	if err != nil {
		return "", fmt.Errorf("wait for image results: %w", err)
	}

	if err := g.page.Click(ctx, thumbnailSelector); err != nil {
		return "", fmt.Errorf("open first result: %w", err)
	}
	if err := g.wait.Clock.Sleep(ctx, g.settle); err != nil {
		return "", err
	}

	src, err := g.page.Attribute(ctx, thumbnailSelector, "src")
	if err != nil {
		return "", fmt.Errorf("read thumbnail src: %w", err)
	}

	// Thumbnails are usually inline data URLs; the preview pane carries the
	// original URL.
	if src == "" || strings.HasPrefix(src, "data:") {
		if full, err := g.page.Attribute(ctx, fullImageSelector, "src"); err == nil && full != "" {
			src = full
		}
	}

	if src == "" || strings.HasPrefix(src, "data:") {
		return "", ErrNoCandidate
	}
	return src, nil
}
