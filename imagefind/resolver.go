// Package imagefind resolves exactly one verified local image per post, or an
// explicit skip.
//
// Strategies run in a fixed order: the operator's custom URL, then an image
// search on the post's query, then an interactive loop asking the operator
// for replacement URLs until one downloads or they give up.
package imagefind

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"auto_x_thread_publisher/draft"
	"auto_x_thread_publisher/operator"
)

// DefaultSearchInterval spaces consecutive image searches.
const DefaultSearchInterval = 2 * time.Second

// Source records which strategy produced an outcome.
type Source string

const (
	SourceCustom Source = "custom"
	SourceSearch Source = "search"
	SourceManual Source = "manual"
	SourceNone   Source = "none"
)

// Request describes one post's image needs.
type Request struct {
	Index     int
	Query     string
	CustomURL *string
	// AutoConfirm accepts automatically resolved images without asking.
	AutoConfirm bool
}

// Outcome is either a verified path or an explicit skip, never both.
type Outcome struct {
	Index   int
	Path    string
	Skipped bool
	Source  Source
}

// Resolved reports whether the outcome carries an image.
func (o Outcome) Resolved() bool { return !o.Skipped && o.Path != "" }

// Fetcher downloads one URL into one slot file.
type Fetcher interface {
	Download(ctx context.Context, url, dir, slot string) (string, error)
}

// Resolver resolves images into a single draft's image directory.
type Resolver struct {
	dir    string
	fetch  Fetcher
	search Searcher
	prompt operator.Prompter
	pace   *rate.Limiter
	out    io.Writer
	logger zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSearchInterval spaces image searches by at least d.
func WithSearchInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d <= 0 {
			r.pace = rate.NewLimiter(rate.Inf, 1)
			return
		}
		r.pace = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithOutput sets where operator-facing progress lines go.
func WithOutput(w io.Writer) Option {
	return func(r *Resolver) { r.out = w }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver returns a Resolver writing into dir. search may be nil, in
// which case only custom URLs and the interactive loop are available.
func NewResolver(dir string, fetch Fetcher, search Searcher, prompt operator.Prompter, opts ...Option) *Resolver {
	r := &Resolver{
		dir:    dir,
		fetch:  fetch,
		search: search,
		prompt: prompt,
		pace:   rate.NewLimiter(rate.Every(DefaultSearchInterval), 1),
		out:    io.Discard,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the strategy chain for one post. Download and search failures
// are absorbed; only operator-channel errors and cancellation are returned.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Outcome, error) {
	slot := draft.SlotName(req.Index)
	num := req.Index + 1
	log := r.logger.With().Int("tweet", num).Logger()

	path, source, err := r.automatic(ctx, req, slot)
	if err != nil {
		return Outcome{}, err
	}

	if path == "" {
		r.say("Failed to get image for tweet %d", num)
		return r.manual(ctx, req.Index, slot)
	}

	r.say("Downloaded image for tweet %d: %s", num, path)
	if req.AutoConfirm {
		return Outcome{Index: req.Index, Path: path, Source: source}, nil
	}

	ok, err := r.prompt.Confirm(ctx, fmt.Sprintf("Use this image for tweet %d? (%s)", num, path))
	if err != nil {
		return Outcome{}, err
	}
	if ok {
		return Outcome{Index: req.Index, Path: path, Source: source}, nil
	}

	log.Info().Str("path", path).Msg("image rejected by operator")
	return r.manual(ctx, req.Index, slot)
}

// automatic tries the custom URL, then search. It returns an empty path when
// both fail.
func (r *Resolver) automatic(ctx context.Context, req Request, slot string) (string, Source, error) {
	num := req.Index + 1
	log := r.logger.With().Int("tweet", num).Logger()

	if u, ok := (draft.Post{CustomURL: req.CustomURL}).CustomImageURL(); ok {
		r.say("Using custom URL for tweet %d", num)
		path, err := r.fetch.Download(ctx, u, r.dir, slot)
		if err == nil {
			return path, SourceCustom, nil
		}
		log.Warn().Err(err).Str("url", u).Msg("custom image url failed, falling back to search")
		r.say("Custom URL failed for tweet %d: %v", num, err)
	}

	if r.search == nil {
		return "", SourceNone, nil
	}

	if err := r.pace.Wait(ctx); err != nil {
		return "", SourceNone, err
	}

	r.say("Searching for image %d: %s", num, req.Query)
	candidate, err := r.search.Search(ctx, req.Query)
	if err != nil {
		if ctx.Err() != nil {
			return "", SourceNone, ctx.Err()
		}
		log.Warn().Err(err).Str("query", req.Query).Msg("image search failed")
		return "", SourceNone, nil
	}

	path, err := r.fetch.Download(ctx, candidate, r.dir, slot)
	if err != nil {
		log.Warn().Err(err).Str("url", candidate).Msg("search result download failed")
		return "", SourceNone, nil
	}
	return path, SourceSearch, nil
}

// manual asks for replacement URLs until one downloads. An empty answer
// skips the post and clears whatever file the slot held.
func (r *Resolver) manual(ctx context.Context, index int, slot string) (Outcome, error) {
	num := index + 1
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		u, err := r.prompt.Ask(ctx, fmt.Sprintf("Enter alternative image URL for tweet %d (or press Enter to skip)", num))
		if err != nil {
			return Outcome{}, err
		}

		if u == "" {
			if err := RemoveSlot(r.dir, slot); err != nil {
				r.logger.Warn().Err(err).Int("tweet", num).Msg("failed to clear skipped slot")
			}
			r.say("Skipping image for tweet %d", num)
			return Outcome{Index: index, Skipped: true, Source: SourceNone}, nil
		}

		path, err := r.fetch.Download(ctx, u, r.dir, slot)
		if err != nil {
			r.say("Could not use that URL: %v", err)
			continue
		}
		r.say("Successfully updated image for tweet %d", num)
		return Outcome{Index: index, Path: path, Source: SourceManual}, nil
	}
}

func (r *Resolver) say(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format+"\n", args...)
}
