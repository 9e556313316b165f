// Package thread runs the end-to-end workflows: generate, review, resolve
// images and publish a new thread, or publish a draft that already exists.
package thread

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"auto_x_thread_publisher/browser"
	"auto_x_thread_publisher/draft"
	"auto_x_thread_publisher/generator"
	"auto_x_thread_publisher/imagefind"
	"auto_x_thread_publisher/operator"
	"auto_x_thread_publisher/publisher"
)

const (
	ownerResolver  = "resolver"
	ownerPublisher = "publisher"
)

// Launcher opens the browser session for one workflow.
type Launcher func(ctx context.Context) (*browser.Session, error)

// Resolver resolves one post's image.
type Resolver interface {
	Resolve(ctx context.Context, req imagefind.Request) (imagefind.Outcome, error)
}

// ResolverFactory builds a resolver writing into imagesDir and searching on
// page.
type ResolverFactory func(imagesDir string, page browser.Page) Resolver

// Publisher composes and submits a thread.
type Publisher interface {
	PublishThread(ctx context.Context, posts []publisher.Post) (publisher.Result, error)
}

// PublisherFactory builds a publisher driving page.
type PublisherFactory func(page browser.Page) Publisher

// Deps are the collaborators a Manager needs. Agent may be nil when only
// PublishExisting is used.
type Deps struct {
	Store     *draft.Store
	Agent     *generator.Agent
	Prompter  operator.Prompter
	Launch    Launcher
	Resolver  ResolverFactory
	Publisher PublisherFactory
}

// Result describes how a workflow ended.
type Result struct {
	ThreadID string
	// Declined is set when the operator stopped at a gate. Nothing after the
	// gate ran.
	Declined bool
	Images   []imagefind.Outcome
	// ImagesAttached counts the posts handed to the publisher with an image.
	ImagesAttached int
	Publish        publisher.Result
}

// Manager runs one workflow at a time.
type Manager struct {
	deps        Deps
	count       int
	autoConfirm bool
	homeURL     string
	render      func(src []byte) (string, error)
	out         io.Writer
	logger      zerolog.Logger
}

type Option func(*Manager)

// WithTweetCount sets how many tweets to ask the generator for.
func WithTweetCount(n int) Option { return func(m *Manager) { m.count = n } }

// WithAutoConfirm accepts automatically found images without asking.
func WithAutoConfirm(v bool) Option { return func(m *Manager) { m.autoConfirm = v } }

// WithHomeURL is where the page is sent before composing.
func WithHomeURL(u string) Option { return func(m *Manager) { m.homeURL = u } }

// WithRenderer sets how the draft is shown at the review gate.
func WithRenderer(fn func(src []byte) (string, error)) Option {
	return func(m *Manager) { m.render = fn }
}

func WithOutput(w io.Writer) Option { return func(m *Manager) { m.out = w } }

func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.logger = l } }

func NewManager(deps Deps, opts ...Option) (*Manager, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("draft store is required")
	case deps.Prompter == nil:
		return nil, errors.New("prompter is required")
	case deps.Launch == nil:
		return nil, errors.New("browser launcher is required")
	case deps.Resolver == nil:
		return nil, errors.New("resolver factory is required")
	case deps.Publisher == nil:
		return nil, errors.New("publisher factory is required")
	}

	m := &Manager{
		deps:   deps,
		count:  generator.DefaultTweetCount,
		render: func(src []byte) (string, error) { return Preview(src, DefaultStyle, DefaultWidth) },
		out:    io.Discard,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateAndPublish generates a thread on topic, saves it for review and,
// once the operator accepts, resolves images and publishes it.
func (m *Manager) CreateAndPublish(ctx context.Context, topic string) (Result, error) {
	if m.deps.Agent == nil {
		return Result{}, errors.New("no generator configured")
	}

	m.say("Generating thread about: %s", topic)
	th, err := m.generate(ctx, topic)
	if err != nil {
		return Result{}, err
	}

	posts := make([]draft.Post, len(th.Posts))
	for i, p := range th.Posts {
		posts[i] = draft.NewPost(p.Text, p.ImageQuery)
	}
	id, err := m.deps.Store.Save(topic, posts)
	if err != nil {
		return Result{}, fmt.Errorf("save draft: %w", err)
	}
	res := Result{ThreadID: id}
	log := m.logger.With().Str("thread", id).Logger()
	log.Info().Int("posts", len(posts)).Msg("draft saved")

	ok, err := m.review(ctx, id)
	if err != nil {
		return res, err
	}
	if !ok {
		log.Info().Msg("draft declined at review")
		res.Declined = true
		return res, nil
	}

	t, err := m.deps.Store.Load(id)
	if err != nil {
		return res, err
	}

	sess, err := m.deps.Launch(ctx)
	if err != nil {
		return res, fmt.Errorf("open browser: %w", err)
	}
	defer m.closeSession(sess)

	res.Images, err = m.resolveImages(ctx, sess, t)
	if err != nil {
		return res, err
	}

	return m.publish(ctx, sess, t, slotPaths(len(t.Posts), res.Images), res)
}

// PublishExisting publishes a saved draft with whatever images its slots
// already hold. Nothing is generated or resolved.
func (m *Manager) PublishExisting(ctx context.Context, id string) (Result, error) {
	t, err := m.deps.Store.Load(id)
	if err != nil {
		return Result{}, err
	}
	res := Result{ThreadID: t.ID}

	if t.Status == draft.StatusPublished {
		again, err := m.deps.Prompter.Confirm(ctx, fmt.Sprintf("Thread %s is already published. Publish it again?", t.ID))
		if err != nil {
			return res, err
		}
		if !again {
			res.Declined = true
			return res, nil
		}
	}

	images, err := m.deps.Store.ListImages(t.ID)
	if err != nil {
		return res, err
	}
	paths := make([]string, len(t.Posts))
	for _, img := range images {
		if img.Index >= len(paths) {
			m.logger.Warn().Str("path", img.Path).Msg("image has no matching tweet, ignoring")
			continue
		}
		if paths[img.Index] != "" {
			m.logger.Warn().Str("path", img.Path).Int("tweet", img.Index+1).Msg("duplicate slot image, keeping the first")
			continue
		}
		paths[img.Index] = img.Path
	}

	sess, err := m.deps.Launch(ctx)
	if err != nil {
		return res, fmt.Errorf("open browser: %w", err)
	}
	defer m.closeSession(sess)

	return m.publish(ctx, sess, t, paths, res)
}

// generate asks the operator before every retry of an incomplete thread.
// Nothing is persisted until a complete thread comes back.
func (m *Manager) generate(ctx context.Context, topic string) (generator.Thread, error) {
	gs := generator.NewSession(topic, m.count, m.deps.Agent)
	th, err := gs.Propose(ctx)
	for {
		var inc *generator.IncompleteError
		if !errors.As(err, &inc) {
			break
		}
		m.logger.Warn().Int("declared", inc.Declared).Int("parsed", inc.Parsed).Int("attempt", len(gs.Attempts)).
			Msg("incomplete thread generated")
		m.say("Thread generation incomplete: expected %d tweets but only got %d", inc.Declared, inc.Parsed)

		again, perr := m.deps.Prompter.Confirm(ctx, "Would you like to try generating the thread again?")
		if perr != nil {
			return generator.Thread{}, perr
		}
		if !again {
			return generator.Thread{}, err
		}
		th, err = gs.Retry(ctx)
	}
	if err != nil {
		return generator.Thread{}, err
	}
	return th, nil
}

func (m *Manager) review(ctx context.Context, id string) (bool, error) {
	path := m.deps.Store.DocumentPath(id)
	m.say("\nThread preview saved to: %s", m.deps.Store.Dir(id))
	m.say("Please review the thread content and image queries.")
	m.say("You can edit %s directly to make changes.", path)

	if src, err := os.ReadFile(path); err == nil {
		if rendered, err := m.render(src); err == nil {
			m.say("%s", rendered)
		} else {
			m.logger.Debug().Err(err).Msg("preview render failed")
		}
	}

	return m.deps.Prompter.Confirm(ctx, "Proceed with this thread?")
}

func (m *Manager) resolveImages(ctx context.Context, sess *browser.Session, t draft.Thread) ([]imagefind.Outcome, error) {
	page, err := sess.Acquire(ownerResolver)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Release(ownerResolver) }()

	r := m.deps.Resolver(m.deps.Store.ImagesDir(t.ID), page)
	outcomes := make([]imagefind.Outcome, 0, len(t.Posts))
	for _, p := range t.Posts {
		out, err := r.Resolve(ctx, imagefind.Request{
			Index:       p.Index,
			Query:       p.ImageQuery,
			CustomURL:   p.CustomURL,
			AutoConfirm: m.autoConfirm,
		})
		if err != nil {
			return outcomes, fmt.Errorf("resolve image for tweet %d: %w", p.Index+1, err)
		}
		m.logger.Info().Int("tweet", p.Index+1).Str("source", string(out.Source)).Bool("skipped", out.Skipped).
			Msg("image resolved")
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (m *Manager) publish(ctx context.Context, sess *browser.Session, t draft.Thread, paths []string, res Result) (Result, error) {
	page, err := sess.Acquire(ownerPublisher)
	if err != nil {
		return res, err
	}
	defer func() { _ = sess.Release(ownerPublisher) }()

	if m.homeURL != "" {
		if err := page.Goto(ctx, m.homeURL); err != nil {
			return res, err
		}
	}

	posts := make([]publisher.Post, len(t.Posts))
	for i, p := range t.Posts {
		posts[i] = publisher.Post{Text: p.Text, ImagePath: paths[i]}
		if paths[i] != "" {
			res.ImagesAttached++
		}
	}

	m.say("Posting thread...")
	res.Publish, err = m.deps.Publisher(page).PublishThread(ctx, posts)
	if err != nil {
		m.logger.Error().Err(err).Str("thread", t.ID).Str("state", res.Publish.State.String()).Msg("publish failed")
		return res, err
	}

	if err := m.deps.Store.MarkPublished(t.ID); err != nil {
		return res, fmt.Errorf("mark published: %w", err)
	}
	m.logger.Info().Str("thread", t.ID).Msg("thread published")
	return res, nil
}

func (m *Manager) closeSession(sess *browser.Session) {
	if err := sess.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("closing browser")
	}
}

func (m *Manager) say(format string, args ...any) {
	_, _ = fmt.Fprintf(m.out, format+"\n", args...)
}

// slotPaths lays outcomes out by index; skipped posts stay empty.
func slotPaths(n int, outcomes []imagefind.Outcome) []string {
	paths := make([]string, n)
	for _, o := range outcomes {
		if o.Resolved() && o.Index >= 0 && o.Index < n {
			paths[o.Index] = o.Path
		}
	}
	return paths
}
