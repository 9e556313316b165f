// Package publisher drives the web composer to assemble and submit a
// multi-post thread.
//
// Composition is a small state machine:
//
//	Idle -> FirstSlotComposed -> (SlotAppended -> SlotComposed)* -> ReadyToSubmit -> Submitted
//
// Every wait is bounded and every delay goes through an injected retry.Clock.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"auto_x_thread_publisher/retry"
)

// ErrEmptyThread is returned when asked to publish zero posts.
var ErrEmptyThread = errors.New("thread has no posts")

// Page is the slice of a browser page the composer needs.
type Page interface {
	Count(ctx context.Context, selector string) (int, error)
	Visible(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	ClickAt(ctx context.Context, x, y float64) error
	SetInputFiles(ctx context.Context, selector, path string) error
}

// Post is one slot's content. An empty ImagePath is an explicit gap.
type Post struct {
	Text      string
	ImagePath string
}

// State is the composer's progress through a thread.
type State int

const (
	Idle State = iota
	FirstSlotComposed
	SlotAppended
	SlotComposed
	ReadyToSubmit
	Submitted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FirstSlotComposed:
		return "first-slot-composed"
	case SlotAppended:
		return "slot-appended"
	case SlotComposed:
		return "slot-composed"
	case ReadyToSubmit:
		return "ready-to-submit"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result reports how far a publish pass got. It is returned alongside errors
// so callers can tell where composition stopped.
type Result struct {
	State State
	Slots int
	// Hazards lists slot indexes whose suggestion overlay could not be
	// dismissed.
	Hazards []int
}

// Selectors locates composer controls. TextArea is a format string taking the
// slot index.
type Selectors struct {
	TextArea  string
	AddButton string
	FileInput string
	Overlay   string
	// DismissX and DismissY are a neutral page point clicked to close the
	// suggestion overlay.
	DismissX float64
	DismissY float64
	// Submit is tried in order; the first control that exists and clicks wins.
	Submit []string
}

// DefaultSelectors matches the current X composer.
func DefaultSelectors() Selectors {
	return Selectors{
		TextArea:  `[data-testid="tweetTextarea_%d"]`,
		AddButton: `[data-testid="addButton"]`,
		FileInput: `input[data-testid="fileInput"]`,
		Overlay:   `div[role="listbox"]`,
		DismissX:  8,
		DismissY:  8,
		Submit: []string{
			`[data-testid="tweetButton"]`,
			`[data-testid="tweetButtonInline"]`,
			`text="Post all"`,
		},
	}
}

// Timings bounds every wait the composer performs.
type Timings struct {
	ElementAttempts int
	ElementDelay    time.Duration
	SlotDelay       time.Duration
	UploadSettle    time.Duration
	SubmitAttempts  int
	SubmitDelay     time.Duration
	SubmitSettle    time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ElementAttempts: 10,
		ElementDelay:    time.Second,
		SlotDelay:       time.Second,
		UploadSettle:    3 * time.Second,
		SubmitAttempts:  3,
		SubmitDelay:     time.Second,
		SubmitSettle:    3 * time.Second,
	}
}

// ElementNotFoundError means a composer control never appeared within its
// attempt budget.
type ElementNotFoundError struct {
	Selector string
	Slot     int
	Attempts int
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element %s for slot %d not found after %d attempts", e.Selector, e.Slot, e.Attempts)
}

// SubmissionError means every submit strategy failed.
type SubmissionError struct {
	Tried []string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("could not submit thread (tried %s): %v", strings.Join(e.Tried, ", "), e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Publisher composes threads on a single page. It is not safe for concurrent
// use; the page belongs to whoever holds the browser session.
type Publisher struct {
	page   Page
	sel    Selectors
	timing Timings
	clock  retry.Clock
	out    io.Writer
	logger zerolog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithSelectors(s Selectors) Option { return func(p *Publisher) { p.sel = s } }

func WithTimings(t Timings) Option { return func(p *Publisher) { p.timing = t } }

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c retry.Clock) Option { return func(p *Publisher) { p.clock = c } }

// WithOutput sets where operator-facing progress lines go.
func WithOutput(w io.Writer) Option { return func(p *Publisher) { p.out = w } }

func WithLogger(l zerolog.Logger) Option { return func(p *Publisher) { p.logger = l } }

// New creates a Publisher bound to page.
func New(page Page, opts ...Option) *Publisher {
	p := &Publisher{
		page:   page,
		sel:    DefaultSelectors(),
		timing: DefaultTimings(),
		clock:  retry.RealClock{},
		out:    io.Discard,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) infof(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Publisher) elementPolicy() retry.Policy {
	return retry.Policy{Attempts: p.timing.ElementAttempts, Delay: p.timing.ElementDelay, Clock: p.clock}
}

// PublishThread composes every post into its own slot, in order, and submits
// the thread. On error the returned Result holds the state reached.
func (p *Publisher) PublishThread(ctx context.Context, posts []Post) (Result, error) {
	res := Result{State: Idle}
	if len(posts) == 0 {
		return res, ErrEmptyThread
	}

	for i, post := range posts {
		if i > 0 {
			if err := p.appendSlot(ctx, i); err != nil {
				return res, err
			}
			res.State = SlotAppended
		}

		hazard, err := p.compose(ctx, i, post)
		if err != nil {
			return res, err
		}
		if hazard {
			res.Hazards = append(res.Hazards, i)
		}

		res.Slots++
		if i == 0 {
			res.State = FirstSlotComposed
		} else {
			res.State = SlotComposed
		}
		p.infof("Composed tweet %d/%d", i+1, len(posts))

		if err := p.clock.Sleep(ctx, p.timing.SlotDelay); err != nil {
			return res, err
		}
	}

	stuck, err := p.dismissOverlay(ctx)
	if err != nil {
		return res, err
	}
	if stuck {
		p.logger.Warn().Msg("suggestion overlay still open before submit")
	}
	res.State = ReadyToSubmit

	if err := p.submit(ctx); err != nil {
		return res, err
	}
	if err := p.clock.Sleep(ctx, p.timing.SubmitSettle); err != nil {
		return res, err
	}
	res.State = Submitted
	p.logger.Info().Int("slots", res.Slots).Ints("hazards", res.Hazards).Msg("thread submitted")
	p.infof("Thread posted (%d tweets)", res.Slots)
	return res, nil
}

// appendSlot clicks the add control and waits for the new slot's text area.
func (p *Publisher) appendSlot(ctx context.Context, slot int) error {
	policy := p.elementPolicy()
	err := policy.Do(ctx, func(ctx context.Context) error {
		return p.page.Click(ctx, p.sel.AddButton)
	})
	if err != nil {
		return p.notFound(err, p.sel.AddButton, slot)
	}
	return p.waitFor(ctx, p.textArea(slot), slot)
}

// compose fills one slot and attaches its image. It reports whether the
// suggestion overlay stayed open after the fill.
func (p *Publisher) compose(ctx context.Context, slot int, post Post) (bool, error) {
	area := p.textArea(slot)
	if slot == 0 {
		if err := p.waitFor(ctx, area, slot); err != nil {
			return false, err
		}
	}

	if err := p.page.Fill(ctx, area, fillValue(post.Text)); err != nil {
		return false, fmt.Errorf("fill slot %d: %w", slot, err)
	}

	stuck, err := p.dismissOverlay(ctx)
	if err != nil {
		return false, err
	}
	if stuck {
		p.logger.Warn().Int("slot", slot).Msg("suggestion overlay could not be dismissed")
	}

	if post.ImagePath == "" {
		return stuck, nil
	}

	policy := p.elementPolicy()
	err = policy.Do(ctx, func(ctx context.Context) error {
		return p.page.SetInputFiles(ctx, p.sel.FileInput, post.ImagePath)
	})
	if err != nil {
		return stuck, p.notFound(err, p.sel.FileInput, slot)
	}
	p.logger.Debug().Int("slot", slot).Str("image", post.ImagePath).Msg("image attached")
	return stuck, p.clock.Sleep(ctx, p.timing.UploadSettle)
}

// dismissOverlay closes the suggestion overlay if it is showing. It returns
// true when the overlay is still visible afterwards.
func (p *Publisher) dismissOverlay(ctx context.Context) (bool, error) {
	open, err := p.page.Visible(ctx, p.sel.Overlay)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Debug().Err(err).Msg("overlay check failed")
		return false, nil
	}
	if !open {
		return false, nil
	}

	if err := p.page.ClickAt(ctx, p.sel.DismissX, p.sel.DismissY); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Debug().Err(err).Msg("overlay dismiss click failed")
	}

	open, err = p.page.Visible(ctx, p.sel.Overlay)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return open, nil
}

func (p *Publisher) submit(ctx context.Context) error {
	policy := retry.Policy{Attempts: p.timing.SubmitAttempts, Delay: p.timing.SubmitDelay, Clock: p.clock}
	err := policy.Do(ctx, func(ctx context.Context) error {
		var errs []error
		for _, sel := range p.sel.Submit {
			n, err := p.page.Count(ctx, sel)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", sel, err))
				continue
			}
			if n == 0 {
				errs = append(errs, fmt.Errorf("%s: not present", sel))
				continue
			}
			if err := p.page.Click(ctx, sel); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", sel, err))
				continue
			}
			p.logger.Info().Str("locator", sel).Msg("submit clicked")
			return nil
		}
		return errors.Join(errs...)
	})
	if err == nil {
		return nil
	}

	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		return err
	}
	return &SubmissionError{
		Tried: append([]string(nil), p.sel.Submit...),
		Err:   exhausted.Last,
	}
}

func (p *Publisher) waitFor(ctx context.Context, selector string, slot int) error {
	err := retry.Until(ctx, p.elementPolicy(), func(ctx context.Context) (bool, error) {
		n, err := p.page.Count(ctx, selector)
		return n > 0, err
	})
	if err != nil {
		return p.notFound(err, selector, slot)
	}
	return nil
}

// notFound converts policy exhaustion into an ElementNotFoundError and passes
// anything else (cancellation) through.
func (p *Publisher) notFound(err error, selector string, slot int) error {
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		return err
	}
	p.logger.Error().Err(exhausted.Last).Str("selector", selector).Int("slot", slot).Msg("composer element missing")
	return &ElementNotFoundError{Selector: selector, Slot: slot, Attempts: exhausted.Attempts}
}

func (p *Publisher) textArea(slot int) string {
	return fmt.Sprintf(p.sel.TextArea, slot)
}
