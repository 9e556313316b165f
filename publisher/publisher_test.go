package publisher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_x_thread_publisher/retry"
)

type attachment struct {
	slot int
	path string
}

// fakeComposer models the composer DOM: text areas appear as the add control
// is clicked, a trailing tag opens the suggestion overlay, and a neutral
// click closes it unless the overlay is stubborn.
type fakeComposer struct {
	sel     Selectors
	present map[string]bool
	slots   int

	values      map[string]string
	attachments []attachment
	clicked     []string

	overlayOpen     bool
	overlayStubborn bool
	overlayOpened   int
	dismissClicks   int

	// noAppend keeps the add control clickable but never renders new slots.
	noAppend bool
}

func newFakeComposer() *fakeComposer {
	sel := DefaultSelectors()
	return &fakeComposer{
		sel: sel,
		present: map[string]bool{
			fmt.Sprintf(sel.TextArea, 0): true,
			sel.AddButton:                true,
			sel.FileInput:                true,
			sel.Submit[0]:                true,
		},
		slots:  1,
		values: map[string]string{},
	}
}

func (f *fakeComposer) Count(_ context.Context, selector string) (int, error) {
	if f.present[selector] {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeComposer) Visible(_ context.Context, selector string) (bool, error) {
	if selector == f.sel.Overlay {
		return f.overlayOpen, nil
	}
	return f.present[selector], nil
}

func (f *fakeComposer) Fill(_ context.Context, selector, value string) error {
	if !f.present[selector] {
		return fmt.Errorf("no element %s", selector)
	}
	f.values[selector] = value
	if _, _, ok := SplitTrailingTag(value); ok {
		f.overlayOpen = true
		f.overlayOpened++
	}
	return nil
}

func (f *fakeComposer) Click(_ context.Context, selector string) error {
	if !f.present[selector] {
		return fmt.Errorf("no element %s", selector)
	}
	f.clicked = append(f.clicked, selector)
	if selector == f.sel.AddButton && !f.noAppend {
		f.present[fmt.Sprintf(f.sel.TextArea, f.slots)] = true
		f.slots++
	}
	return nil
}

func (f *fakeComposer) ClickAt(_ context.Context, _, _ float64) error {
	f.dismissClicks++
	if !f.overlayStubborn {
		f.overlayOpen = false
	}
	return nil
}

func (f *fakeComposer) SetInputFiles(_ context.Context, selector, path string) error {
	if !f.present[selector] {
		return fmt.Errorf("no element %s", selector)
	}
	f.attachments = append(f.attachments, attachment{slot: f.slots - 1, path: path})
	return nil
}

func (f *fakeComposer) count(selector string) int {
	n := 0
	for _, c := range f.clicked {
		if c == selector {
			n++
		}
	}
	return n
}

func newTestPublisher(page Page) (*Publisher, *retry.RecordingClock) {
	clock := &retry.RecordingClock{}
	return New(page, WithClock(clock)), clock
}

func TestPublishThread_ComposesEverySlotInOrder(t *testing.T) {
	page := newFakeComposer()
	pub, clock := newTestPublisher(page)

	res, err := pub.PublishThread(context.Background(), []Post{
		{Text: "1/3 first", ImagePath: "/imgs/tweet_0.png"},
		{Text: "2/3 second"},
		{Text: "3/3 third", ImagePath: "/imgs/tweet_2.jpg"},
	})

	require.NoError(t, err)
	assert.Equal(t, Submitted, res.State)
	assert.Equal(t, 3, res.Slots)
	assert.Empty(t, res.Hazards)

	assert.Equal(t, "1/3 first", page.values[`[data-testid="tweetTextarea_0"]`])
	assert.Equal(t, "2/3 second", page.values[`[data-testid="tweetTextarea_1"]`])
	assert.Equal(t, "3/3 third", page.values[`[data-testid="tweetTextarea_2"]`])

	assert.Equal(t, []attachment{
		{slot: 0, path: "/imgs/tweet_0.png"},
		{slot: 2, path: "/imgs/tweet_2.jpg"},
	}, page.attachments, "gaps stay gaps")

	assert.Equal(t, 2, page.count(page.sel.AddButton))
	assert.Equal(t, 1, page.count(page.sel.Submit[0]))

	sleeps := clock.Sleeps()
	assert.Equal(t, 3*time.Second, sleeps[len(sleeps)-1], "submit settles last")
	assert.Equal(t, 2*3*time.Second+3*time.Second+3*time.Second, clock.Total(),
		"two uploads, three slot delays, one submit settle")
}

func TestPublishThread_TrailingHashtag(t *testing.T) {
	page := newFakeComposer()
	pub, _ := newTestPublisher(page)

	res, err := pub.PublishThread(context.Background(), []Post{{Text: "Check this out #cool"}})

	require.NoError(t, err)
	assert.Equal(t, "Check this out #cool ", page.values[`[data-testid="tweetTextarea_0"]`])
	assert.Equal(t, 1, page.overlayOpened, "fill opened the overlay")
	assert.Equal(t, 1, page.dismissClicks)
	assert.False(t, page.overlayOpen)
	assert.Empty(t, res.Hazards)
	assert.Equal(t, Submitted, res.State)
}

func TestPublishThread_StubbornOverlayIsRecorded(t *testing.T) {
	page := newFakeComposer()
	page.overlayStubborn = true
	pub, _ := newTestPublisher(page)

	res, err := pub.PublishThread(context.Background(), []Post{
		{Text: "plain"},
		{Text: "ends with @gopher"},
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Hazards)
	assert.Equal(t, Submitted, res.State, "composition continues past an undismissable overlay")
	assert.Equal(t, 2, page.dismissClicks, "once after the fill and once before submit")
}

func TestPublishThread_SlotNeverAppears(t *testing.T) {
	page := newFakeComposer()
	page.noAppend = true
	pub, clock := newTestPublisher(page)

	res, err := pub.PublishThread(context.Background(), []Post{{Text: "one"}, {Text: "two"}})

	var nf *ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, `[data-testid="tweetTextarea_1"]`, nf.Selector)
	assert.Equal(t, 1, nf.Slot)
	assert.Equal(t, 10, nf.Attempts)
	assert.Equal(t, FirstSlotComposed, res.State, "append did not complete")
	assert.Equal(t, 1, res.Slots)
	assert.Zero(t, page.count(page.sel.Submit[0]), "never submits a partial thread")

	var waits int
	for _, d := range clock.Sleeps() {
		if d == time.Second {
			waits++
		}
	}
	assert.Equal(t, 1+9, waits, "slot delay plus nine polling delays")
}

func TestPublishThread_MissingFirstSlot(t *testing.T) {
	page := newFakeComposer()
	delete(page.present, `[data-testid="tweetTextarea_0"]`)
	pub, _ := newTestPublisher(page)

	res, err := pub.PublishThread(context.Background(), []Post{{Text: "one"}})

	var nf *ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 0, nf.Slot)
	assert.Equal(t, Idle, res.State)
}

func TestPublishThread_SubmitStrategies(t *testing.T) {
	sel := DefaultSelectors()

	tests := []struct {
		name    string
		present []string
		want    string
	}{
		{name: "primary", present: []string{sel.Submit[0], sel.Submit[2]}, want: sel.Submit[0]},
		{name: "inline fallback", present: []string{sel.Submit[1]}, want: sel.Submit[1]},
		{name: "text fallback", present: []string{sel.Submit[2]}, want: sel.Submit[2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakeComposer()
			for _, s := range sel.Submit {
				delete(page.present, s)
			}
			for _, s := range tt.present {
				page.present[s] = true
			}
			pub, _ := newTestPublisher(page)

			res, err := pub.PublishThread(context.Background(), []Post{{Text: "hi"}})

			require.NoError(t, err)
			assert.Equal(t, Submitted, res.State)
			assert.Equal(t, 1, page.count(tt.want))
			for _, s := range sel.Submit {
				if s != tt.want {
					assert.Zero(t, page.count(s))
				}
			}
		})
	}
}

func TestPublishThread_SubmitExhausted(t *testing.T) {
	page := newFakeComposer()
	for _, s := range page.sel.Submit {
		delete(page.present, s)
	}
	pub, _ := newTestPublisher(page)

	res, err := pub.PublishThread(context.Background(), []Post{{Text: "hi"}})

	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, DefaultSelectors().Submit, se.Tried)
	assert.Contains(t, se.Error(), "tweetButtonInline")
	assert.Equal(t, ReadyToSubmit, res.State)
}

func TestPublishThread_Empty(t *testing.T) {
	pub, _ := newTestPublisher(newFakeComposer())
	_, err := pub.PublishThread(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyThread)
}

func TestPublishThread_Cancelled(t *testing.T) {
	page := newFakeComposer()
	page.noAppend = true
	pub, _ := newTestPublisher(page)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pub.PublishThread(ctx, []Post{{Text: "one"}, {Text: "two"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	var nf *ElementNotFoundError
	assert.False(t, errors.As(err, &nf))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "submitted", Submitted.String())
	assert.Equal(t, "slot-appended", SlotAppended.String())
	assert.Equal(t, "state(42)", State(42).String())
}
