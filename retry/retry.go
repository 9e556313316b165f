// Package retry runs bounded, fixed-delay retries for UI waits and other
// operations whose failure is usually transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Clock sleeps between attempts. Tests swap in a RecordingClock so that
// exhausting a policy costs no wall time.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock and wakes early on context cancellation.
type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordingClock never sleeps; it only records the requested durations.
type RecordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *RecordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns a copy of every duration passed to Sleep.
func (c *RecordingClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Total is the sum of all recorded sleeps.
func (c *RecordingClock) Total() time.Duration {
	var total time.Duration
	for _, d := range c.Sleeps() {
		total += d
	}
	return total
}

// Policy is a fixed attempt budget with a constant delay between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Clock    Clock
}

// ErrConditionUnmet is the last error reported by Until when the condition
// simply never became true.
var ErrConditionUnmet = errors.New("condition not met")

// ExhaustedError is returned once every attempt of a policy has failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p Policy) clock() Clock {
	if p.Clock == nil {
		return RealClock{}
	}
	return p.Clock
}

// Do calls op until it returns nil or the attempt budget runs out. There is no
// sleep after the final attempt. Context errors stop the loop immediately and
// are returned unwrapped.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	n := p.attempts()
	var last error
	for attempt := 1; attempt <= n; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = op(ctx)
		if last == nil {
			return nil
		}
		if attempt == n {
			break
		}
		if err := p.clock().Sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: n, Last: last}
}

// Until polls cond with the policy's budget. A cond error counts as a failed
// poll, not a fatal one: browsers report "not attached yet" as errors.
func Until(ctx context.Context, p Policy, cond func(ctx context.Context) (bool, error)) error {
	return p.Do(ctx, func(ctx context.Context) error {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConditionUnmet
		}
		return nil
	})
}
