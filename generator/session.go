package generator

import (
	"context"
	"errors"
	"time"
)

// Session holds the attempts made for one topic so that a retry can show the
// model its previous, short answer.
type Session struct {
	Topic    string
	Count    int
	Thread   Thread
	Attempts []Attempt

	agent *Agent
	now   func() time.Time
}

// NewSession creates a session; nothing is generated yet.
func NewSession(topic string, count int, agent *Agent) *Session {
	return &Session{
		Topic: topic,
		Count: count,
		agent: agent,
		now:   time.Now,
	}
}

// Propose runs the first generation.
func (s *Session) Propose(ctx context.Context) (Thread, error) {
	return s.record(s.agent.generate(ctx, s.Topic, s.Count, nil))
}

// Retry generates again, feeding back the previous completion when there is
// one.
func (s *Session) Retry(ctx context.Context) (Thread, error) {
	if len(s.Attempts) == 0 {
		return s.Propose(ctx)
	}
	prev := s.Thread
	return s.record(s.agent.generate(ctx, s.Topic, s.Count, &prev))
}

func (s *Session) record(th Thread, err error) (Thread, error) {
	a := Attempt{
		Declared:  th.DeclaredCount,
		Parsed:    len(th.Posts),
		Err:       err,
		CreatedAt: s.now(),
	}
	var inc *IncompleteError
	if errors.As(err, &inc) {
		a.Declared = inc.Declared
	}
	s.Attempts = append(s.Attempts, a)
	if th.Raw != "" {
		s.Thread = th
	}
	return th, err
}
