package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Agent turns a topic into a parsed thread.
type Agent struct {
	llm LLMClient
}

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Generate requests a count-tweet thread on topic. A thread shorter than the
// model itself announced is returned together with an *IncompleteError so the
// caller can decide whether to try again.
func (a *Agent) Generate(ctx context.Context, topic string, count int) (Thread, error) {
	return a.generate(ctx, topic, count, nil)
}

func (a *Agent) generate(ctx context.Context, topic string, count int, prev *Thread) (Thread, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Thread{}, errors.New("topic is required")
	}
	if count <= 0 {
		count = DefaultTweetCount
	}

	prompt := BuildThreadPrompt(topic, count)
	if prev != nil {
		prompt = BuildRetryPrompt(topic, count, *prev)
	}

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return Thread{}, fmt.Errorf("generate thread: %w", err)
	}

	th, err := ParseThread(raw)
	if err != nil {
		return Thread{}, err
	}
	if len(th.Posts) == 0 {
		return th, &IncompleteError{Declared: max(th.DeclaredCount, count), Parsed: 0}
	}
	if th.DeclaredCount > len(th.Posts) {
		return th, &IncompleteError{Declared: th.DeclaredCount, Parsed: len(th.Posts)}
	}
	return th, nil
}
