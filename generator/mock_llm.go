package generator

import (
	"context"
	"fmt"
	"strings"
)

// MockLLM writes a well-formed thread without calling any service, for
// offline runs.
type MockLLM struct{}

func (MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	n := prompt.Count
	if n <= 0 {
		n = DefaultTweetCount
	}
	topic := prompt.Topic
	if topic == "" {
		topic = "this topic"
	}

	var sb strings.Builder
	for i := 1; i <= n; i++ {
		switch i {
		case 1:
			fmt.Fprintf(&sb, "%d/%d Here is why %s deserves a closer look 🧵\n", i, n, topic)
		case n:
			fmt.Fprintf(&sb, "%d/%d What do you think about %s? Reply below 👇\n", i, n, topic)
		default:
			fmt.Fprintf(&sb, "%d/%d Point %d about %s.\n", i, n, i-1, topic)
		}
		fmt.Fprintf(&sb, "[IMG: %s photo %d]\n\n", topic, i)
	}
	return sb.String(), nil
}
