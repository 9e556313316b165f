package generator

import (
	"fmt"
	"strings"
)

// Prompt is the message set sent to the model. Topic and Count are carried
// alongside so offline clients can answer without parsing the text.
type Prompt struct {
	System  string
	User    string
	History []Message

	Topic string
	Count int
}

// Message is one prior turn.
type Message struct {
	Role    string
	Content string
}

const threadSystem = "You are a helpful assistant that creates engaging Twitter threads."

// BuildThreadPrompt asks for a numbered thread with one image description per
// tweet.
func BuildThreadPrompt(topic string, count int) Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create an engaging Twitter thread about %s with %d tweets.\n", topic, count)
	sb.WriteString("Requirements:\n")
	fmt.Fprintf(&sb, "- Number each tweet at the start of its first line (1/%d, 2/%d, ...).\n", count, count)
	sb.WriteString("- Each tweet must include an image description in [IMG: description] format. ")
	sb.WriteString("Describe an image that is likely to already exist on the internet; edited images are not an option. ")
	sb.WriteString("If it is about a particular person, include their first and last name.\n")
	sb.WriteString("- Keep every tweet within the character limit.\n")
	sb.WriteString("- The first tweet is a hook: the most interesting fact, a question, or a bold statement.\n")
	sb.WriteString("- Keep facts accurate, and include an interesting story about the topic if there is one.\n")
	sb.WriteString("- Use emojis appropriately.\n")
	sb.WriteString("- Mention any popular upcoming event related to the topic.\n")
	sb.WriteString("- End with a call to action.\n")
	sb.WriteString("Output only the tweets.")

	return Prompt{
		System: threadSystem,
		User:   sb.String(),
		Topic:  topic,
		Count:  count,
	}
}

// BuildRetryPrompt repeats the thread request after a short completion,
// telling the model what went wrong last time.
func BuildRetryPrompt(topic string, count int, prev Thread) Prompt {
	p := BuildThreadPrompt(topic, count)
	if prev.Raw == "" {
		return p
	}
	p.History = []Message{
		{Role: "user", Content: p.User},
		{Role: "assistant", Content: prev.Raw},
	}
	p.User = fmt.Sprintf(
		"That thread stopped after %d of %d tweets, or some tweets had no [IMG: ...] marker. "+
			"Write the complete thread again, all %d tweets, each with its image description.",
		len(prev.Posts), max(prev.DeclaredCount, count), count)
	return p
}
