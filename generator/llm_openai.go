package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM calls any OpenAI-compatible chat completions endpoint.
type OpenAILLM struct {
	model  string
	client openai.Client
}

func NewOpenAILLM(settings LLMSettings, extra ...option.RequestOption) (*OpenAILLM, error) {
	if settings.APIKey == "" {
		return nil, errors.New("llm api key missing")
	}
	if settings.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(settings.APIKey)}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}
	opts = append(opts, extra...)
	return &OpenAILLM{model: settings.Model, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: chatMessages(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func chatMessages(prompt Prompt) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt.History)+2)
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	for _, h := range prompt.History {
		if h.Role == "assistant" {
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(h.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(h.Content))
	}
	return append(msgs, openai.UserMessage(prompt.User))
}
