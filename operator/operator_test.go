package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScript_Confirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{answer: "y", want: true},
		{answer: "YES", want: true},
		{answer: " yes ", want: true},
		{answer: "n", want: false},
		{answer: "", want: false},
		{answer: "sure", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			s := NewScript(tt.answer)
			got, err := s.Confirm(context.Background(), "Proceed?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScript_AskInOrder(t *testing.T) {
	s := NewScript("https://example.com/a.png ", "")
	ctx := context.Background()

	first, err := s.Ask(ctx, "url 1")
	require.NoError(t, err)
	second, err := s.Ask(ctx, "url 2")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/a.png", first)
	assert.Empty(t, second)
	assert.Equal(t, []string{"url 1", "url 2"}, s.Questions())
	assert.Zero(t, s.Remaining())
}

func TestScript_Exhausted(t *testing.T) {
	s := NewScript()
	_, err := s.Ask(context.Background(), "anything?")
	require.ErrorIs(t, err, ErrNoAnswer)
}
