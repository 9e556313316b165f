package generator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThread(t *testing.T) {
	raw := `Here's your thread:

1/3 Let's talk about UFC gloves! 🥊
[IMG: UFC 1 bare knuckle fight]

2/3 Early fighters went bare-knuckle.
No gloves, no rules! [IMG: Royce Gracie UFC 1]  Wild times.

**3/3** Follow for more #MMA
[IMG: modern UFC gloves]
`

	th, err := ParseThread(raw)
	require.NoError(t, err)

	assert.Equal(t, 3, th.DeclaredCount)
	require.Len(t, th.Posts, 3)
	assert.Equal(t, Post{Text: "1/3 Let's talk about UFC gloves! 🥊", ImageQuery: "UFC 1 bare knuckle fight"}, th.Posts[0])
	assert.Equal(t, "2/3 Early fighters went bare-knuckle.\nNo gloves, no rules! Wild times.", th.Posts[1].Text)
	assert.Equal(t, "Royce Gracie UFC 1", th.Posts[1].ImageQuery)
	assert.Equal(t, "**3/3** Follow for more #MMA", th.Posts[2].Text)
}

func TestParseThread_DropsBlocksWithoutImage(t *testing.T) {
	raw := "1/5 one [IMG: a]\n2/5 two\n3/5 three [IMG: c]"

	th, err := ParseThread(raw)
	require.NoError(t, err)

	assert.Equal(t, 5, th.DeclaredCount)
	require.Len(t, th.Posts, 2)
	assert.Equal(t, "3/5 three", th.Posts[1].Text)
}

func TestParseThread_TwoDigitNumbers(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&sb, "%d/12 tweet [IMG: q%d]\n", i, i)
	}
	raw := sb.String()

	th, err := ParseThread(raw)
	require.NoError(t, err)

	assert.Equal(t, 12, th.DeclaredCount)
	require.Len(t, th.Posts, 12)
	assert.Equal(t, "q11", th.Posts[10].ImageQuery)
}

func TestParseThread_Unnumbered(t *testing.T) {
	th, err := ParseThread("just one tweet [IMG: gopher]")
	require.NoError(t, err)
	assert.Zero(t, th.DeclaredCount)
	require.Len(t, th.Posts, 1)
	assert.Equal(t, "just one tweet", th.Posts[0].Text)
}

func TestParseThread_Empty(t *testing.T) {
	_, err := ParseThread("  \n ")
	require.ErrorIs(t, err, ErrEmptyCompletion)
}
