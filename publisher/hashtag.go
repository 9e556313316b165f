package publisher

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitTrailingTag splits off the last whitespace-delimited token when it is a
// hashtag or mention. ok is false, and content is text unchanged, otherwise.
//
// A trailing tag opens the composer's suggestion overlay, which can swallow
// the next click.
func SplitTrailingTag(text string) (content, tag string, ok bool) {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)

	start := 0
	if i := strings.LastIndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		_, size := utf8.DecodeRuneInString(trimmed[i:])
		start = i + size
	}

	last := trimmed[start:]
	if len(last) < 2 || (last[0] != '#' && last[0] != '@') {
		return text, "", false
	}
	return strings.TrimRightFunc(trimmed[:start], unicode.IsSpace), last, true
}

// fillValue is the value written into a slot. Text ending in a tag is cut
// right after the tag and given one trailing space so the overlay closes; the
// content's own separators are kept.
func fillValue(text string) string {
	if _, _, ok := SplitTrailingTag(text); !ok {
		return text
	}
	return strings.TrimRightFunc(text, unicode.IsSpace) + " "
}
