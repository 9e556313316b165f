package generator

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyCompletion means the model returned nothing usable.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

var (
	// A tweet starts on a line whose first token is "n/N", optionally behind
	// list or emphasis markup.
	markerRe = regexp.MustCompile(`^\s*(?:[-*>#_]+\s*)*(\d{1,3})\s*/\s*(\d{1,3})\b`)
	imageRe  = regexp.MustCompile(`\[IMG:\s*([^\]]*)\]`)
	spaceRe  = regexp.MustCompile(`[ \t]{2,}`)
)

// ParseThread splits a completion into tweets. Blocks without an [IMG: ...]
// marker are dropped. The marker is removed from the tweet text; numbering
// stays in place.
func ParseThread(raw string) (Thread, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Thread{}, ErrEmptyCompletion
	}

	th := Thread{Raw: raw}
	var blocks [][]string
	var current []string

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := markerRe.FindStringSubmatch(line); m != nil {
			if th.DeclaredCount == 0 && m[1] == "1" {
				th.DeclaredCount, _ = strconv.Atoi(m[2])
			}
			if len(current) > 0 {
				blocks = append(blocks, current)
			}
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}

	for _, block := range blocks {
		if post, ok := parseBlock(block); ok {
			th.Posts = append(th.Posts, post)
		}
	}
	return th, nil
}

func parseBlock(lines []string) (Post, bool) {
	text := strings.Join(lines, "\n")
	m := imageRe.FindStringSubmatchIndex(text)
	if m == nil {
		return Post{}, false
	}

	query := strings.TrimSpace(text[m[2]:m[3]])
	body := text[:m[0]] + text[m[1]:]

	var kept []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return Post{Text: strings.Join(kept, "\n"), ImageQuery: query}, true
}
