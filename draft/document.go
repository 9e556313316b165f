package draft

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	createdLayout = "2006-01-02 15:04:05"

	labelImageQuery = "**Image Query:**"
	labelCustomURL  = "**Custom Image URL:**"
)

var (
	tweetHeadingRe = regexp.MustCompile(`^Tweet\s+(\d+)$`)
	statusLineRe   = regexp.MustCompile(`(?m)^- Status: .*$`)
)

// render writes the document for t. Custom URLs are written back when set so
// that re-rendering an edited draft is lossless.
func render(t Thread) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Thread: %s\n\n", oneLine(t.Topic))
	b.WriteString("## Configuration\n")
	fmt.Fprintf(&b, "- Status: %s\n", t.Status)
	fmt.Fprintf(&b, "- Created: %s\n", t.CreatedAt.Format(createdLayout))
	fmt.Fprintf(&b, "- Thread ID: %s\n\n", t.ID)

	b.WriteString("## Content\n")
	for i, p := range t.Posts {
		fence := fenceFor(p.Text)
		fmt.Fprintf(&b, "\n### Tweet %d\n", i+1)
		fmt.Fprintf(&b, "%stext\n%s\n%s\n", fence, p.Text, fence)
		fmt.Fprintf(&b, "\n%s %s\n", labelImageQuery, lineBreaks.Replace(p.ImageQuery))
		custom, _ := p.CustomImageURL()
		fmt.Fprintf(&b, "%s %s\n", labelCustomURL, custom)
	}
	return b.Bytes()
}

// fenceFor returns a backtick fence longer than any backtick run in s, so
// tweet text can never close its own block.
func fenceFor(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

// lineBreaks keeps a value on its label line without touching any other
// whitespace.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// section accumulates one "### Tweet N" block while walking the document.
type section struct {
	post     Post
	hasText  bool
	hasQuery bool
}

func (s *section) finish() (Post, error) {
	switch {
	case !s.hasText:
		return Post{}, &ParseError{Section: s.post.Index, Reason: "missing fenced tweet text block"}
	case !s.hasQuery:
		return Post{}, &ParseError{Section: s.post.Index, Reason: "missing " + labelImageQuery + " line"}
	}
	return s.post, nil
}

// parse reads a document produced by render and possibly edited by hand.
func parse(src []byte) (Thread, error) {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var (
		t        Thread
		hasTopic bool
		cur      *section
	)

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(linesText(node.Lines(), src))
			if node.Level == 1 && cur == nil && strings.HasPrefix(title, "Thread:") {
				t.Topic = strings.TrimSpace(strings.TrimPrefix(title, "Thread:"))
				hasTopic = true
				continue
			}
			if node.Level != 3 {
				continue
			}
			m := tweetHeadingRe.FindStringSubmatch(title)
			if m == nil {
				continue
			}
			if cur != nil {
				p, err := cur.finish()
				if err != nil {
					return Thread{}, err
				}
				t.Posts = append(t.Posts, p)
			}
			idx := len(t.Posts)
			if num, _ := strconv.Atoi(m[1]); num != idx+1 {
				return Thread{}, &ParseError{
					Section: idx,
					Reason:  fmt.Sprintf("expected heading Tweet %d, found %q", idx+1, title),
				}
			}
			cur = &section{post: Post{Index: idx}}

		case *ast.List:
			if cur == nil {
				parseHeaderList(node, src, &t)
			}

		case *ast.FencedCodeBlock:
			if cur != nil && !cur.hasText {
				cur.post.Text = strings.TrimSuffix(linesText(node.Lines(), src), "\n")
				cur.hasText = true
			}

		case *ast.Paragraph:
			if cur != nil {
				parseLabels(node, src, cur)
			}
		}
	}

	if cur != nil {
		p, err := cur.finish()
		if err != nil {
			return Thread{}, err
		}
		t.Posts = append(t.Posts, p)
	}

	if !hasTopic {
		return Thread{}, &ParseError{Section: -1, Reason: "missing \"# Thread:\" heading"}
	}
	if len(t.Posts) == 0 {
		return Thread{}, &ParseError{Section: -1, Reason: "no tweet sections"}
	}
	return t, nil
}

func parseHeaderList(list *ast.List, src []byte, t *Thread) {
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		block := item.FirstChild()
		if block == nil {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimSpace(linesText(block.Lines(), src)), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Status":
			t.Status = Status(value)
		case "Created":
			if ts, err := time.ParseInLocation(createdLayout, value, time.Local); err == nil {
				t.CreatedAt = ts
			}
		case "Thread ID":
			t.ID = value
		}
	}
}

func parseLabels(p *ast.Paragraph, src []byte, cur *section) {
	lines := p.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		raw := strings.TrimRight(string(seg.Value(src)), "\r\n")
		line := strings.TrimLeft(raw, " \t")
		switch {
		case strings.HasPrefix(line, labelImageQuery):
			cur.post.ImageQuery = labelValue(strings.TrimPrefix(line, labelImageQuery))
			cur.hasQuery = true
		case strings.HasPrefix(line, labelCustomURL):
			cur.post.CustomURL = normalizeCustomURL(strings.TrimPrefix(line, labelCustomURL))
		}
	}
}

// labelValue drops the single separator written after a label and keeps the
// rest of the line verbatim.
func labelValue(rest string) string {
	if rest != "" && (rest[0] == ' ' || rest[0] == '\t') {
		return rest[1:]
	}
	return rest
}

// normalizeCustomURL maps blank values and untouched markdown boilerplate to
// unset.
func normalizeCustomURL(raw string) *string {
	v := strings.TrimSpace(raw)
	v = strings.TrimSuffix(strings.TrimPrefix(v, "<"), ">")
	if v == "" || strings.HasPrefix(v, "**") {
		return nil
	}
	return &v
}

func linesText(lines *text.Segments, src []byte) string {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// setStatus rewrites only the header status line, leaving every operator
// edit in place.
func setStatus(src []byte, status Status) ([]byte, bool) {
	loc := statusLineRe.FindIndex(src)
	if loc == nil {
		return nil, false
	}
	var b bytes.Buffer
	b.Write(src[:loc[0]])
	fmt.Fprintf(&b, "- Status: %s", status)
	b.Write(src[loc[1]:])
	return b.Bytes(), true
}
