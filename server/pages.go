package server

import (
	"bytes"
	"html/template"
	"net/http"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

func mdToHTML(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return "", err
	}
	// goldmark escapes raw HTML unless WithUnsafe is set.
	return template.HTML(buf.String()), nil
}

const layout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 820px; margin: 2em auto; padding: 0 1em; color: #222; }
table { border-collapse: collapse; width: 100%; }
td, th { text-align: left; padding: .4em .6em; border-bottom: 1px solid #eee; }
pre { white-space: pre-wrap; background: #f6f8fa; padding: .8em; border-radius: 6px; }
.slot { margin: 1.5em 0; }
.slot img { max-width: 100%; max-height: 360px; border-radius: 8px; }
.missing { color: #999; font-style: italic; }
.PUBLISHED { color: #2a7; }
</style>
</head>
<body>
{{template "content" .}}
</body>
</html>
{{define "index"}}<h1>Threads</h1>
{{if .Threads}}<table>
<tr><th>ID</th><th>Topic</th><th>Status</th><th>Tweets</th></tr>
{{range .Threads}}<tr>
<td><a href="/threads/{{.ID}}">{{.ID}}</a></td>
<td>{{if .Error}}<span class="missing">{{.Error}}</span>{{else}}{{.Topic}}{{end}}</td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{.Posts}}</td>
</tr>{{end}}
</table>{{else}}<p class="missing">No drafts yet.</p>{{end}}{{end}}
{{define "thread"}}<p><a href="/">&larr; all threads</a></p>
<h2>Images</h2>
{{range .Thread.Posts}}<div class="slot">
<strong>Tweet {{inc .Index}}</strong>
{{if .Image}}<div><img src="{{.Image}}" alt="{{.ImageQuery}}"></div>{{else}}<div class="missing">no image yet ({{.ImageQuery}})</div>{{end}}
</div>{{end}}
<h2>Document</h2>
{{.Document}}{{end}}`

var pages = template.Must(template.New("layout").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(layout))

type pageData struct {
	Title    string
	Threads  []threadSummary
	Thread   threadResp
	Document template.HTML
}

func (s *Server) render(w http.ResponseWriter, content string, data pageData) {
	t, err := pages.Clone()
	if err == nil {
		_, err = t.New("content").Parse(`{{template "` + content + `" .}}`)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	list, err := s.drafts.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data := pageData{Title: "Threads"}
	for _, d := range list {
		data.Threads = append(data.Threads, toSummary(d))
	}
	s.render(w, "index", data)
}

func (s *Server) handleThreadPage(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.loadThread(w, r.PathValue("id"))
	if !ok {
		return
	}
	src, err := os.ReadFile(s.drafts.DocumentPath(resp.ID))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	doc, err := mdToHTML(src)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "thread", pageData{Title: resp.Topic, Thread: resp, Document: doc})
}
