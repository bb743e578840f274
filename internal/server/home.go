package server

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
)

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>European Institutions RSS Feeds</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
li { margin-bottom: 1rem; }
.kind { font-size: .8rem; color: #666; }
code { background: #f3f3f3; padding: 0 .25rem; }
</style>
</head>
<body>
<h1>European Institutions RSS Feeds</h1>
<p>{{len .Feeds}} feeds. Append <code>?format=atom</code> or <code>?format=json</code> for other formats.</p>
<ul>
{{- range .Feeds}}
<li>
<a href="/{{.Key}}">{{.Title}}</a> <span class="kind">{{.Kind}}</span><br>
{{.Description}}<br>
<code>{{.URL}}</code>
</li>
{{- end}}
</ul>
</body>
</html>
`))

type homeFeed struct {
	Key         string
	Title       string
	Description string
	Kind        string
	URL         string
}

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	keys := h.registry.List()
	data := struct{ Feeds []homeFeed }{Feeds: make([]homeFeed, 0, len(keys))}

	for _, key := range keys {
		info, err := h.registry.Get(key)
		if err != nil {
			continue
		}
		meta := info.Provider.Metadata()
		data.Feeds = append(data.Feeds, homeFeed{
			Key:         key,
			Title:       meta.Channel.Title,
			Description: meta.Channel.Description,
			Kind:        string(meta.Kind),
			URL:         h.service.SelfURL(key),
		})
	}

	var buf bytes.Buffer
	if err := homeTemplate.Execute(&buf, data); err != nil {
		slog.Error("Failed to render homepage", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
