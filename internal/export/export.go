// Package export serializes snippet and folder collections to portable
// formats: a JSON document for backup and transfer between machines, and a
// standalone HTML page for human-readable sharing.
package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/yuin/goldmark"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

// FormatVersion identifies the JSON document layout.
const FormatVersion = 1

// Document is the JSON export envelope.
type Document struct {
	Version    int            `json:"version"`
	ExportedAt int64          `json:"exported_at"`
	Snippets   []clip.Snippet `json:"snippets"`
	Folders    []clip.Folder  `json:"folders"`
}

// WriteJSON writes snippets and folders as an indented JSON document.
func WriteJSON(w io.Writer, snippets []clip.Snippet, folders []clip.Folder) error {
	doc := Document{
		Version:    FormatVersion,
		ExportedAt: time.Now().Unix(),
		Snippets:   snippets,
		Folders:    folders,
	}
	if doc.Snippets == nil {
		doc.Snippets = []clip.Snippet{}
	}
	if doc.Folders == nil {
		doc.Folders = []clip.Folder{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to encode export: %w", err))
	}
	return nil
}

// ReadJSON parses a JSON export document. Unknown versions are rejected so
// a future layout never half-imports.
func ReadJSON(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import: %w", err))
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewValidation(fmt.Sprintf("import is not a valid export document: %v", err))
	}
	if doc.Version > FormatVersion {
		return nil, errors.NewValidation(fmt.Sprintf("unsupported export version %d", doc.Version))
	}
	return &doc, nil
}

// htmlPage renders the whole export. Snippet bodies arrive pre-rendered from
// markdown, everything else is escaped by the template engine.
var htmlPage = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>SimpleCP Snippets</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
h2 { border-bottom: 1px solid #ddd; padding-bottom: 0.25rem; }
.snippet { margin: 1rem 0; padding: 0.5rem 1rem; background: #f6f6f6; border-radius: 6px; }
.meta { color: #777; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>SimpleCP Snippets</h1>
<p class="meta">Exported {{.ExportedAt}}</p>
{{range .Folders}}
<h2>{{.Icon}} {{.Name}}</h2>
{{range .Snippets}}
<div class="snippet">
<h3>{{.Name}}</h3>
{{.Body}}
{{if .Tags}}<p class="meta">Tags: {{.Tags}}</p>{{end}}
</div>
{{end}}
{{end}}
</body>
</html>
`))

type htmlSnippet struct {
	Name string
	Body template.HTML
	Tags string
}

type htmlFolder struct {
	Name     string
	Icon     string
	Snippets []htmlSnippet
}

type htmlData struct {
	ExportedAt string
	Folders    []htmlFolder
}

// WriteHTML renders snippets grouped by folder as a standalone HTML page.
// Snippet content is treated as markdown. Snippets whose folder no longer
// exists are grouped under an Uncategorized section at the end.
func WriteHTML(w io.Writer, snippets []clip.Snippet, folders []clip.Folder) error {
	ordered := append([]clip.Folder(nil), folders...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	byFolder := make(map[string][]clip.Snippet)
	for _, sn := range snippets {
		byFolder[sn.FolderID] = append(byFolder[sn.FolderID], sn)
	}

	known := make(map[string]bool, len(ordered))
	data := htmlData{ExportedAt: time.Now().UTC().Format("2006-01-02 15:04")}
	for _, f := range ordered {
		known[f.ID] = true
		data.Folders = append(data.Folders, htmlFolder{
			Name:     f.Name,
			Icon:     f.Icon,
			Snippets: renderSnippets(byFolder[f.ID]),
		})
	}

	var dangling []clip.Snippet
	for _, sn := range snippets {
		if !known[sn.FolderID] {
			dangling = append(dangling, sn)
		}
	}
	if len(dangling) > 0 {
		data.Folders = append(data.Folders, htmlFolder{
			Name:     "Uncategorized",
			Icon:     clip.DefaultFolderIcon,
			Snippets: renderSnippets(dangling),
		})
	}

	if err := htmlPage.Execute(w, data); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to render export: %w", err))
	}
	return nil
}

func renderSnippets(snippets []clip.Snippet) []htmlSnippet {
	out := make([]htmlSnippet, 0, len(snippets))
	for _, sn := range snippets {
		out = append(out, htmlSnippet{
			Name: sn.Name,
			Body: renderMarkdown(sn.Content),
			Tags: joinTags(sn.Tags),
		})
	}
	return out
}

// renderMarkdown converts markdown text to HTML using goldmark, falling back
// to escaped plain text if conversion fails.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}
