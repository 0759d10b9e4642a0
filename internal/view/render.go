package view

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
)

//go:embed page.html
var pageHTML string

// Renderer turns Pages into HTML.
type Renderer struct {
	tmpl *template.Template
	md   goldmark.Markdown
	code goldmark.Markdown
}

// NewRenderer parses the page templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("view").Parse(pageHTML)
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	// Raw HTML in explanations is dropped: goldmark escapes it unless
	// WithUnsafe is set.
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	code := goldmark.New(
		goldmark.WithExtensions(
			highlighting.NewHighlighting(
				highlighting.WithStyle("dracula"),
			),
		),
	)
	return &Renderer{tmpl: tmpl, md: md, code: code}, nil
}

type pageData struct {
	Page
	PreviewSrc      template.URL
	MarkupHTML      template.HTML
	ExplanationHTML template.HTML
}

func (r *Renderer) data(p Page) (pageData, error) {
	d := pageData{Page: p}
	if p.Workspace == nil {
		return d, nil
	}
	if p.Workspace.HasPreview {
		d.PreviewSrc = PreviewDataURL(p.Workspace.PreviewMarkup)
	}
	if p.Workspace.Markup != "" {
		html, err := r.HighlightMarkup(p.Workspace.Markup)
		if err != nil {
			return d, err
		}
		d.MarkupHTML = html
	}
	if p.Workspace.Explanation != "" {
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(p.Workspace.Explanation), &buf); err != nil {
			return d, fmt.Errorf("converting explanation: %w", err)
		}
		d.ExplanationHTML = template.HTML(buf.String())
	}
	return d, nil
}

// Document writes the full HTML document for p.
func (r *Renderer) Document(w io.Writer, p Page) error {
	d, err := r.data(p)
	if err != nil {
		return err
	}
	return r.tmpl.ExecuteTemplate(w, "page", d)
}

// Fragment renders only the application body, the part pushed to live
// clients on every state change.
func (r *Renderer) Fragment(p Page) (string, error) {
	d, err := r.data(p)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "app", d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HighlightMarkup returns markup as a syntax-highlighted HTML code block.
func (r *Renderer) HighlightMarkup(markup string) (template.HTML, error) {
	fence := strings.Repeat("`", longestRun(markup, '`')+3)
	src := fence + "latex\n" + markup + "\n" + fence + "\n"

	var buf bytes.Buffer
	if err := r.code.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("highlighting markup: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// PreviewDataURL wraps an SVG document in a data URL. Shown through an <img>
// element, the SVG cannot run scripts or reach the page.
func PreviewDataURL(svg string) template.URL {
	return template.URL("data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)))
}

func longestRun(s string, c rune) int {
	longest, run := 0, 0
	for _, r := range s {
		if r == c {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}
