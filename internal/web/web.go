// Package web holds the embedded page templates and static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"trafficanalyzer/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names.
const (
	PageIndex    = "index"
	PageReports  = "reports"
	PageSettings = "settings"
	PageLogin    = "login"
)

// Category is one of the fixed vehicle cards on the dashboard.
type Category struct {
	Label string
	Name  string
}

// Categories are shown as cards even when the service did not report them.
var Categories = []Category{
	{Label: "bicycle", Name: "Bicycles"},
	{Label: "motorcycle", Name: "Motorcycles"},
	{Label: "car", Name: "Cars"},
	{Label: "truck", Name: "Trucks"},
	{Label: "bus", Name: "Buses"},
}

// Card is a category with its current count.
type Card struct {
	Category
	Count int
}

// Cards returns one card per category, 0 when counts lacks the label.
func Cards(counts model.Counts) []Card {
	cards := make([]Card, len(Categories))
	for i, c := range Categories {
		cards[i] = Card{Category: c, Count: counts.Get(c.Label)}
	}
	return cards
}

// Pages renders the HTML pages. Each page shares the layout template.
type Pages struct {
	templates map[string]*template.Template
}

// ParsePages parses the embedded templates.
func ParsePages() (*Pages, error) {
	p := &Pages{templates: make(map[string]*template.Template)}
	for _, name := range []string{PageIndex, PageReports, PageSettings, PageLogin} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		p.templates[name] = t
	}
	return p, nil
}

// Render writes page name with data. Nothing is written when execution
// fails.
func (p *Pages) Render(w io.Writer, name string, data interface{}) error {
	t, ok := p.templates[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded assets; mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
