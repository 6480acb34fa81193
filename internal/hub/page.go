package hub

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/index.html
var templates embed.FS

type tile struct {
	ID          string
	Name        string
	Description string
	Running     bool
}

type pageData struct {
	Apps   []tile
	Error  string
	HubURL string
	Today  string
}

type page struct {
	tmpl *template.Template
}

func newPage() (*page, error) {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &page{tmpl: tmpl}, nil
}

func (p *page) render(w io.Writer, data pageData) error {
	return p.tmpl.ExecuteTemplate(w, "index.html", data)
}
