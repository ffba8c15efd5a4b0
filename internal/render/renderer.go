// Package render produces the HTML pages served by the HTTP front.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/adpage/campaign-generator/internal/campaign"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Renderer holds the parsed page templates.
type Renderer struct {
	home     *template.Template
	campaign *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	home, err := template.ParseFS(templateFS, "templates/home.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse home template: %w", err)
	}
	page, err := template.ParseFS(templateFS, "templates/campaign.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse campaign template: %w", err)
	}
	return &Renderer{home: home, campaign: page}, nil
}

// Home writes the landing/index page.
func (r *Renderer) Home(w io.Writer) error {
	return r.home.Execute(w, nil)
}

// Campaign writes the generated landing page for a single campaign.
func (r *Renderer) Campaign(w io.Writer, c campaign.Campaign) error {
	return r.campaign.Execute(w, c)
}
