package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"

	"github.com/hyperjump/stargaze/internal/gallery"
	"github.com/hyperjump/stargaze/internal/modal"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// Page is the data behind one rendered HTML page.
type Page struct {
	Title       string
	LoadingText string
	StartDate   string
	EndDate     string
	MinDate     string
	MaxDate     string
	OpenDate    string
	Viewport    modal.Viewport
	View        View
}

func (p Page) link(extra map[string]string) string {
	q := url.Values{}
	q.Set("start_date", p.StartDate)
	q.Set("end_date", p.EndDate)
	if p.Viewport.Width > 0 && p.Viewport.Height > 0 {
		q.Set("vw", strconv.FormatFloat(p.Viewport.Width, 'f', -1, 64))
		q.Set("vh", strconv.FormatFloat(p.Viewport.Height, 'f', -1, 64))
	}
	for k, v := range extra {
		q.Set(k, v)
	}
	return "/?" + q.Encode()
}

// CardURL opens the card for date.
func (p Page) CardURL(date string) string {
	return p.link(map[string]string{"open": date})
}

// ClickURL is a click on target while the card for OpenDate is open.
func (p Page) ClickURL(target string) string {
	return p.link(map[string]string{"open": p.OpenDate, "click": target})
}

// PanelStyle is the inline size of the modal panel, empty until the image is measured.
func (p Page) PanelStyle() template.CSS {
	l := p.View.Modal.Layout
	if l == nil {
		return ""
	}
	return template.CSS(fmt.Sprintf("width: %.0fpx; height: %.0fpx; max-width: %.0fpx; max-height: %.0fpx;",
		l.Width, l.Height, l.MaxWidth, l.MaxHeight))
}

// RenderPage writes p as an HTML document.
func RenderPage(w io.Writer, p Page) error {
	if p.Title == "" {
		p.Title = "Astronomy Picture of the Day"
	}
	if p.LoadingText == "" {
		p.LoadingText = gallery.LoadingText
	}
	return pageTemplate.Execute(w, p)
}
