// Package web is the HTML binding of the gallery: an in-memory document that the
// renderer and the modal draw on, and the template that turns it into a page.
package web

import (
	"sync"
	"time"

	"github.com/hyperjump/stargaze/internal/gallery"
	"github.com/hyperjump/stargaze/internal/modal"
)

type cardNode struct {
	id          string
	title       string
	date        string
	loading     string
	src         string
	alt         string
	revealDelay time.Duration
	activate    func()
}

// Document holds the gallery container, the alert area and the modal overlay.
// It implements gallery.Surface, modal.Surface and page.Alerter, and is safe for
// concurrent use.
type Document struct {
	mu sync.Mutex

	galleryVisible bool
	placeholders   []string
	cards          []*cardNode
	byID           map[string]*cardNode
	alerts         []string

	overlayVisible bool
	modalSrc       string
	modalAlt       string
	modalTitle     string
	modalDate      string
	modalDesc      string
	panel          *modal.Layout
}

var (
	_ gallery.Surface = (*Document)(nil)
	_ modal.Surface   = (*Document)(nil)
)

// NewDocument returns an empty document with the gallery hidden, as on first load.
func NewDocument() *Document {
	return &Document{byID: make(map[string]*cardNode)}
}

// Clear implements gallery.Surface.
func (d *Document) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.placeholders = nil
	d.cards = nil
	d.byID = make(map[string]*cardNode)
}

// SetVisible implements gallery.Surface.
func (d *Document) SetVisible(visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.galleryVisible = visible
}

// ShowPlaceholder implements gallery.Surface.
func (d *Document) ShowPlaceholder(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.placeholders = append(d.placeholders, message)
}

// CreateCard implements gallery.Surface.
func (d *Document) CreateCard(id, title, date, loadingText string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := &cardNode{id: id, title: title, date: date, loading: loadingText}
	d.cards = append(d.cards, n)
	d.byID[id] = n
}

// SwapImage implements gallery.Surface.
func (d *Document) SwapImage(id, src, alt string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.byID[id]
	if !ok {
		return false
	}
	n.loading = ""
	n.src, n.alt = src, alt
	return true
}

// OnActivate implements gallery.Surface.
func (d *Document) OnActivate(id string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.byID[id]; ok {
		n.activate = fn
	}
}

// SetRevealDelays records each card's reveal delay for client-side animation.
func (d *Document) SetRevealDelays(cards []gallery.Card) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range cards {
		if n, ok := d.byID[c.ID]; ok {
			n.revealDelay = c.RevealDelay
		}
	}
}

// Activate clicks a card. It reports whether the card exists and has a handler.
func (d *Document) Activate(id string) bool {
	d.mu.Lock()
	n, ok := d.byID[id]
	var fn func()
	if ok {
		fn = n.activate
	}
	d.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// CardByDate returns the ID of the first card for date.
func (d *Document) CardByDate(date string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.cards {
		if n.date == date {
			return n.id, true
		}
	}
	return "", false
}

// Alert implements page.Alerter.
func (d *Document) Alert(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, message)
}

// SetOverlayVisible implements modal.Surface.
func (d *Document) SetOverlayVisible(visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overlayVisible = visible
}

// ResetImage implements modal.Surface.
func (d *Document) ResetImage(src, alt string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.modalSrc, d.modalAlt = src, alt
	d.panel = nil
}

// SetDetails implements modal.Surface.
func (d *Document) SetDetails(title, date, description string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.modalTitle, d.modalDate, d.modalDesc = title, date, description
}

// SetPanelSize implements modal.Surface.
func (d *Document) SetPanelSize(l modal.Layout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panel = &l
}
