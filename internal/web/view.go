package web

import "github.com/hyperjump/stargaze/internal/modal"

// View is a point-in-time copy of a Document.
type View struct {
	GalleryVisible bool       `json:"gallery_visible"`
	Placeholders   []string   `json:"placeholders,omitempty"`
	Cards          []CardView `json:"cards"`
	Alerts         []string   `json:"alerts,omitempty"`
	Modal          ModalView  `json:"modal"`
}

// CardView is one rendered card.
type CardView struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Date          string `json:"date"`
	Loading       string `json:"loading,omitempty"`
	ImageSrc      string `json:"image_src,omitempty"`
	ImageAlt      string `json:"image_alt,omitempty"`
	RevealDelayMS int64  `json:"reveal_delay_ms"`
}

// ModalView is the overlay state.
type ModalView struct {
	Visible     bool          `json:"visible"`
	ImageSrc    string        `json:"image_src,omitempty"`
	ImageAlt    string        `json:"image_alt,omitempty"`
	Title       string        `json:"title,omitempty"`
	Date        string        `json:"date,omitempty"`
	Description string        `json:"description,omitempty"`
	Layout      *modal.Layout `json:"layout,omitempty"`
}

// Snapshot copies the document state.
func (d *Document) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := View{
		GalleryVisible: d.galleryVisible,
		Placeholders:   append([]string(nil), d.placeholders...),
		Cards:          make([]CardView, 0, len(d.cards)),
		Alerts:         append([]string(nil), d.alerts...),
		Modal: ModalView{
			Visible:     d.overlayVisible,
			ImageSrc:    d.modalSrc,
			ImageAlt:    d.modalAlt,
			Title:       d.modalTitle,
			Date:        d.modalDate,
			Description: d.modalDesc,
		},
	}
	if d.panel != nil {
		l := *d.panel
		v.Modal.Layout = &l
	}
	for _, n := range d.cards {
		v.Cards = append(v.Cards, CardView{
			ID:            n.id,
			Title:         n.title,
			Date:          n.date,
			Loading:       n.loading,
			ImageSrc:      n.src,
			ImageAlt:      n.alt,
			RevealDelayMS: n.revealDelay.Milliseconds(),
		})
	}
	return v
}
