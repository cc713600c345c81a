package gallery

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/stargaze/internal/models"
	"go.uber.org/zap"
)

// Texts shown by the gallery.
const (
	LoadingText    = "Loading image..."
	NoResultsText  = "No images found for this date range."
	FetchErrorText = "Error fetching images."
)

// Default reveal delay bounds.
const (
	MinRevealDelay = 1000 * time.Millisecond
	MaxRevealDelay = 2500 * time.Millisecond
)

// Card is one render instruction: a record, the card's ID on the surface, and how
// long after creation its image is revealed.
type Card struct {
	ID          string             `json:"id"`
	Record      models.ImageRecord `json:"record"`
	RevealDelay time.Duration      `json:"-"`
}

// ImageSource is the location the detail modal opens for this card.
func (c Card) ImageSource() string {
	return c.Record.PreferredSource()
}

// Plan maps records to cards in input order. delay is drawn once per card.
func Plan(records []models.ImageRecord, delay func() time.Duration, newID func() string) []Card {
	cards := make([]Card, 0, len(records))
	for _, rec := range records {
		cards = append(cards, Card{
			ID:          newID(),
			Record:      rec,
			RevealDelay: delay(),
		})
	}
	return cards
}

// UniformDelay returns a source of delays drawn uniformly from [lo, hi).
// A nil rng uses the global generator.
func UniformDelay(rng *rand.Rand, lo, hi time.Duration) func() time.Duration {
	var mu sync.Mutex
	return func() time.Duration {
		span := int64(hi - lo)
		if span <= 0 {
			return lo
		}
		if rng == nil {
			return lo + time.Duration(rand.Int64N(span))
		}
		mu.Lock()
		defer mu.Unlock()
		return lo + time.Duration(rng.Int64N(span))
	}
}

// Renderer draws records on a Surface and wires each card to an Opener.
type Renderer struct {
	surface   Surface
	opener    Opener
	scheduler Scheduler
	delay     func() time.Duration
	newID     func() string
	logger    *zap.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithScheduler sets how delayed image swaps run. Defaults to TimerScheduler.
func WithScheduler(s Scheduler) RendererOption {
	return func(r *Renderer) { r.scheduler = s }
}

// WithDelay sets the reveal delay source. Defaults to UniformDelay over
// [MinRevealDelay, MaxRevealDelay).
func WithDelay(fn func() time.Duration) RendererOption {
	return func(r *Renderer) { r.delay = fn }
}

// WithIDGenerator sets how card IDs are produced. Defaults to random UUIDs.
func WithIDGenerator(fn func() string) RendererOption {
	return func(r *Renderer) { r.newID = fn }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) RendererOption {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer creates a renderer drawing on surface and opening cards with opener.
func NewRenderer(surface Surface, opener Opener, opts ...RendererOption) *Renderer {
	r := &Renderer{
		surface:   surface,
		opener:    opener,
		scheduler: TimerScheduler{},
		delay:     UniformDelay(nil, MinRevealDelay, MaxRevealDelay),
		newID:     uuid.NewString,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render replaces the gallery content with one card per record, or with the
// no-results placeholder when records is empty. It returns the cards drawn.
func (r *Renderer) Render(records []models.ImageRecord) []Card {
	r.surface.Clear()
	if len(records) == 0 {
		r.surface.ShowPlaceholder(NoResultsText)
		return []Card{}
	}
	cards := Plan(records, r.delay, r.newID)
	for _, card := range cards {
		r.drawCard(card)
	}
	r.logger.Debug("gallery rendered", zap.Int("cards", len(cards)))
	return cards
}

// RenderMessage replaces the gallery content with a single placeholder.
func (r *Renderer) RenderMessage(message string) {
	r.surface.Clear()
	r.surface.ShowPlaceholder(message)
}

func (r *Renderer) drawCard(card Card) {
	rec := card.Record
	r.surface.CreateCard(card.ID, rec.Title, rec.Date, LoadingText)
	// Bound at creation so a click before the reveal still opens the stored record.
	r.surface.OnActivate(card.ID, func() {
		if r.opener != nil {
			r.opener.Show(rec.PreferredSource(), rec.Title, rec.Date, rec.Explanation)
		}
	})
	id := card.ID
	r.scheduler.AfterFunc(card.RevealDelay, func() {
		if !r.surface.SwapImage(id, rec.URL, rec.Title) {
			r.logger.Debug("stale card reveal ignored", zap.String("card", id), zap.String("date", rec.Date))
		}
	})
}
