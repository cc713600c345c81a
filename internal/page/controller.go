// Package page runs the search flow: read the date inputs, fetch, and render.
package page

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/stargaze/internal/gallery"
	"github.com/hyperjump/stargaze/internal/models"
	"go.uber.org/zap"
)

// MissingDateAlert is shown when a date input is empty.
const MissingDateAlert = "Please select a valid date range."

// DateRangeProvider supplies the raw start and end values of the date inputs.
type DateRangeProvider interface {
	DateRange() (start, end string)
}

// StaticRange is a DateRangeProvider over fixed values.
type StaticRange struct {
	Start string
	End   string
}

// DateRange implements DateRangeProvider.
func (s StaticRange) DateRange() (string, string) { return s.Start, s.End }

// Fetcher loads image records for a range.
type Fetcher interface {
	Fetch(ctx context.Context, r models.DateRange) ([]models.ImageRecord, error)
}

// Alerter shows a user-facing warning.
type Alerter interface {
	Alert(message string)
}

// Outcome is how a search ended.
type Outcome string

const (
	OutcomeInvalidInput Outcome = "invalid_input"
	OutcomeFailed       Outcome = "failed"
	OutcomeEmpty        Outcome = "empty"
	OutcomeRendered     Outcome = "rendered"
)

// Result describes a finished search.
type Result struct {
	Outcome Outcome
	Range   models.DateRange
	Cards   []gallery.Card
	// Message is the alert or placeholder text shown, if any.
	Message string
	Err     error
}

// Controller wires the date inputs, the archive, and the gallery.
type Controller struct {
	provider DateRangeProvider
	fetcher  Fetcher
	renderer *gallery.Renderer
	surface  gallery.Surface
	alerter  Alerter
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides time.Now for date bounds.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a Controller. surface must be the one renderer draws on.
func NewController(provider DateRangeProvider, fetcher Fetcher, renderer *gallery.Renderer,
	surface gallery.Surface, alerter Alerter, opts ...Option) *Controller {
	c := &Controller{
		provider: provider,
		fetcher:  fetcher,
		renderer: renderer,
		surface:  surface,
		alerter:  alerter,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one search. Every outcome is terminal; recovering means searching again.
func (c *Controller) Search(ctx context.Context) Result {
	start, end := c.provider.DateRange()
	r, err := models.ParseDateRange(start, end, c.now())
	if err != nil {
		msg := MissingDateAlert
		if !errors.Is(err, models.ErrMissingDate) {
			msg = MissingDateAlert + " (" + err.Error() + ")"
		}
		c.alerter.Alert(msg)
		return Result{Outcome: OutcomeInvalidInput, Message: msg, Err: err}
	}

	c.surface.SetVisible(false)
	defer c.surface.SetVisible(true)

	records, err := c.fetcher.Fetch(ctx, r)
	if err != nil {
		c.logger.Error("fetching images failed", zap.String("range", r.String()), zap.Error(err))
		c.renderer.RenderMessage(gallery.FetchErrorText)
		return Result{Outcome: OutcomeFailed, Range: r, Message: gallery.FetchErrorText, Err: err}
	}

	cards := c.renderer.Render(records)
	if len(cards) == 0 {
		return Result{Outcome: OutcomeEmpty, Range: r, Cards: cards, Message: gallery.NoResultsText}
	}
	c.logger.Info("gallery updated", zap.String("range", r.String()), zap.Int("cards", len(cards)))
	return Result{Outcome: OutcomeRendered, Range: r, Cards: cards}
}
