package modal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Surface is the UI binding for the overlay and its panel.
type Surface interface {
	SetOverlayVisible(visible bool)
	// ResetImage discards any previous image and starts showing src.
	ResetImage(src, alt string)
	SetDetails(title, date, description string)
	SetPanelSize(l Layout)
}

// Loader resolves an image's intrinsic dimensions. Returning is the load-complete signal.
type Loader interface {
	Load(ctx context.Context, src string) (Dimensions, error)
}

// Target identifies what a click landed on.
type Target int

const (
	// TargetOverlay is the backdrop itself, outside the panel.
	TargetOverlay Target = iota
	// TargetPanel is the panel or any element inside it.
	TargetPanel
	// TargetCloseControl is the close button.
	TargetCloseControl
)

// ParseTarget maps a click name to a Target.
func ParseTarget(s string) (Target, bool) {
	switch s {
	case "overlay":
		return TargetOverlay, true
	case "panel":
		return TargetPanel, true
	case "close":
		return TargetCloseControl, true
	}
	return 0, false
}

// Modal is the detail view.
type Modal struct {
	surface  Surface
	loader   Loader
	viewport func() Viewport
	params   Params
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	gen     uint64
	visible bool
	loading chan struct{}
	layout  *Layout
}

const defaultLoadTimeout = 30 * time.Second

// Option configures a Modal.
type Option func(*Modal)

// WithParams overrides DefaultParams.
func WithParams(p Params) Option {
	return func(m *Modal) { m.params = p }
}

// WithLoadTimeout bounds each image load. Defaults to 30s.
func WithLoadTimeout(d time.Duration) Option {
	return func(m *Modal) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Modal) { m.logger = l }
}

// New creates a Modal. viewport is read when an image finishes loading.
func New(surface Surface, loader Loader, viewport func() Viewport, opts ...Option) *Modal {
	m := &Modal{
		surface:  surface,
		loader:   loader,
		viewport: viewport,
		params:   DefaultParams(),
		timeout:  defaultLoadTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Show opens the overlay for one image. Text is set immediately; the panel is sized
// once the image has loaded. A newer Show supersedes a pending load.
func (m *Modal) Show(src, title, date, description string) {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	done := make(chan struct{})
	m.loading = done
	m.layout = nil
	m.visible = true
	m.mu.Unlock()

	m.surface.ResetImage(src, title)
	m.surface.SetDetails(title, date, description)
	m.surface.SetOverlayVisible(true)

	if m.loader == nil {
		close(done)
		return
	}
	go m.load(gen, done, src)
}

func (m *Modal) load(gen uint64, done chan struct{}, src string) {
	defer close(done)
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	dims, err := m.loader.Load(ctx, src)
	if err != nil {
		m.logger.Warn("modal image load failed", zap.String("src", src), zap.Error(err))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		m.logger.Debug("superseded modal load ignored", zap.String("src", src))
		return
	}
	l := ComputeLayout(dims, m.viewport(), m.params)
	m.layout = &l
	m.surface.SetPanelSize(l)
}

// Hide closes the overlay. Loaded image data is kept.
func (m *Modal) Hide() {
	m.mu.Lock()
	m.visible = false
	m.mu.Unlock()
	m.surface.SetOverlayVisible(false)
}

// HandleClick closes the modal for clicks on the close control or on the backdrop.
// Clicks inside the panel leave it open. It reports whether the modal was hidden.
func (m *Modal) HandleClick(t Target) bool {
	switch t {
	case TargetOverlay, TargetCloseControl:
		m.Hide()
		return true
	}
	return false
}

// Visible reports whether the overlay is shown.
func (m *Modal) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Layout returns the last computed layout for the current image, if any.
func (m *Modal) Layout() (Layout, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.layout == nil {
		return Layout{}, false
	}
	return *m.layout, true
}

// Wait blocks until the current image load has settled or ctx is done.
func (m *Modal) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.loading
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
