// Package imageprobe reads an image's intrinsic dimensions from its header without
// decoding the pixels.
package imageprobe

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/stargaze/internal/modal"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// headerBytes caps how much of the body is read; image headers sit well inside it.
const headerBytes = 1 << 20

// ErrUnsupported is returned when the body is not a decodable image format.
var ErrUnsupported = errors.New("unsupported image format")

// Prober fetches images over HTTP and reports their dimensions.
type Prober struct {
	http   *http.Client
	ua     string
	logger *zap.Logger
}

// NewProber creates a Prober. A zero timeout leaves requests bounded by the context.
func NewProber(timeout time.Duration, userAgent string, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		http:   &http.Client{Timeout: timeout},
		ua:     userAgent,
		logger: logger,
	}
}

// Load implements modal.Loader.
func (p *Prober) Load(ctx context.Context, src string) (modal.Dimensions, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return modal.Dimensions{}, fmt.Errorf("probe new request: %w", err)
	}
	if p.ua != "" {
		req.Header.Set("User-Agent", p.ua)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return modal.Dimensions{}, fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return modal.Dimensions{}, fmt.Errorf("probe %s: status %d", src, resp.StatusCode)
	}
	dims, err := Decode(io.LimitReader(resp.Body, headerBytes))
	if err != nil {
		return modal.Dimensions{}, fmt.Errorf("probe %s: %w", src, err)
	}
	p.logger.Debug("image probed",
		zap.String("src", src),
		zap.Float64("width", dims.Width),
		zap.Float64("height", dims.Height))
	return dims, nil
}

// Decode reads dimensions from an image header.
func Decode(r io.Reader) (modal.Dimensions, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return modal.Dimensions{}, ErrUnsupported
		}
		return modal.Dimensions{}, err
	}
	return modal.Dimensions{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
}
