// Package modal implements the detail view: one image with its title, date and
// description, sized to the image and the viewport.
package modal

// Dimensions are an image's intrinsic pixel size.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the visible area in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Params controls sizing. Padding reserves room around the image; vertical padding
// also holds the title, date and description.
type Params struct {
	HorizontalPadding float64
	VerticalPadding   float64
	FitFraction       float64
	CeilingFraction   float64
}

// DefaultParams returns the standard sizing parameters.
func DefaultParams() Params {
	return Params{
		HorizontalPadding: 120,
		VerticalPadding:   220,
		FitFraction:       0.90,
		CeilingFraction:   0.98,
	}
}

// Layout is the computed panel size.
type Layout struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	MaxWidth  float64 `json:"max_width"`
	MaxHeight float64 `json:"max_height"`
}

// ComputeLayout sizes the panel to the image plus padding, bounded by FitFraction of
// the viewport, and never beyond CeilingFraction of it.
func ComputeLayout(img Dimensions, vp Viewport, p Params) Layout {
	maxW := vp.Width * p.CeilingFraction
	maxH := vp.Height * p.CeilingFraction
	w := min(img.Width+p.HorizontalPadding, vp.Width*p.FitFraction, maxW)
	h := min(img.Height+p.VerticalPadding, vp.Height*p.FitFraction, maxH)
	return Layout{
		Width:     w,
		Height:    h,
		MaxWidth:  maxW,
		MaxHeight: maxH,
	}
}
