// Package gallery renders image records as cards on a rendering surface.
package gallery

import "time"

// Surface is the UI binding the renderer draws on.
type Surface interface {
	// Clear removes every placeholder and card.
	Clear()
	// SetVisible shows or hides the gallery container.
	SetVisible(visible bool)
	// ShowPlaceholder adds a single message node.
	ShowPlaceholder(message string)
	// CreateCard appends a card whose image area shows loadingText.
	CreateCard(id, title, date, loadingText string)
	// SwapImage replaces the card's loading text with an image. It returns false
	// when the card is no longer attached.
	SwapImage(id, src, alt string) bool
	// OnActivate registers fn to run when the card is clicked.
	OnActivate(id string, fn func())
}

// Opener opens the detail view for one image.
type Opener interface {
	Show(src, title, date, description string)
}

// Scheduler runs fn after d.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler schedules on runtime timers.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// ImmediateScheduler runs fn synchronously and ignores d. Used where the delay is
// rendered by the client (HTML animation delay) rather than waited for.
type ImmediateScheduler struct{}

// AfterFunc implements Scheduler.
func (ImmediateScheduler) AfterFunc(_ time.Duration, fn func()) {
	fn()
}
