package tui

import "github.com/hylla/kalend/internal/app"

// EventFeed returns a store observer and the channel it feeds. Events are
// dropped when the buffer is full; the model only uses them as a redraw signal.
func EventFeed(buffer int) (app.MutationObserver, <-chan app.MutationEvent) {
	ch := make(chan app.MutationEvent, max(1, buffer))
	observe := func(ev app.MutationEvent) {
		select {
		case ch <- ev:
		default:
		}
	}
	return observe, ch
}
