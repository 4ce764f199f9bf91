package playback

import (
	"context"

	"github.com/replaykit/replayd/internal/shared/types"
)

// PumpEvents feeds a focus event stream into the controller until the
// stream closes or ctx is cancelled. This is the single sequential
// consumer for one monitor's events; run exactly one pump per stream.
// Monitor streams never carry malformed events, so HandleFocusEvent
// errors are discarded.
func PumpEvents(ctx context.Context, c *Controller, events <-chan types.FocusEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = c.HandleFocusEvent(ev)
		}
	}
}
