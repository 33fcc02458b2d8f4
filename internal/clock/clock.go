// internal/clock/clock.go
//
// Timing helpers shared by the game engines.
// The engines never call time.Sleep directly: every wait goes through an
// injected clockwork.Clock so tests can drive virtual time with a fake clock.

package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Frame approximates one paint frame. Engines wait one frame before
// starting a sequence so the renderer can show the pre-animation state.
const Frame = 16 * time.Millisecond

// Real returns the wall clock.
func Real() clockwork.Clock { return clockwork.NewRealClock() }

// Sleep waits for d on c, returning early with ctx.Err() if ctx is done.
// A non-positive d returns immediately.
func Sleep(ctx context.Context, c clockwork.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := c.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Expiry marks a transient effect that is active until a deadline.
// Token increases every time the effect is retriggered so renderers can
// restart an animation even when the target did not change.
type Expiry struct {
	Token int
	Until time.Time
}

// Trigger re-arms the effect for d from now.
func (e *Expiry) Trigger(now time.Time, d time.Duration) {
	e.Token++
	e.Until = now.Add(d)
}

// Active reports whether the effect is still running at now.
func (e Expiry) Active(now time.Time) bool {
	return e.Token > 0 && now.Before(e.Until)
}

// Clear ends the effect immediately.
func (e *Expiry) Clear() { e.Until = time.Time{} }
