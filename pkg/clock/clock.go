// Package clock abstracts wall time and one-shot timers so timed workflows
// can be driven deterministically in tests.
package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports false if the callback already ran or was stopped.
	Stop() bool
}

// Clock schedules callbacks and reports the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type wrapped struct {
	cw clockwork.Clock
}

// New adapts a clockwork clock.
func New(cw clockwork.Clock) Clock { return wrapped{cw: cw} }

// Real returns a Clock backed by the runtime timers.
func Real() Clock { return New(clockwork.NewRealClock()) }

func (c wrapped) Now() time.Time { return c.cw.Now() }

func (c wrapped) AfterFunc(d time.Duration, f func()) Timer {
	return c.cw.AfterFunc(d, f)
}

func (c wrapped) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := c.cw.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}
