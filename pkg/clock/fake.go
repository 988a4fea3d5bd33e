package clock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Fake is a manually advanced Clock on top of clockwork.FakeClock. Advance
// runs due callbacks one at a time in deadline order and waits for each to
// return, so timers scheduled by a callback fire too when they fall inside
// the window.
type Fake struct {
	cw *clockwork.FakeClock

	mu      sync.Mutex
	seq     uint64
	pending []*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	timer clockwork.Timer
	due   time.Time
	seq   uint64
	// release gates the callback goroutine clockwork starts so that timers
	// sharing a deadline still run one after another.
	release chan struct{}
	done    chan struct{}
}

// NewFake returns a Fake positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{cw: clockwork.NewFakeClockAt(start)}
}

// Clockwork exposes the underlying fake for code that takes a clockwork.Clock.
func (f *Fake) Clockwork() *clockwork.FakeClock { return f.cw }

func (f *Fake) Now() time.Time { return f.cw.Now() }

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{
		clock:   f,
		due:     f.cw.Now().Add(d),
		seq:     f.seq,
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	f.pending = append(f.pending, t)
	t.timer = f.cw.AfterFunc(d, func() {
		<-t.release
		defer close(t.done)
		fn()
	})
	return t
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	done := make(chan struct{})
	t := f.AfterFunc(d, func() { close(done) })
	select {
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Advance moves the clock forward by d, firing every timer whose deadline falls
// within the window in deadline order.
func (f *Fake) Advance(d time.Duration) {
	end := f.cw.Now().Add(d)
	for {
		f.mu.Lock()
		next := f.nextDueLocked(end)
		f.mu.Unlock()
		if next == nil {
			break
		}
		if gap := next.due.Sub(f.cw.Now()); gap > 0 {
			f.cw.Advance(gap)
		}
		close(next.release)
		<-next.done
	}
	if rest := end.Sub(f.cw.Now()); rest > 0 {
		f.cw.Advance(rest)
	}
}

// Pending returns the number of scheduled timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// BlockUntil waits until at least n timers are scheduled or ctx is done.
func (f *Fake) BlockUntil(ctx context.Context, n int) error {
	return f.cw.BlockUntilContext(ctx, n)
}

func (f *Fake) nextDueLocked(end time.Time) *fakeTimer {
	if len(f.pending) == 0 {
		return nil
	}
	sort.SliceStable(f.pending, func(i, j int) bool {
		a, b := f.pending[i], f.pending[j]
		if a.due.Equal(b.due) {
			return a.seq < b.seq
		}
		return a.due.Before(b.due)
	})
	head := f.pending[0]
	if head.due.After(end) {
		return nil
	}
	f.pending = f.pending[1:]
	return head
}

// Stop cancels the timer. Once clockwork has fired it, Stop reports false and
// the callback still runs on the next Advance.
func (t *fakeTimer) Stop() bool {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	if !t.timer.Stop() {
		return false
	}
	for i, p := range f.pending {
		if p == t {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	return true
}
