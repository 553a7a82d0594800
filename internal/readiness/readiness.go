package readiness

import (
	"context"
	"time"

	"github.com/kvann/sessiond/internal/detector"
)

// State is the outcome of the display readiness probe.
type State int

const (
	Pending State = iota
	Ready
	TimedOut
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

// Defaults bound total startup latency to Attempts * Interval.
const (
	DefaultAttempts = 20
	DefaultInterval = time.Second
)

// Poller repeatedly checks a liveness detector with a bounded retry budget.
// It is a best-effort presence probe, not a correctness guarantee: a process
// existing does not mean the display is accepting connections yet.
type Poller struct {
	Detector detector.Detector
	Attempts int           // max checks (default 20)
	Interval time.Duration // delay between failed checks (default 1s)
}

// Wait polls until the detector reports alive, the attempt budget is spent,
// or ctx is cancelled. It returns the terminal state and the number of
// checks issued. Cancellation leaves the state Pending.
func (p Poller) Wait(ctx context.Context) (State, int) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	for i := 1; i <= attempts; i++ {
		if ctx.Err() != nil {
			return Pending, i - 1
		}
		alive, _ := p.Detector.Alive()
		if alive {
			return Ready, i
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return Pending, i
		case <-time.After(interval):
		}
	}
	return TimedOut, attempts
}
