package readiness

import (
	"context"
	"testing"
	"time"
)

// fakeDetector reports alive starting at the n-th call.
type fakeDetector struct {
	aliveAt int
	calls   int
}

func (f *fakeDetector) Alive() (bool, error) {
	f.calls++
	return f.aliveAt > 0 && f.calls >= f.aliveAt, nil
}

func (f *fakeDetector) Describe() string { return "fake" }

func TestReadyStopsImmediately(t *testing.T) {
	cases := []int{1, 3, 20}
	for _, at := range cases {
		d := &fakeDetector{aliveAt: at}
		p := Poller{Detector: d, Attempts: 20, Interval: time.Millisecond}
		state, attempts := p.Wait(context.Background())
		if state != Ready {
			t.Fatalf("aliveAt=%d: expected Ready, got %v", at, state)
		}
		if attempts != at || d.calls != at {
			t.Fatalf("aliveAt=%d: expected exactly %d checks, got attempts=%d calls=%d", at, at, attempts, d.calls)
		}
	}
}

func TestTimedOutAfterExactBudget(t *testing.T) {
	d := &fakeDetector{} // never alive
	p := Poller{Detector: d, Attempts: 20, Interval: time.Millisecond}
	state, attempts := p.Wait(context.Background())
	if state != TimedOut {
		t.Fatalf("expected TimedOut, got %v", state)
	}
	if attempts != 20 || d.calls != 20 {
		t.Fatalf("expected exactly 20 checks, got attempts=%d calls=%d", attempts, d.calls)
	}
}

func TestDefaultsApplied(t *testing.T) {
	d := &fakeDetector{aliveAt: 1}
	p := Poller{Detector: d}
	state, attempts := p.Wait(context.Background())
	if state != Ready || attempts != 1 {
		t.Fatalf("expected Ready at first check, got state=%v attempts=%d", state, attempts)
	}
}

func TestCancelledLeavesPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDetector{}
	p := Poller{Detector: d, Attempts: 20, Interval: time.Millisecond}
	state, attempts := p.Wait(ctx)
	if state != Pending || attempts != 0 {
		t.Fatalf("expected Pending with 0 checks, got state=%v attempts=%d", state, attempts)
	}
}

func TestCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &fakeDetector{}
	p := Poller{Detector: d, Attempts: 20, Interval: time.Second}
	done := make(chan State, 1)
	go func() {
		state, _ := p.Wait(ctx)
		done <- state
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case state := <-done:
		if state != Pending {
			t.Fatalf("expected Pending after cancel, got %v", state)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not observe cancellation")
	}
}

func TestStateString(t *testing.T) {
	if Pending.String() != "pending" || Ready.String() != "ready" || TimedOut.String() != "timed_out" {
		t.Fatalf("unexpected state strings: %v %v %v", Pending, Ready, TimedOut)
	}
}
