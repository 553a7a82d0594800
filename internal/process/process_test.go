//go:build !windows

package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStartStopWithPIDFile(t *testing.T) {
	dir := t.TempDir()
	pidfile := filepath.Join(dir, "demo.pid")
	p := New(Spec{Name: "demo", Command: "sleep 2", PIDFile: pidfile})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := p.Snapshot()
	if !st.Running || st.PID <= 0 {
		t.Fatalf("expected running with pid, got %+v", st)
	}
	data, err := os.ReadFile(pidfile)
	if err != nil || len(data) == 0 {
		t.Fatalf("pidfile not created: %v", err)
	}
	_ = p.Stop(2 * time.Second) // signal exit error is fine
	st2 := p.Snapshot()
	if st2.Running {
		t.Fatalf("expected stopped, got %+v", st2)
	}
	if _, err := os.Stat(pidfile); !os.IsNotExist(err) {
		t.Fatalf("pidfile should be removed after stop")
	}
}

func TestStartMissingExecutable(t *testing.T) {
	p := New(Spec{Name: "missing", Command: "/no/such/binary"})
	if err := p.Start(); err == nil {
		t.Fatalf("expected start error for missing executable")
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	p := New(Spec{Name: "idle", Command: "sleep 1"})
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("stop on never-started process: %v", err)
	}
}

func TestRunForegroundCompletes(t *testing.T) {
	p := New(Spec{Name: "fg", Command: "sh -c 'exit 0'"})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	st := p.Snapshot()
	if st.Running {
		t.Fatalf("expected exited, got %+v", st)
	}
}

func TestRunCancelledTerminatesChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(Spec{Name: "fgkill", Command: "sleep 10", StopWait: time.Second})
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx) // exits with a signal error
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
	if st := p.Snapshot(); st.Running {
		t.Fatalf("child still alive after cancellation: %+v", st)
	}
}

func TestStopRunsStopCommandFirst(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "stopped.marker")
	p := New(Spec{
		Name:        "graceful",
		Command:     "sleep 2",
		StopCommand: "sh -c 'touch " + marker + "'",
		StopWait:    time.Second,
	})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = p.Stop(time.Second)
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("stop command did not run: %v", err)
	}
	if st := p.Snapshot(); st.Running {
		t.Fatalf("expected stopped after escalation, got %+v", st)
	}
}
