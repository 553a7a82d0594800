package logger

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestWritersDefaultPaths(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir}
	outW, errW, err := c.Writers("display-server")
	if err != nil {
		t.Fatalf("writers: %v", err)
	}
	out, ok := outW.(*lj.Logger)
	if !ok {
		t.Fatalf("expected lumberjack writer, got %T", outW)
	}
	if out.Filename != filepath.Join(dir, "display-server.stdout.log") {
		t.Fatalf("unexpected stdout path: %q", out.Filename)
	}
	if out.MaxSize != DefaultMaxSizeMB || out.MaxBackups != DefaultMaxBackups || out.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("rotation defaults not applied: %+v", out)
	}
	_ = outW.Close()
	_ = errW.Close()
}

func TestWritersExplicitPathWins(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.log")
	c := Config{Dir: dir, StdoutPath: explicit, MaxSizeMB: 1}
	outW, _, err := c.Writers("x")
	if err != nil {
		t.Fatalf("writers: %v", err)
	}
	out := outW.(*lj.Logger)
	if out.Filename != explicit || out.MaxSize != 1 {
		t.Fatalf("explicit config not honored: %+v", out)
	}
	_ = outW.Close()
}

func TestEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Fatalf("empty config must be disabled")
	}
	if !(Config{Dir: "/tmp"}).Enabled() {
		t.Fatalf("dir config must be enabled")
	}
}

func TestColorTextHandlerAddsLevelTag(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	log := slog.New(h)
	log.Warn("display readiness timed out")

	got := buf.String()
	if !strings.Contains(got, "\033[33m") || !strings.Contains(got, "display readiness timed out") {
		t.Fatalf("unexpected output: %q", got)
	}
}
