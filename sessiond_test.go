package sessiond

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RunSolver {
		t.Fatalf("worker gate must default to disabled")
	}
	if cfg.Poll.Attempts != 20 || cfg.Poll.Interval != time.Second {
		t.Fatalf("unexpected poll budget: %+v", cfg.Poll)
	}
}

func TestNewSupervisorStartsInInit(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sup := New(cfg)
	if sup.Phase() != "init" {
		t.Fatalf("expected init phase, got %q", sup.Phase())
	}
	st := sup.Status()
	if st.Readiness != "pending" {
		t.Fatalf("expected pending readiness, got %q", st.Readiness)
	}
}

func TestNewHistorySinkSQLite(t *testing.T) {
	sink, err := NewHistorySink("sqlite://:memory:")
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	_ = sink.Close()
}
