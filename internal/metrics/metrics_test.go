package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestHelpersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	IncStart("display-server")
	IncStart("display-server")
	IncStop("session-manager")
	IncReadinessCheck()
	SetReadinessState("ready", true)
	SetPhase("polling", true)
	IncWorkerExit()

	if got := testutil.ToFloat64(processStarts.WithLabelValues("display-server")); got != 2 {
		t.Fatalf("starts_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(processStops.WithLabelValues("session-manager")); got != 1 {
		t.Fatalf("stops_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(readinessState.WithLabelValues("ready")); got != 1 {
		t.Fatalf("readiness_state = %v, want 1", got)
	}
	if got := testutil.ToFloat64(supervisorPhase.WithLabelValues("polling")); got != 1 {
		t.Fatalf("supervisor_phase = %v, want 1", got)
	}
}
