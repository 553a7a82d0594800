package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kvann/sessiond/internal/config"
	"github.com/kvann/sessiond/internal/supervisor"
)

func testSupervisor(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Display: config.ProcConfig{Command: "sleep 1", PIDFile: filepath.Join(dir, "d.pid"), StopWait: time.Second},
		Session: config.ProcConfig{Command: "sleep 1", PIDFile: filepath.Join(dir, "s.pid"), StopWait: time.Second},
		Poll:    config.PollConfig{Attempts: 1, Interval: time.Millisecond},
	}
	return supervisor.New(cfg)
}

func TestStatusEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSupervisor(t), "")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st supervisor.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, supervisor.PhaseInit, st.Phase)
	require.Equal(t, "pending", st.Readiness)
}

func TestHealthzUnavailableBeforeReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSupervisor(t), "")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSupervisor(t), "")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBasePathMounting(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testSupervisor(t), "admin/")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"/admin":  "/admin",
		"admin":   "/admin",
		"/admin/": "/admin",
		"  ":      "",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
