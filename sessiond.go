// Package sessiond supervises a remote-desktop session host: it clears
// stale display artifacts, launches the session manager and display server,
// waits for the display to become usable, and optionally runs a solver
// worker in the foreground inside a virtual framebuffer, guaranteeing that
// the managed processes never outlive the supervisor.
package sessiond

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kvann/sessiond/internal/config"
	"github.com/kvann/sessiond/internal/history"
	hfactory "github.com/kvann/sessiond/internal/history/factory"
	"github.com/kvann/sessiond/internal/metrics"
	"github.com/kvann/sessiond/internal/process"
	"github.com/kvann/sessiond/internal/readiness"
	iapi "github.com/kvann/sessiond/internal/server"
	"github.com/kvann/sessiond/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Supervisor = supervisor.Supervisor

type Phase = supervisor.Phase

type Status = supervisor.Status

type ProcessStatus = process.Status

type ReadinessState = readiness.State

type HistorySink = history.Sink

type Option = supervisor.Option

var (
	WithLogger = supervisor.WithLogger
	WithSink   = supervisor.WithSink
)

// LoadConfig reads defaults, an optional TOML file, and the process
// environment into an immutable configuration.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// New constructs a supervisor for the given configuration.
func New(cfg *Config, opts ...Option) *Supervisor { return supervisor.New(cfg, opts...) }

// NewHistorySink creates a lifecycle event sink from a DSN
// (sqlite://, postgres://, clickhouse://).
func NewHistorySink(dsn string) (HistorySink, error) { return hfactory.NewSinkFromDSN(dsn) }

// NewHTTPServer starts the admin HTTP server exposing status, health and
// metrics for the given supervisor.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
