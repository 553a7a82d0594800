//go:build !windows

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kvann/sessiond/internal/config"
	"github.com/kvann/sessiond/internal/detector"
	"github.com/kvann/sessiond/internal/history"
	"github.com/kvann/sessiond/internal/metrics"
	"github.com/kvann/sessiond/internal/process"
	"github.com/kvann/sessiond/internal/readiness"
)

// Phase is the supervisor's lifecycle state. ShuttingDown is reachable from
// every phase via signal; Terminated is the only terminal phase.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhaseCleaning      Phase = "cleaning"
	PhaseLaunching     Phase = "launching"
	PhasePolling       Phase = "polling"
	PhaseWorkerRunning Phase = "worker_running"
	PhaseIdle          Phase = "idle"
	PhaseShuttingDown  Phase = "shutting_down"
	PhaseTerminated    Phase = "terminated"
)

// Status is a point-in-time snapshot for the status surface.
type Status struct {
	Phase           Phase           `json:"phase"`
	Readiness       string          `json:"readiness"`
	ReadinessChecks int             `json:"readiness_checks"`
	Display         process.Status  `json:"display"`
	Session         process.Status  `json:"session"`
	Worker          *process.Status `json:"worker,omitempty"`
}

// Supervisor owns the session-host lifecycle: it clears stale artifacts,
// launches the session manager and display server as background children,
// polls display readiness with a bounded budget, optionally runs the solver
// worker in the foreground, and guarantees both managed processes are
// stopped before it terminates.
type Supervisor struct {
	cfg  *config.Config
	log  *slog.Logger
	sink history.Sink // optional, best-effort

	display *process.Process
	session *process.Process

	mu     sync.Mutex
	phase  Phase
	ready  readiness.State
	checks int
	worker *process.Process

	shutdownOnce sync.Once
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithLogger replaces the default console logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// WithSink attaches a lifecycle event sink. Send failures are logged and
// discarded; history never blocks supervision.
func WithSink(sink history.Sink) Option {
	return func(s *Supervisor) { s.sink = sink }
}

func New(cfg *config.Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		log:     slog.Default(),
		phase:   PhaseInit,
		display: process.New(cfg.DisplaySpec()),
		session: process.New(cfg.SessionSpec()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run drives the lifecycle to completion. It blocks until the worker exits,
// or, without a worker, until a termination signal arrives. The managed
// processes are always stopped before Run returns; the returned error is
// non-nil only for fatal startup failures.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer stop()
	// Exit trap: cleanup runs no matter how the foreground phase ends.
	defer s.Shutdown()

	s.setPhase(PhaseCleaning)
	s.CleanStale()

	s.setPhase(PhaseLaunching)
	if err := s.launch(); err != nil {
		return err
	}

	s.setPhase(PhasePolling)
	state, checks := s.pollReadiness(ctx)
	s.mu.Lock()
	s.ready = state
	s.checks = checks
	s.mu.Unlock()
	metrics.SetReadinessState(readiness.Pending.String(), state == readiness.Pending)
	metrics.SetReadinessState(readiness.Ready.String(), state == readiness.Ready)
	metrics.SetReadinessState(readiness.TimedOut.String(), state == readiness.TimedOut)
	switch state {
	case readiness.Ready:
		s.log.Info("display ready", "checks", checks)
	case readiness.TimedOut:
		// non-fatal: continue with a diagnostic
		s.log.Warn("display readiness timed out, continuing", "checks", checks)
	default:
		// cancelled mid-poll; fall through to shutdown
	}
	s.record(history.Event{Type: history.EventPhase, Name: "supervisor", Phase: string(PhasePolling), Detail: state.String()})

	if ctx.Err() != nil {
		return nil
	}

	if s.cfg.RunSolver {
		s.setPhase(PhaseWorkerRunning)
		worker := process.New(s.cfg.WorkerSpec())
		s.mu.Lock()
		s.worker = worker
		s.mu.Unlock()
		s.log.Info("starting solver worker", "command", worker.Spec().Command)
		err := worker.Run(ctx)
		metrics.IncWorkerExit()
		// The worker's exit code is not classified: its return ends the
		// foreground phase and cleanup follows either way.
		if err != nil {
			s.log.Info("solver worker exited", "error", err)
		} else {
			s.log.Info("solver worker exited")
		}
		st := worker.Snapshot()
		s.record(history.Event{Type: history.EventProcessStop, Name: config.WorkerName, PID: st.PID, Detail: errDetail(err)})
	} else {
		s.setPhase(PhaseIdle)
		s.log.Info("solver worker disabled, waiting for signal")
		<-ctx.Done()
	}
	return nil
}

// CleanStale unconditionally removes leftover lock and pid artifacts from a
// prior run. Absence of a file is success; nothing here can fail the start.
func (s *Supervisor) CleanStale() {
	for _, path := range s.cfg.StaleArtifacts() {
		if err := os.Remove(path); err == nil {
			s.log.Debug("removed stale artifact", "path", path)
		}
	}
}

// launch starts the session manager first, then the display server, both as
// non-blocking background children. Either failing to start is fatal: no
// useful session can exist without a display surface.
func (s *Supervisor) launch() error {
	if err := s.session.Start(); err != nil {
		return fmt.Errorf("start %s: %w", config.SessionName, err)
	}
	st := s.session.Snapshot()
	s.log.Info("started session manager", "pid", st.PID)
	metrics.IncStart(config.SessionName)
	s.record(history.Event{Type: history.EventProcessStart, Name: config.SessionName, PID: st.PID})

	if err := s.display.Start(); err != nil {
		return fmt.Errorf("start %s: %w", config.DisplayName, err)
	}
	st = s.display.Snapshot()
	s.log.Info("started display server", "pid", st.PID)
	metrics.IncStart(config.DisplayName)
	s.record(history.Event{Type: history.EventProcessStart, Name: config.DisplayName, PID: st.PID})
	return nil
}

// pollReadiness waits for the display server to appear in the process
// table. Only the display server gates readiness; the session manager's
// health stays visible through Status but never blocks startup.
func (s *Supervisor) pollReadiness(ctx context.Context) (readiness.State, int) {
	p := readiness.Poller{
		Detector: countingDetector{inner: s.cfg.DisplayDetector()},
		Attempts: s.cfg.Poll.Attempts,
		Interval: s.cfg.Poll.Interval,
	}
	return p.Wait(ctx)
}

// Shutdown stops the display server, then the session manager. It is
// idempotent: concurrent or repeated invocations issue one stop command per
// managed process.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.setPhase(PhaseShuttingDown)

		st := s.display.Snapshot()
		if err := s.display.Stop(0); err != nil {
			s.log.Debug("display server stop", "error", err)
		}
		s.log.Info("stopped display server")
		metrics.IncStop(config.DisplayName)
		s.record(history.Event{Type: history.EventProcessStop, Name: config.DisplayName, PID: st.PID})

		st = s.session.Snapshot()
		if err := s.session.Stop(0); err != nil {
			s.log.Debug("session manager stop", "error", err)
		}
		s.log.Info("stopped session manager")
		metrics.IncStop(config.SessionName)
		s.record(history.Event{Type: history.EventProcessStop, Name: config.SessionName, PID: st.PID})

		s.setPhase(PhaseTerminated)
		if s.sink != nil {
			_ = s.sink.Close()
		}
	})
}

// Status returns a snapshot of the supervisor and its managed processes.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	phase := s.phase
	ready := s.ready
	checks := s.checks
	worker := s.worker
	s.mu.Unlock()

	st := Status{
		Phase:           phase,
		Readiness:       ready.String(),
		ReadinessChecks: checks,
		Display:         s.display.Snapshot(),
		Session:         s.session.Snapshot(),
	}
	if worker != nil {
		ws := worker.Snapshot()
		st.Worker = &ws
	}
	return st
}

// Phase returns the current lifecycle phase.
func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Supervisor) setPhase(p Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = p
	s.mu.Unlock()

	s.log.Debug("phase transition", "from", string(prev), "to", string(p))
	metrics.SetPhase(string(prev), false)
	metrics.SetPhase(string(p), true)
	s.record(history.Event{Type: history.EventPhase, Name: "supervisor", Phase: string(p)})
}

// record forwards an event to the history sink, best-effort.
func (s *Supervisor) record(e history.Event) {
	if s.sink == nil {
		return
	}
	e.OccurredAt = time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.sink.Send(ctx, e); err != nil {
		s.log.Debug("history sink send failed", "error", err)
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// countingDetector wraps the display detector to meter poll attempts.
type countingDetector struct {
	inner detector.Detector
}

func (d countingDetector) Alive() (bool, error) {
	metrics.IncReadinessCheck()
	return d.inner.Alive()
}

func (d countingDetector) Describe() string { return d.inner.Describe() }
