package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kvann/sessiond/internal/detector"
	"github.com/kvann/sessiond/internal/logger"
	"github.com/kvann/sessiond/internal/process"
)

// Well-known process names. These are fixed identities, not data: the
// supervisor manages exactly one of each.
const (
	DisplayName = "display-server"
	SessionName = "session-manager"
	WorkerName  = "solver-worker"
)

// ProcConfig describes one managed background process.
type ProcConfig struct {
	Command     string        `toml:"command" mapstructure:"command"`
	PIDFile     string        `toml:"pidfile" mapstructure:"pidfile"`
	StopCommand string        `toml:"stop_command" mapstructure:"stop_command"`
	StopWait    time.Duration `toml:"stop_wait" mapstructure:"stop_wait"`
	Probe       string        `toml:"probe" mapstructure:"probe"` // process-table probe, e.g. "pgrep -x Xvfb"
}

// WorkerConfig describes the foreground solver worker. The worker runs
// wrapped in a virtual framebuffer and receives its bind endpoint and debug
// flag as command-line arguments.
type WorkerConfig struct {
	// Command, when set, replaces the assembled xvfb-run invocation wholesale.
	Command     string `toml:"command" mapstructure:"command"`
	Script      string `toml:"script" mapstructure:"script"`
	WorkDir     string `toml:"workdir" mapstructure:"workdir"`
	BrowserType string `toml:"browser_type" mapstructure:"browser_type"`
	Threads     int    `toml:"threads" mapstructure:"threads"`
	Host        string `toml:"host" mapstructure:"host"`
	Port        int    `toml:"port" mapstructure:"port"`
}

// PollConfig bounds the readiness probe.
type PollConfig struct {
	Attempts int           `toml:"attempts" mapstructure:"attempts"`
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
}

// Config is the supervisor configuration, read once at startup and
// immutable thereafter.
type Config struct {
	// Debug and RunSolver are derived from raw string values after
	// unmarshal: the worker gate is a literal-"true" comparison, and any
	// other value (including "1" or "yes") must disable it, not error.
	Debug      bool          `toml:"-" mapstructure:"-"`
	RunSolver  bool          `toml:"-" mapstructure:"-"`
	Listen     string        `toml:"listen" mapstructure:"listen"`           // admin HTTP address, empty disables
	HistoryDSN string        `toml:"history_dsn" mapstructure:"history_dsn"` // lifecycle event sink, empty disables
	StalePaths []string      `toml:"stale_paths" mapstructure:"stale_paths"`
	Display    ProcConfig    `toml:"display" mapstructure:"display"`
	Session    ProcConfig    `toml:"session" mapstructure:"session"`
	Worker     WorkerConfig  `toml:"worker" mapstructure:"worker"`
	Poll       PollConfig    `toml:"poll" mapstructure:"poll"`
	Log        logger.Config `toml:"log" mapstructure:"log"`
}

// Load reads configuration: defaults, then an optional TOML file at path,
// then environment variables (RUN_API_SOLVER, DEBUG, SOLVER_HOST,
// SOLVER_PORT, SESSIOND_LISTEN, SESSIOND_HISTORY_DSN) on top.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	bindEnv(v)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The worker gate requires the literal string "true"; anything else,
	// including "1" or "TRUE", leaves the worker disabled.
	c.RunSolver = v.GetString("run_api_solver") == "true"
	c.Debug = v.GetString("debug") == "true"

	if c.Poll.Attempts <= 0 {
		c.Poll.Attempts = 20
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = time.Second
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", "false")
	v.SetDefault("run_api_solver", "false")
	v.SetDefault("listen", "")
	v.SetDefault("history_dsn", "")
	v.SetDefault("stale_paths", []string{
		"/tmp/.X1-lock",
		"/tmp/.X11-unix/X1",
	})

	v.SetDefault("display.command", "Xvfb :1 -screen 0 1920x1080x24")
	v.SetDefault("display.pidfile", "/run/sessiond/display-server.pid")
	v.SetDefault("display.probe", "pgrep -x Xvfb")
	v.SetDefault("display.stop_wait", "5s")

	v.SetDefault("session.command", "x11vnc -display :1 -forever -shared")
	v.SetDefault("session.pidfile", "/run/sessiond/session-manager.pid")
	v.SetDefault("session.stop_wait", "5s")

	v.SetDefault("worker.script", "api_solver.py")
	v.SetDefault("worker.browser_type", "camoufox")
	v.SetDefault("worker.threads", 1)
	v.SetDefault("worker.host", "0.0.0.0")
	v.SetDefault("worker.port", 5000)

	v.SetDefault("poll.attempts", 20)
	v.SetDefault("poll.interval", "1s")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("run_api_solver", "RUN_API_SOLVER")
	_ = v.BindEnv("debug", "DEBUG")
	_ = v.BindEnv("worker.host", "SOLVER_HOST")
	_ = v.BindEnv("worker.port", "SOLVER_PORT")
	_ = v.BindEnv("listen", "SESSIOND_LISTEN")
	_ = v.BindEnv("history_dsn", "SESSIOND_HISTORY_DSN")
}

// StaleArtifacts returns every path the cleaner must remove before launch:
// the configured lock/socket leftovers plus both advisory pidfiles.
func (c *Config) StaleArtifacts() []string {
	paths := make([]string, 0, len(c.StalePaths)+2)
	paths = append(paths, c.StalePaths...)
	if c.Display.PIDFile != "" {
		paths = append(paths, c.Display.PIDFile)
	}
	if c.Session.PIDFile != "" {
		paths = append(paths, c.Session.PIDFile)
	}
	return paths
}

// DisplaySpec builds the managed-process spec for the display server.
func (c *Config) DisplaySpec() process.Spec {
	return c.procSpec(DisplayName, c.Display)
}

// SessionSpec builds the managed-process spec for the session manager.
func (c *Config) SessionSpec() process.Spec {
	return c.procSpec(SessionName, c.Session)
}

func (c *Config) procSpec(name string, pc ProcConfig) process.Spec {
	var dets []detector.Detector
	if pc.Probe != "" {
		dets = append(dets, detector.CommandDetector{Command: pc.Probe})
	}
	return process.Spec{
		Name:        name,
		Command:     pc.Command,
		PIDFile:     pc.PIDFile,
		StopCommand: pc.StopCommand,
		StopWait:    pc.StopWait,
		Detectors:   dets,
		Log:         c.Log,
	}
}

// WorkerSpec builds the foreground worker spec: the solver script wrapped in
// a virtual framebuffer, with host, port, thread count, browser backend and
// debug flag passed through as arguments.
func (c *Config) WorkerSpec() process.Spec {
	if c.Worker.Command != "" {
		return process.Spec{
			Name:    WorkerName,
			Command: c.Worker.Command,
			WorkDir: c.Worker.WorkDir,
			Log:     c.Log,
		}
	}
	args := []string{
		"xvfb-run", "-a", "python3", c.Worker.Script,
		"--browser_type", c.Worker.BrowserType,
		"--thread", fmt.Sprintf("%d", c.Worker.Threads),
		"--host", c.Worker.Host,
		"--port", fmt.Sprintf("%d", c.Worker.Port),
	}
	if c.Debug {
		args = append(args, "--debug", "true")
	}
	return process.Spec{
		Name:    WorkerName,
		Command: strings.Join(args, " "),
		WorkDir: c.Worker.WorkDir,
		Log:     c.Log,
	}
}

// DisplayDetector returns the liveness detector the readiness poller uses.
func (c *Config) DisplayDetector() detector.Detector {
	if c.Display.Probe != "" {
		return detector.CommandDetector{Command: c.Display.Probe}
	}
	return detector.PIDFileDetector{PIDFile: c.Display.PIDFile}
}
