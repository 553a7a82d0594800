//go:build !windows

package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kvann/sessiond/internal/detector"
)

// DefaultStopWait bounds graceful termination before SIGKILL escalation.
const DefaultStopWait = 5 * time.Second

// Process is an exclusive handle on one managed child. The supervisor owns
// it for its whole lifetime; there is no restart machinery here, a child
// that exits stays exited until the supervisor itself is restarted.
type Process struct {
	spec Spec

	mu        sync.Mutex
	cmd       *exec.Cmd
	status    Status
	waitDone  chan struct{} // closed once cmd.Wait returns
	outCloser io.WriteCloser
	errCloser io.WriteCloser
}

func New(spec Spec) *Process {
	return &Process{spec: spec, status: Status{Name: spec.Name}}
}

func (p *Process) Name() string { return p.spec.Name }

// Spec returns a copy of the process spec.
func (p *Process) Spec() Spec { return p.spec }

// configureCmd builds the exec.Cmd: workdir, env, stdio capture, and a
// dedicated process group so stop signals reach the whole subtree.
func (p *Process) configureCmd() *exec.Cmd {
	cmd := p.spec.BuildCommand()
	if p.spec.WorkDir != "" {
		cmd.Dir = p.spec.WorkDir
	}
	if len(p.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), p.spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if p.spec.Log.Enabled() {
		if p.spec.Log.Dir != "" {
			_ = os.MkdirAll(p.spec.Log.Dir, 0o750)
		}
		outW, errW, _ := p.spec.Log.Writers(p.spec.Name)
		p.mu.Lock()
		p.outCloser, p.errCloser = outW, errW
		p.mu.Unlock()
		if outW != nil {
			cmd.Stdout = outW
		}
		if errW != nil {
			cmd.Stderr = errW
		}
		return cmd
	}
	null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	cmd.Stdout = null
	cmd.Stderr = null
	return cmd
}

// Start launches the process in the background and returns as soon as the
// child is forked. A waiter goroutine reaps the child and records its exit.
func (p *Process) Start() error {
	cmd := p.configureCmd()
	if err := cmd.Start(); err != nil {
		p.closeWriters()
		return err
	}
	p.mu.Lock()
	p.cmd = cmd
	p.waitDone = make(chan struct{})
	p.status.Running = true
	p.status.PID = cmd.Process.Pid
	p.status.StartedAt = time.Now()
	wd := p.waitDone
	p.mu.Unlock()

	p.writePIDFile(cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		p.markExited(err)
		p.closeWriters()
		close(wd)
	}()
	return nil
}

// Run launches the process in the foreground and blocks until it exits or
// ctx is cancelled. On cancellation the child's process group receives
// SIGTERM, then SIGKILL after the stop-wait grace period.
func (p *Process) Run(ctx context.Context) error {
	if err := p.Start(); err != nil {
		return err
	}
	p.mu.Lock()
	wd := p.waitDone
	pid := p.status.PID
	p.mu.Unlock()

	select {
	case <-wd:
	case <-ctx.Done():
		_ = syscall.Kill(-pid, syscall.SIGTERM)
		select {
		case <-wd:
		case <-time.After(p.stopWait()):
			_ = syscall.Kill(-pid, syscall.SIGKILL)
			<-wd
		}
	}
	st := p.Snapshot()
	return st.ExitErr
}

// Stop terminates the process. When a stop command is configured it runs
// first (graceful protocol-level stop, e.g. "vncserver -kill :1"); if the
// process is still alive afterwards, or no stop command exists, the process
// group is signaled directly with SIGTERM and then SIGKILL.
func (p *Process) Stop(wait time.Duration) error {
	if wait <= 0 {
		wait = p.stopWait()
	}
	alive, _ := p.DetectAlive()
	if !alive {
		p.RemovePIDFile()
		return nil
	}

	if p.spec.StopCommand != "" {
		stop := buildShellAware(p.spec.StopCommand)
		stop.Stdout = nil
		stop.Stderr = nil
		// best-effort: a failing stop command falls through to signals
		_ = stop.Run()
		if p.waitGone(wait) {
			p.RemovePIDFile()
			return nil
		}
	}

	p.mu.Lock()
	cmd := p.cmd
	wd := p.waitDone
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		pid := cmd.Process.Pid
		_ = syscall.Kill(-pid, syscall.SIGTERM)
		if wd != nil {
			select {
			case <-wd:
			case <-time.After(wait):
				_ = syscall.Kill(-pid, syscall.SIGKILL)
				select {
				case <-wd:
				case <-time.After(200 * time.Millisecond):
					// best-effort
				}
			}
		}
	}
	p.RemovePIDFile()
	st := p.Snapshot()
	return st.ExitErr
}

// waitGone polls liveness until the process disappears or the deadline hits.
func (p *Process) waitGone(wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if alive, _ := p.DetectAlive(); !alive {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// DetectAlive probes liveness: first the exec pid, then configured detectors.
func (p *Process) DetectAlive() (bool, string) {
	p.mu.Lock()
	cmd := p.cmd
	running := p.status.Running
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil && running {
		if syscall.Kill(cmd.Process.Pid, 0) == nil {
			return true, "exec:pid"
		}
	}
	for _, d := range p.detectors() {
		ok, _ := d.Alive()
		if ok {
			return true, d.Describe()
		}
	}
	return false, ""
}

func (p *Process) detectors() []detector.Detector {
	dets := make([]detector.Detector, 0, len(p.spec.Detectors)+1)
	if p.spec.PIDFile != "" {
		dets = append(dets, detector.PIDFileDetector{PIDFile: p.spec.PIDFile})
	}
	dets = append(dets, p.spec.Detectors...)
	return dets
}

// Snapshot returns a copy of the current status with liveness refreshed.
func (p *Process) Snapshot() Status {
	alive, by := p.DetectAlive()
	p.mu.Lock()
	s := p.status
	p.mu.Unlock()
	s.Running = alive
	s.DetectedBy = by
	return s
}

func (p *Process) markExited(err error) {
	p.mu.Lock()
	p.status.Running = false
	p.status.StoppedAt = time.Now()
	p.status.ExitErr = err
	p.mu.Unlock()
}

func (p *Process) stopWait() time.Duration {
	if p.spec.StopWait > 0 {
		return p.spec.StopWait
	}
	return DefaultStopWait
}

func (p *Process) writePIDFile(pid int) {
	if p.spec.PIDFile == "" || pid == 0 {
		return
	}
	_ = os.MkdirAll(filepath.Dir(p.spec.PIDFile), 0o750)
	_ = os.WriteFile(p.spec.PIDFile, []byte(strconv.Itoa(pid)), 0o600)
}

// RemovePIDFile is best-effort; a missing file is fine.
func (p *Process) RemovePIDFile() {
	if p.spec.PIDFile == "" {
		return
	}
	_ = os.Remove(p.spec.PIDFile)
}

func (p *Process) closeWriters() {
	p.mu.Lock()
	if p.outCloser != nil {
		_ = p.outCloser.Close()
		p.outCloser = nil
	}
	if p.errCloser != nil {
		_ = p.errCloser.Close()
		p.errCloser = nil
	}
	p.mu.Unlock()
}
