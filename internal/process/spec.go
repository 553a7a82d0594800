package process

import (
	"os/exec"
	"strings"
	"time"

	"github.com/kvann/sessiond/internal/detector"
	"github.com/kvann/sessiond/internal/logger"
)

// Spec describes a process managed by the supervisor.
type Spec struct {
	Name        string              `json:"name"`
	Command     string              `json:"command"`      // command to start the process
	WorkDir     string              `json:"work_dir"`     // optional working dir
	Env         []string            `json:"env"`          // optional extra env (K=V)
	PIDFile     string              `json:"pid_file"`     // advisory pidfile written on start, removed on clean
	StopCommand string              `json:"stop_command"` // optional graceful-stop command; SIGTERM otherwise
	StopWait    time.Duration       `json:"stop_wait"`    // grace period before SIGKILL escalation
	Detectors   []detector.Detector `json:"-"`            // extra liveness strategies beyond the exec pid
	Log         logger.Config       `json:"log"`          // stdout/stderr capture
}

// BuildCommand constructs an *exec.Cmd for spec.Command. An explicit
// "sh -c ..." prefix is honored without double-wrapping; otherwise a shell
// is only involved when metacharacters require one.
func (s *Spec) BuildCommand() *exec.Cmd {
	return buildShellAware(s.Command)
}

func buildShellAware(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if script, ok := cutExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", script)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}

// cutExplicitShell detects a leading "sh -c " (or absolute-path variant) and
// returns the script that follows, with one surrounding quote pair stripped
// so redirections inside the script survive.
func cutExplicitShell(cmdStr string) (string, bool) {
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(cmdStr, p) {
			continue
		}
		script := cmdStr[len(p):]
		if n := len(script); n >= 2 {
			if (script[0] == '\'' && script[n-1] == '\'') || (script[0] == '"' && script[n-1] == '"') {
				script = script[1 : n-1]
			}
		}
		return script, true
	}
	return "", false
}
