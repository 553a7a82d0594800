package detector

// Detector is a strategy that determines whether a managed process is
// present in the process table. Implementations may check a PID number,
// a PID file, or run a probe command. All implementations must be safe
// for concurrent use.
type Detector interface {
	// Alive returns true if the process is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
