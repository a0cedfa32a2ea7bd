package proc

import (
	"log/slog"
	"time"
)

// DefaultTerminateGrace is the wait between the graceful stop signal and the
// forced kill when no grace period is configured.
const DefaultTerminateGrace = time.Second

// Config describes one kind of supervised attack process: its classifier
// tables for both streams, the flags and stats it may touch, and how long to
// wait between the graceful stop signal and the forced kill.
type Config struct {
	Kind string

	Stdout Table
	Stderr Table
	// SilentStdout / SilentStderr mark a stream the wrapped tool is expected
	// to keep silent; any line on it is reported as an anomaly instead of
	// being classified.
	SilentStdout bool
	SilentStderr bool

	Flags []string
	Stats []string

	TerminateGrace time.Duration
	Logger         *slog.Logger
}

// Supervised is a generic supervised external attack process: a Handle plus a
// classifier-driven state machine. The four attack kinds are thin shells
// around it, differing only in Config and side-effect handlers.
type Supervised struct {
	cfg    Config
	logger *slog.Logger

	handle *Handle
	state  State
	flags  map[string]bool
	stats  map[string]int
}

// NewSupervised creates an unstarted supervised process for the given kind.
func NewSupervised(cfg Config) *Supervised {
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = DefaultTerminateGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervised{cfg: cfg, logger: logger}
}

// Start spawns the process. Starting while a previous process is live is a
// usage error reported as ErrAlreadyStarted.
func (s *Supervised) Start(argv []string, workDir string) error {
	if s.handle != nil {
		return ErrAlreadyStarted
	}
	h := NewHandle(s.cfg.Kind, s.logger)
	if err := h.Start(argv, workDir); err != nil {
		return err
	}
	s.handle = h
	s.state = StateNew
	s.flags = make(map[string]bool, len(s.cfg.Flags))
	for _, f := range s.cfg.Flags {
		s.flags[f] = false
	}
	s.stats = make(map[string]int, len(s.cfg.Stats))
	for _, st := range s.cfg.Stats {
		s.stats[st] = 0
	}
	return nil
}

// Update drains all currently available output through the classifier and
// then polls the exit code, so a final burst of output is never lost even if
// the process already exited. The returned Update is a snapshot of exactly
// what this pass observed; accumulated state is available via State, Flag and
// Stat.
func (s *Supervised) Update() Update {
	u := Update{State: s.state}
	if s.handle == nil {
		return u
	}

	s.drain(&u, "stdout", s.handle.ReadNewStdoutLines, s.cfg.SilentStdout, s.cfg.Stdout)
	s.drain(&u, "stderr", s.handle.ReadNewStderrLines, s.cfg.SilentStderr, s.cfg.Stderr)

	// Exit check comes after line classification and wins over it.
	if _, running := s.handle.PollExitCode(); !running {
		u.State = StateTerminated
	}

	s.state = u.State
	for f, set := range u.Flags {
		if set {
			s.flags[f] = true
		}
	}
	for k, v := range u.Stats {
		s.stats[k] = v
	}
	for _, a := range u.Anomalies {
		s.logger.Warn("unexpected process output", "kind", s.cfg.Kind, "error", a)
	}
	return u
}

func (s *Supervised) drain(u *Update, stream string, read func() ([]string, error), silent bool, table Table) {
	lines, err := read()
	if err != nil {
		u.Anomalies = append(u.Anomalies, err)
		return
	}
	for _, line := range lines {
		if silent {
			if line != "" {
				u.Anomalies = append(u.Anomalies,
					&UnexpectedOutputError{Kind: s.cfg.Kind, Stream: stream, Line: line})
			}
			continue
		}
		table.Classify(line, u)
	}
}

// State returns the accumulated lifecycle state.
func (s *Supervised) State() State {
	return s.state
}

// Flag reports whether the named flag has been raised since start.
func (s *Supervised) Flag(name string) bool {
	return s.flags[name]
}

// ClearFlag lowers a flag after the orchestrator has reacted to it.
func (s *Supervised) ClearFlag(name string) {
	if s.flags != nil {
		s.flags[name] = false
	}
}

// Stat returns the last observed value of the named counter.
func (s *Supervised) Stat(name string) int {
	return s.stats[name]
}

// Dir exposes the handle's private directory; empty when not started.
func (s *Supervised) Dir() string {
	if s.handle == nil {
		return ""
	}
	return s.handle.Dir()
}

// Stop requests termination, escalating to a forced kill after the grace
// period. ok is false when the process was never started.
func (s *Supervised) Stop() (code int, ok bool) {
	if s.handle == nil {
		return 0, false
	}
	code, ok = s.handle.Terminate(s.cfg.TerminateGrace)
	s.state = StateTerminated
	return code, ok
}

// Clean stops the process if still running, releases all resources and
// resets in-memory state. Idempotent; safe on a never-started instance.
func (s *Supervised) Clean() {
	if s.handle != nil {
		if _, running := s.handle.PollExitCode(); running {
			s.Stop()
		}
		s.handle.Release()
		s.handle = nil
	}
	s.state = StateNew
	s.flags = nil
	s.stats = nil
}
