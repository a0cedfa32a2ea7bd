package proc

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// pollStep is the granularity of the bounded wait loops in Terminate.
const pollStep = 10 * time.Millisecond

// Handle owns one external OS process together with its output plumbing: the
// stdout/stderr files the process writes to and two independent Tail cursors
// reading the same paths. All files live in a private directory owned by the
// handle and removed on Release.
//
// A Handle supervises at most one process over its lifetime; the owning
// attack process creates a fresh Handle per start.
type Handle struct {
	name   string
	logger *slog.Logger

	dir     string
	stdoutW *os.File
	stderrW *os.File
	stdoutR *Tail
	stderrR *Tail

	cmd  *exec.Cmd
	pgid int

	mu     sync.Mutex
	exited bool
	code   int
}

// NewHandle creates an unstarted handle. The name prefixes the handle's
// temporary directory and log records.
func NewHandle(name string, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{name: name, logger: logger}
}

// Dir returns the handle's private directory. It is empty until Start.
// Processes whose self-chosen output files must be collectible run with this
// directory as their working directory.
func (h *Handle) Dir() string {
	return h.dir
}

// Start spawns argv[0] with stdout and stderr redirected to fresh files in
// the handle's private directory and opens read cursors on both. If workDir
// is empty the private directory is used as the working directory.
//
// Returns *SpawnError when the executable cannot be launched and
// ErrAlreadyStarted when a process is already owned by this handle.
func (h *Handle) Start(argv []string, workDir string) error {
	if h.cmd != nil {
		return ErrAlreadyStarted
	}
	if len(argv) == 0 {
		return errors.New("empty argv")
	}

	dir, err := os.MkdirTemp("", h.name+"-"+NewID())
	if err != nil {
		return err
	}
	h.dir = dir
	if workDir == "" {
		workDir = dir
	}

	h.stdoutW, err = os.Create(filepath.Join(dir, "stdout"))
	if err != nil {
		h.Release()
		return err
	}
	h.stderrW, err = os.Create(filepath.Join(dir, "stderr"))
	if err != nil {
		h.Release()
		return err
	}
	h.stdoutR, err = OpenTail(h.stdoutW.Name())
	if err != nil {
		h.Release()
		return err
	}
	h.stderrR, err = OpenTail(h.stderrW.Name())
	if err != nil {
		h.Release()
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Stdout = h.stdoutW
	cmd.Stderr = h.stderrW
	// New process group so escalated signals reach the tool's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		h.Release()
		return &SpawnError{Command: argv[0], Err: err}
	}
	h.cmd = cmd
	h.pgid = cmd.Process.Pid
	h.logger.Debug("process started",
		"kind", h.name, "pid", cmd.Process.Pid,
		"stdout", h.stdoutW.Name(), "stderr", h.stderrW.Name())

	// Waiter records the exit code so PollExitCode stays non-blocking.
	go func() {
		err := cmd.Wait()
		code := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		h.mu.Lock()
		h.exited = true
		h.code = code
		h.mu.Unlock()
		h.logger.Debug("process exited", "kind", h.name, "code", code)
	}()

	return nil
}

// PollExitCode is non-blocking. running is true while the process has not
// been observed to exit; once false, code holds the final exit code.
func (h *Handle) PollExitCode() (code int, running bool) {
	if h.cmd == nil {
		return 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code, !h.exited
}

// ReadNewStdoutLines returns complete stdout lines appended since last call.
func (h *Handle) ReadNewStdoutLines() ([]string, error) {
	if h.stdoutR == nil {
		return nil, ErrNotStarted
	}
	return h.stdoutR.ReadNewLines()
}

// ReadNewStderrLines returns complete stderr lines appended since last call.
func (h *Handle) ReadNewStderrLines() ([]string, error) {
	if h.stderrR == nil {
		return nil, ErrNotStarted
	}
	return h.stderrR.ReadNewLines()
}

// Terminate sends SIGTERM to the process group, escalates to SIGKILL after
// the grace period, and returns the exit code once observed. ok is false when
// no process was ever started.
func (h *Handle) Terminate(grace time.Duration) (code int, ok bool) {
	if h.cmd == nil {
		return 0, false
	}
	if code, running := h.PollExitCode(); !running {
		return code, true
	}

	_ = unix.Kill(-h.pgid, unix.SIGTERM)
	if code, exited := h.waitExit(grace); exited {
		return code, true
	}

	h.logger.Debug("process did not stop in grace period, killing", "kind", h.name, "pgid", h.pgid)
	_ = unix.Kill(-h.pgid, unix.SIGKILL)
	code, _ = h.waitExit(time.Second)
	return code, true
}

func (h *Handle) waitExit(limit time.Duration) (int, bool) {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if code, running := h.PollExitCode(); !running {
			return code, true
		}
		time.Sleep(pollStep)
	}
	code, running := h.PollExitCode()
	return code, !running
}

// Release closes all four file handles and removes the private directory.
// Safe to call multiple times and after Terminate.
func (h *Handle) Release() {
	if h.stdoutR != nil {
		_ = h.stdoutR.Close()
		h.stdoutR = nil
	}
	if h.stderrR != nil {
		_ = h.stderrR.Close()
		h.stderrR = nil
	}
	if h.stdoutW != nil {
		_ = h.stdoutW.Close()
		h.stdoutW = nil
	}
	if h.stderrW != nil {
		_ = h.stderrW.Close()
		h.stderrW = nil
	}
	if h.dir != "" {
		_ = os.RemoveAll(h.dir)
		h.dir = ""
	}
	h.cmd = nil
}
