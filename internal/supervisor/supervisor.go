// Package supervisor runs the bitcoind process to completion, relays
// termination signals to it, and maps how it stopped onto this process's
// exit code.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"minder/internal/logging"
)

// ExitBeforeSpawn is the exit code used when a termination signal arrives
// before the daemon has been spawned. It equals 128 + SIGTERM.
const ExitBeforeSpawn = 143

var (
	kill   = unix.Kill
	osExit = os.Exit
)

// Handle is the shared cell holding the daemon's process id. The spawn path
// writes it once; the signal relay reads it, possibly before that write has
// happened. All access goes through the mutex.
type Handle struct {
	mu  sync.Mutex
	pid int
	ok  bool
}

// Set records the daemon's process id.
func (h *Handle) Set(pid int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pid = pid
	h.ok = true
}

// Get returns the recorded process id, if any.
func (h *Handle) Get() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid, h.ok
}

// Supervisor owns the daemon child process.
type Supervisor struct {
	binary string
	args   []string
	handle *Handle
	logger *slog.Logger
	cmd    *exec.Cmd
}

// New constructs a supervisor that will run binary with args and record the
// child's process id in handle.
func New(binary string, args []string, handle *Handle, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{binary: binary, args: args, handle: handle, logger: logger}
}

// Start spawns the daemon with inherited stdio and records its process id.
// A spawn failure means a broken environment and is fatal to the caller;
// there is no retry.
func (s *Supervisor) Start() error {
	cmd := exec.Command(s.binary, s.args...) //nolint:gosec
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.binary, err)
	}
	s.cmd = cmd
	s.handle.Set(cmd.Process.Pid)
	s.logger.Info("daemon started",
		logging.String("binary", s.binary),
		logging.Int("pid", cmd.Process.Pid))
	return nil
}

// Wait blocks until the daemon exits and returns the exit code this process
// must finish with: the daemon's own code when it exited normally, 128 plus
// the signal number when a signal terminated it, or 1 when the platform
// reports neither.
func (s *Supervisor) Wait() int {
	err := s.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		s.logger.Error("wait for daemon", logging.Error(err))
		return 1
	}
	code, signalName := ExitCode(s.cmd.ProcessState)
	if signalName != "" {
		s.logger.Warn("daemon terminated by signal", logging.String("signal", signalName))
	}
	return code
}

// ExitCode maps a daemon wait status onto the supervisor exit code,
// returning the terminating signal's name when there was one.
func ExitCode(state *os.ProcessState) (int, string) {
	if state == nil {
		return 1, ""
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return 1, ""
	}
	switch {
	case status.Exited():
		return status.ExitStatus(), ""
	case status.Signaled():
		sig := status.Signal()
		name := unix.SignalName(sig)
		if name == "" {
			name = "unknown signal"
		}
		return 128 + int(sig), name
	default:
		return 1, ""
	}
}

// RelaySignals starts the process-lifetime termination listener. Each
// SIGINT or SIGTERM triggers one guarded read of handle: when the daemon is
// running the signal is relayed to it as SIGTERM, otherwise the process
// exits immediately with ExitBeforeSpawn. Once a child exists the listener
// never stops the process itself; shutdown flows through the daemon's own
// exit and Wait.
func RelaySignals(handle *Handle, logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, unix.SIGTERM)
	go func() {
		for sig := range ch {
			relay(handle, sig, logger)
		}
	}()
}

func relay(handle *Handle, sig os.Signal, logger *slog.Logger) {
	pid, ok := handle.Get()
	if !ok {
		osExit(ExitBeforeSpawn)
		return
	}
	logger.Info("relaying termination signal",
		logging.String("signal", sig.String()),
		logging.Int("pid", pid))
	if err := kill(pid, unix.SIGTERM); err != nil {
		logger.Error("signal daemon", logging.Error(err), logging.Int("pid", pid))
	}
}
