package supervisor

import (
	"os"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"minder/internal/logging"
)

func TestHandleGetBeforeSet(t *testing.T) {
	var handle Handle
	if _, ok := handle.Get(); ok {
		t.Fatal("expected empty handle before Set")
	}

	handle.Set(4242)
	pid, ok := handle.Get()
	if !ok || pid != 4242 {
		t.Fatalf("unexpected handle contents: %d ok=%v", pid, ok)
	}
}

func TestRelayWithoutChildExits(t *testing.T) {
	exitCode := -1
	originalExit := osExit
	osExit = func(code int) { exitCode = code }
	t.Cleanup(func() { osExit = originalExit })

	killed := false
	originalKill := kill
	kill = func(pid int, sig syscall.Signal) error {
		killed = true
		return nil
	}
	t.Cleanup(func() { kill = originalKill })

	relay(&Handle{}, syscall.SIGTERM, logging.NewNop())

	if exitCode != ExitBeforeSpawn {
		t.Fatalf("expected exit code %d, got %d", ExitBeforeSpawn, exitCode)
	}
	if killed {
		t.Fatal("no signal should be sent when no child exists")
	}
}

func TestRelayWithChildSendsSigterm(t *testing.T) {
	exited := false
	originalExit := osExit
	osExit = func(int) { exited = true }
	t.Cleanup(func() { osExit = originalExit })

	var gotPID int
	var gotSig syscall.Signal
	originalKill := kill
	kill = func(pid int, sig syscall.Signal) error {
		gotPID, gotSig = pid, sig
		return nil
	}
	t.Cleanup(func() { kill = originalKill })

	handle := &Handle{}
	handle.Set(4242)
	relay(handle, syscall.SIGINT, logging.NewNop())

	if exited {
		t.Fatal("process must not exit when a child exists")
	}
	if gotPID != 4242 || gotSig != unix.SIGTERM {
		t.Fatalf("unexpected relay target: pid=%d sig=%v", gotPID, gotSig)
	}
}

func TestSupervisorPropagatesExitCode(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("MINDER_HELPER_MODE", "exit7")

	handle := &Handle{}
	sup := New(os.Args[0], []string{"-test.run=TestHelperProcess"}, handle, logging.NewNop())
	if err := sup.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, ok := handle.Get(); !ok {
		t.Fatal("expected handle to hold the child pid after Start")
	}

	if code := sup.Wait(); code != 7 {
		t.Fatalf("expected exit code 7, got %d", code)
	}
}

func TestSupervisorMapsSignalDeath(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("MINDER_HELPER_MODE", "sleep")

	handle := &Handle{}
	sup := New(os.Args[0], []string{"-test.run=TestHelperProcess"}, handle, logging.NewNop())
	if err := sup.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	pid, ok := handle.Get()
	if !ok {
		t.Fatal("expected handle to hold the child pid")
	}
	// Give the child a moment to boot before signaling it.
	time.Sleep(100 * time.Millisecond)
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		t.Fatalf("kill child: %v", err)
	}

	if code := sup.Wait(); code != 128+int(unix.SIGTERM) {
		t.Fatalf("expected exit code %d, got %d", 128+int(unix.SIGTERM), code)
	}
}

func TestSupervisorStartFailureIsFatal(t *testing.T) {
	sup := New("/nonexistent/minder-test-binary", nil, &Handle{}, logging.NewNop())
	if err := sup.Start(); err == nil {
		t.Fatal("expected error when the daemon binary does not exist")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("MINDER_HELPER_MODE") {
	case "exit7":
		os.Exit(7)
	case "sleep":
		time.Sleep(time.Minute)
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
