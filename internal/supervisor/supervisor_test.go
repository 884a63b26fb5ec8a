package supervisor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

func probeOK(ctx context.Context) error { return nil }

func probeFail(ctx context.Context) error {
	return errors.NewTransport(fmt.Errorf("connection refused"))
}

// freePort reserves an ephemeral port and releases it so the supervisor sees
// it as unoccupied.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// fakeBackend writes an executable interpreter and a script into a temp dir
// so discovery succeeds without touching the real system.
func fakeBackend(t *testing.T) (interpreter, script string) {
	t.Helper()
	dir := t.TempDir()
	interpreter = filepath.Join(dir, "python3")
	writeFile(t, interpreter, 0755)
	script = filepath.Join(dir, "main.py")
	writeFile(t, script, 0644)
	return interpreter, script
}

func waitForState(t *testing.T, s *Supervisor, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("state = %q after %v, want %q", s.State(), timeout, want)
}

func TestRestartBackoff(t *testing.T) {
	s := New(Options{Probe: probeOK})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{0, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := s.RestartBackoff(tt.attempt); got != tt.want {
			t.Errorf("RestartBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRestartBackoff_CustomDelays(t *testing.T) {
	s := New(Options{
		Probe:           probeOK,
		RestartDelay:    100 * time.Millisecond,
		MaxRestartDelay: 350 * time.Millisecond,
	})
	if got := s.RestartBackoff(2); got != 200*time.Millisecond {
		t.Errorf("RestartBackoff(2) = %v, want 200ms", got)
	}
	if got := s.RestartBackoff(3); got != 350*time.Millisecond {
		t.Errorf("RestartBackoff(3) = %v, want cap 350ms", got)
	}
}

func TestStart_AdoptsHealthyListener(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	s := New(Options{Host: host, Port: port, Probe: probeOK})
	defer s.Shutdown()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	st := s.Status()
	if st.State != StateRunning {
		t.Errorf("state = %q, want running", st.State)
	}
	if !st.Adopted {
		t.Errorf("expected adopted backend")
	}
	if st.PID != 0 {
		t.Errorf("adopted backend must not record a pid, got %d", st.PID)
	}

	// Second Start is a no-op against an adopted running backend.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
}

func TestStart_OccupiedUnhealthyPortIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s := New(Options{Host: "127.0.0.1", Port: port, Probe: probeFail})
	defer s.Shutdown()

	err = s.Start(context.Background())
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("state = %q, want stopped", got)
	}
}

func TestStart_MissingScript(t *testing.T) {
	dir := t.TempDir()
	interpreter := filepath.Join(dir, "python3")
	writeFile(t, interpreter, 0755)

	s := New(Options{
		Host:            "127.0.0.1",
		Port:            freePort(t),
		ProjectRoot:     dir,
		InterpreterPath: interpreter,
		Probe:           probeOK,
	})
	defer s.Shutdown()

	err := s.Start(context.Background())
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if st := s.Status(); st.LastError == "" {
		t.Errorf("expected last error to be recorded")
	}
}

func TestStart_SpawnConfirmStop(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real process and waits out the start grace delay")
	}

	interpreter, script := fakeBackend(t)
	s := New(Options{
		Host:            "127.0.0.1",
		Port:            freePort(t),
		InterpreterPath: interpreter,
		ScriptPath:      script,
		Probe:           probeOK,
		SpawnCommand: func(_, _ string) *exec.Cmd {
			return exec.Command("/bin/sh", "-c", "sleep 30")
		},
	})
	defer s.Shutdown()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	st := s.Status()
	if st.State != StateStarting {
		t.Errorf("state right after Start = %q, want starting", st.State)
	}
	if st.PID == 0 {
		t.Errorf("expected a recorded pid for a spawned backend")
	}

	waitForState(t, s, StateRunning, 4*time.Second)

	s.Stop()
	st = s.Status()
	if st.State != StateStopped {
		t.Errorf("state after Stop = %q, want stopped", st.State)
	}
	if st.PID != 0 {
		t.Errorf("pid after Stop = %d, want cleared", st.PID)
	}
}

func TestStart_SpawnDegradedWhenProbeFails(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real process and waits out the start grace delay")
	}

	interpreter, script := fakeBackend(t)
	s := New(Options{
		Host:            "127.0.0.1",
		Port:            freePort(t),
		InterpreterPath: interpreter,
		ScriptPath:      script,
		Probe:           probeFail,
		SpawnCommand: func(_, _ string) *exec.Cmd {
			return exec.Command("/bin/sh", "-c", "sleep 30")
		},
	})
	defer s.Shutdown()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForState(t, s, StateDegraded, 4*time.Second)
}

func TestStop_NoProcessIsNoop(t *testing.T) {
	s := New(Options{Probe: probeOK})
	s.Stop()
	if got := s.State(); got != StateStopped {
		t.Errorf("state = %q, want stopped", got)
	}
}

func TestStop_EscalatesToKill(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the full stop escalation")
	}

	interpreter, script := fakeBackend(t)
	s := New(Options{
		Host:            "127.0.0.1",
		Port:            freePort(t),
		InterpreterPath: interpreter,
		ScriptPath:      script,
		Probe:           probeOK,
		SpawnCommand: func(_, _ string) *exec.Cmd {
			// Ignores both signals used by the escalation, forcing the kill.
			return exec.Command("/bin/sh", "-c", "trap : TERM INT; while :; do sleep 0.1; done")
		},
	})
	defer s.Shutdown()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	started := time.Now()
	s.Stop()
	elapsed := time.Since(started)

	if elapsed < stopGraceTimeout {
		t.Errorf("Stop returned after %v, expected it to wait out the grace timeout first", elapsed)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("state = %q, want stopped", got)
	}
}

func TestCheckHealth_RecoversFromDegraded(t *testing.T) {
	s := New(Options{Probe: probeOK})
	s.mu.Lock()
	s.state = StateDegraded
	s.healthFails = 2
	s.mu.Unlock()

	s.checkHealth()

	if got := s.State(); got != StateRunning {
		t.Errorf("state = %q, want running after successful probe", got)
	}
	s.mu.Lock()
	fails := s.healthFails
	s.mu.Unlock()
	if fails != 0 {
		t.Errorf("healthFails = %d, want reset to 0", fails)
	}
}

func TestCheckHealth_ThresholdStopsWithoutAutoRestart(t *testing.T) {
	s := New(Options{Probe: probeFail, AutoRestart: false})
	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	s.checkHealth()
	if got := s.State(); got != StateDegraded {
		t.Fatalf("state after first failure = %q, want degraded", got)
	}

	s.checkHealth()
	s.checkHealth()
	if got := s.State(); got != StateStopped {
		t.Errorf("state after %d failures = %q, want stopped", healthFailureThreshold, got)
	}
}

func TestCheckHealth_IgnoredWhileStarting(t *testing.T) {
	s := New(Options{Probe: probeFail})
	s.mu.Lock()
	s.state = StateStarting
	s.mu.Unlock()

	s.checkHealth()
	if got := s.State(); got != StateStarting {
		t.Errorf("state = %q, want starting untouched", got)
	}
}

func TestHandleBackendDown_ExhaustsBudget(t *testing.T) {
	s := New(Options{Probe: probeFail, AutoRestart: true, MaxRestarts: 1})
	s.mu.Lock()
	s.state = StateDegraded
	s.restartCount = 1
	s.mu.Unlock()

	s.handleBackendDown()

	if got := s.State(); got != StateDisabled {
		t.Fatalf("state = %q, want disabled", got)
	}
	st := s.Status()
	if st.LastError == "" {
		t.Errorf("expected a remediation message in last error")
	}

	// Start while disabled surfaces the terminal error instead of spawning.
	err := s.Start(context.Background())
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Errorf("Start while disabled: err = %v, want configuration error", err)
	}
}

func TestRestart_ResetsBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s := New(Options{Host: host, Port: port, Probe: probeOK, AutoRestart: true, MaxRestarts: 1})
	defer s.Shutdown()

	s.mu.Lock()
	s.state = StateDisabled
	s.restartCount = 2
	s.lastErr = errors.NewConfiguration("exhausted")
	s.mu.Unlock()

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	st := s.Status()
	if st.State != StateRunning {
		t.Errorf("state = %q, want running", st.State)
	}
	if st.RestartAttempts != 0 {
		t.Errorf("restart attempts = %d, want reset to 0", st.RestartAttempts)
	}
	if st.LastError != "" {
		t.Errorf("last error = %q, want cleared", st.LastError)
	}
}
