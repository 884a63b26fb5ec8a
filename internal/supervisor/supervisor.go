// Package supervisor launches and babysits the local backend process:
// discovery, spawn, liveness monitoring, periodic health probes, and
// bounded auto-restart with capped exponential backoff.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

// State is the supervisor's lifecycle state.
type State string

const (
	StateStopped    State = "stopped"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateDegraded   State = "degraded"
	StateRestarting State = "restarting"
	StateDisabled   State = "disabled"
)

// Timing defaults.
const (
	DefaultMonitorInterval = 5 * time.Second
	DefaultHealthInterval  = 30 * time.Second
	DefaultRestartDelay    = 2 * time.Second
	DefaultMaxRestartDelay = 30 * time.Second
	DefaultMaxRestarts     = 5

	// startGraceDelay is how long a freshly spawned backend gets before its
	// first health probe.
	startGraceDelay = 1500 * time.Millisecond

	// healthFailureThreshold is how many consecutive probe failures trigger
	// a restart.
	healthFailureThreshold = 3

	// Stop escalation: graceful term, wait, interrupt, short wait, kill.
	stopGraceTimeout     = 2 * time.Second
	stopInterruptTimeout = 200 * time.Millisecond

	portProbeTimeout = 500 * time.Millisecond
)

// Options configures a Supervisor.
type Options struct {
	// Host and Port locate the backend's listen address.
	Host string
	Port int

	// ProjectRoot anchors interpreter and script discovery.
	ProjectRoot string

	// InterpreterPath and ScriptPath override discovery when set.
	InterpreterPath string
	ScriptPath      string

	// Probe performs one HTTP health check against the backend.
	Probe func(ctx context.Context) error

	// LogSink receives the child process's stdout and stderr.
	// Defaults to os.Stderr.
	LogSink io.Writer

	AutoRestart bool
	MaxRestarts int

	MonitorInterval time.Duration
	HealthInterval  time.Duration
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// SpawnCommand builds the child process command. Defaults to
	// `interpreter -u script` with PYTHONUNBUFFERED set. Tests substitute
	// short-lived shell processes here.
	SpawnCommand func(interpreter, script string) *exec.Cmd
}

// Status is a point-in-time snapshot for display.
type Status struct {
	State           State  `json:"state"`
	PID             int    `json:"pid,omitempty"`
	Adopted         bool   `json:"adopted,omitempty"`
	RestartAttempts int    `json:"restart_attempts"`
	LastError       string `json:"last_error,omitempty"`
}

// Supervisor owns the backend process handle. All state transitions happen
// under one mutex; the monitor and health loops each run on their own
// ticker goroutine, which makes every tick naturally single-flight.
type Supervisor struct {
	opts Options

	mu            sync.Mutex
	state         State
	cmd           *exec.Cmd
	pid           int
	adopted       bool
	procDone      chan struct{} // closed when the current child exits
	restartCount  int
	healthFails   int
	lastRestartAt time.Time
	lastErr       error

	loopCtx    context.Context
	loopCancel context.CancelFunc
	loopsOnce  sync.Once
	loopsDone  sync.WaitGroup
}

// New creates a Supervisor in the Stopped state.
func New(opts Options) *Supervisor {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.LogSink == nil {
		opts.LogSink = os.Stderr
	}
	if opts.MaxRestarts <= 0 {
		opts.MaxRestarts = DefaultMaxRestarts
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = DefaultMonitorInterval
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = DefaultHealthInterval
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.MaxRestartDelay <= 0 {
		opts.MaxRestartDelay = DefaultMaxRestartDelay
	}
	if opts.SpawnCommand == nil {
		opts.SpawnCommand = defaultSpawnCommand
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		opts:       opts,
		state:      StateStopped,
		loopCtx:    ctx,
		loopCancel: cancel,
	}
}

func defaultSpawnCommand(interpreter, script string) *exec.Cmd {
	cmd := exec.Command(interpreter, "-u", script)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	return cmd
}

// Start brings the backend up. Calling Start while Running with a live
// process is a no-op. If the configured port is already occupied, a healthy
// listener is adopted as-is; an unhealthy one is a fatal error, since the
// supervisor never kills a process it did not spawn.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning && s.processAliveLocked() {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateDisabled {
		err := s.lastErr
		s.mu.Unlock()
		if err == nil {
			err = errors.NewConfiguration("supervisor disabled after exhausting restart attempts")
		}
		return err
	}
	s.mu.Unlock()

	addr := net.JoinHostPort(s.opts.Host, fmt.Sprintf("%d", s.opts.Port))
	if portOccupied(addr) {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := s.probe(probeCtx)
		cancel()
		if err == nil {
			slog.Info("adopting existing healthy backend", "addr", addr)
			s.mu.Lock()
			s.state = StateRunning
			s.adopted = true
			s.cmd = nil
			s.pid = 0
			s.lastErr = nil
			s.mu.Unlock()
			s.ensureLoops()
			return nil
		}
		cfgErr := errors.NewConfiguration(fmt.Sprintf(
			"port %d is occupied by an unresponsive process; stop it manually and retry", s.opts.Port))
		s.setLastError(cfgErr)
		return cfgErr
	}

	interpreter, err := DiscoverInterpreter(s.opts.ProjectRoot, s.opts.InterpreterPath)
	if err != nil {
		s.setLastError(err)
		return err
	}
	script, err := DiscoverScript(s.opts.ProjectRoot, s.opts.ScriptPath)
	if err != nil {
		s.setLastError(err)
		return err
	}

	if err := s.spawn(interpreter, script); err != nil {
		s.setLastError(err)
		return err
	}
	s.ensureLoops()

	go s.confirmStart()
	return nil
}

// spawn launches the child and records its handle, moving to Starting.
func (s *Supervisor) spawn(interpreter, script string) error {
	cmd := s.opts.SpawnCommand(interpreter, script)
	cmd.Stdout = s.opts.LogSink
	cmd.Stderr = s.opts.LogSink

	if err := cmd.Start(); err != nil {
		return errors.NewConfiguration(fmt.Sprintf("failed to launch backend: %v", err))
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	s.mu.Lock()
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.adopted = false
	s.procDone = done
	s.state = StateStarting
	s.healthFails = 0
	s.lastErr = nil
	s.mu.Unlock()

	slog.Info("backend spawned", "pid", cmd.Process.Pid, "interpreter", interpreter, "script", script)
	return nil
}

// confirmStart waits out the grace delay, then promotes Starting to Running
// on a successful probe, or Degraded if the process is alive but not yet
// answering.
func (s *Supervisor) confirmStart() {
	select {
	case <-s.loopCtx.Done():
		return
	case <-time.After(startGraceDelay):
	}

	probeCtx, cancel := context.WithTimeout(s.loopCtx, 3*time.Second)
	err := s.probe(probeCtx)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStarting {
		return
	}
	if err == nil {
		s.state = StateRunning
		slog.Info("backend healthy", "pid", s.pid)
		return
	}
	if s.processAliveLocked() {
		s.state = StateDegraded
		slog.Warn("backend started but failed first health probe", "pid", s.pid, "err", err)
	}
}

// Stop terminates the backend with escalation: graceful termination, a 2s
// wait, an interrupt signal, a 0.2s wait, then a forced kill. The process
// handle and recorded pid are cleared no matter which step succeeded.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd := s.cmd
	done := s.procDone
	s.cmd = nil
	s.pid = 0
	s.adopted = false
	s.procDone = nil
	s.state = StateStopped
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	terminate(cmd, done)
}

func terminate(cmd *exec.Cmd, done chan struct{}) {
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
		return
	case <-time.After(stopGraceTimeout):
	}

	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-done:
		return
	case <-time.After(stopInterruptTimeout):
	}

	_ = cmd.Process.Kill()
	<-done
}

// Restart resets the restart budget and forces an immediate stop/start
// cycle, bypassing any cooldown.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	s.restartCount = 0
	s.healthFails = 0
	s.lastRestartAt = time.Time{}
	if s.state == StateDisabled {
		s.state = StateStopped
	}
	s.lastErr = nil
	s.mu.Unlock()

	s.Stop()
	return s.Start(ctx)
}

// Shutdown stops the loops and the child process. The supervisor cannot be
// restarted afterwards.
func (s *Supervisor) Shutdown() {
	s.loopCancel()
	s.Stop()
	s.loopsDone.Wait()
}

// Status returns a snapshot for display.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:           s.state,
		PID:             s.pid,
		Adopted:         s.adopted,
		RestartAttempts: s.restartCount,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RestartBackoff returns the cooldown before the given 1-based restart
// attempt: 2s doubling per attempt, capped at 30s.
func (s *Supervisor) RestartBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.opts.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.opts.MaxRestartDelay {
			return s.opts.MaxRestartDelay
		}
	}
	if delay > s.opts.MaxRestartDelay {
		delay = s.opts.MaxRestartDelay
	}
	return delay
}

// ensureLoops starts the monitor and health ticker goroutines once.
func (s *Supervisor) ensureLoops() {
	s.loopsOnce.Do(func() {
		s.loopsDone.Add(2)
		go s.monitorLoop()
		go s.healthLoop()
	})
}

// monitorLoop checks process liveness every MonitorInterval. Each tick runs
// to completion on this goroutine before the next is handled, so ticks
// never overlap.
func (s *Supervisor) monitorLoop() {
	defer s.loopsDone.Done()
	ticker := time.NewTicker(s.opts.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.loopCtx.Done():
			return
		case <-ticker.C:
			s.checkProcess()
		}
	}
}

// healthLoop probes /health every HealthInterval while the backend should
// be serving. Three consecutive failures trigger a restart.
func (s *Supervisor) healthLoop() {
	defer s.loopsDone.Done()
	ticker := time.NewTicker(s.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.loopCtx.Done():
			return
		case <-ticker.C:
			s.checkHealth()
		}
	}
}

func (s *Supervisor) checkProcess() {
	s.mu.Lock()
	state := s.state
	alive := s.processAliveLocked()
	spawned := s.cmd != nil
	s.mu.Unlock()

	if state != StateRunning && state != StateDegraded && state != StateStarting {
		return
	}
	if !spawned || alive {
		return
	}

	slog.Warn("backend process exited unexpectedly")
	s.handleBackendDown()
}

func (s *Supervisor) checkHealth() {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateRunning && state != StateDegraded {
		return
	}

	probeCtx, cancel := context.WithTimeout(s.loopCtx, 5*time.Second)
	err := s.probe(probeCtx)
	cancel()

	s.mu.Lock()
	if err == nil {
		s.healthFails = 0
		if s.state == StateDegraded {
			s.state = StateRunning
			slog.Info("backend recovered", "pid", s.pid)
		}
		s.mu.Unlock()
		return
	}

	s.healthFails++
	fails := s.healthFails
	if s.state == StateRunning {
		s.state = StateDegraded
	}
	s.mu.Unlock()

	slog.Warn("backend health probe failed", "consecutive", fails, "err", err)
	if fails >= healthFailureThreshold {
		s.handleBackendDown()
	}
}

// handleBackendDown drives the Restarting transition: wait out the backoff
// cooldown, tear down any stale handle, and relaunch. Exceeding the restart
// budget disables the supervisor with a terminal error.
func (s *Supervisor) handleBackendDown() {
	s.mu.Lock()
	if s.state == StateRestarting || s.state == StateDisabled || s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	if !s.opts.AutoRestart {
		s.state = StateStopped
		s.cmd = nil
		s.pid = 0
		s.mu.Unlock()
		slog.Info("backend down, auto-restart disabled")
		return
	}

	s.restartCount++
	attempt := s.restartCount
	if attempt > s.opts.MaxRestarts {
		s.state = StateDisabled
		s.lastErr = errors.NewConfiguration(fmt.Sprintf(
			"backend failed %d times; auto-restart disabled. Restart it manually with `simplecp backend restart` (or kill any stale process on port %d first)",
			s.opts.MaxRestarts, s.opts.Port))
		s.mu.Unlock()
		slog.Error("restart budget exhausted, supervisor disabled")
		return
	}

	s.state = StateRestarting
	s.healthFails = 0
	last := s.lastRestartAt
	s.lastRestartAt = time.Now()
	s.mu.Unlock()

	cooldown := s.RestartBackoff(attempt)
	if !last.IsZero() {
		if elapsed := time.Since(last); elapsed < cooldown {
			cooldown = cooldown - elapsed
		}
	}
	slog.Info("restarting backend", "attempt", attempt, "cooldown", cooldown)

	s.Stop()
	s.mu.Lock()
	s.state = StateRestarting // Stop resets to Stopped; restart continues
	s.mu.Unlock()

	select {
	case <-s.loopCtx.Done():
		return
	case <-time.After(cooldown):
	}

	if err := s.Start(s.loopCtx); err != nil {
		slog.Error("backend relaunch failed", "err", err)
		s.setLastError(err)
	}
}

func (s *Supervisor) probe(ctx context.Context) error {
	if s.opts.Probe == nil {
		return errors.NewConfiguration("no health probe configured")
	}
	return s.opts.Probe(ctx)
}

func (s *Supervisor) processAliveLocked() bool {
	if s.adopted {
		return true
	}
	if s.cmd == nil || s.procDone == nil {
		return false
	}
	select {
	case <-s.procDone:
		return false
	default:
		return true
	}
}

func (s *Supervisor) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func portOccupied(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, portProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
