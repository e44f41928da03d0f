package opencode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// State is the supervisor lifecycle state. There is no transition back to
// StateNotStarted; a failed or stopped server stays StateStopped.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateHealthy
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateHealthy:
		return "healthy"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ServerOptions configures a Server supervisor.
type ServerOptions struct {
	Hostname         string
	Port             int
	WorkingDirectory string
	// StartupRetries is the health-poll attempt budget after spawn.
	StartupRetries int
	// StartupInterval is the delay between health-poll attempts.
	StartupInterval time.Duration
	// StopTimeout bounds the graceful-termination wait before a kill.
	StopTimeout time.Duration
}

// Server supervises a single local `opencode serve` subprocess. At most one
// process handle is live per Server; Start and Stop are safe to call from
// concurrent goroutines.
type Server struct {
	opts   ServerOptions
	client *Client

	mu    sync.Mutex
	state State
	cmd   *exec.Cmd
	done  chan error // closed result of cmd.Wait

	// command is the executable name, overridable in tests.
	command string
}

// NewServer creates a supervisor whose health polls go through client.
func NewServer(opts ServerOptions, client *Client) *Server {
	if opts.StartupRetries <= 0 {
		opts.StartupRetries = 30
	}
	if opts.StartupInterval <= 0 {
		opts.StartupInterval = time.Second
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	return &Server{
		opts:    opts,
		client:  client,
		state:   StateNotStarted,
		command: "opencode",
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start spawns `opencode serve` and blocks until the server reports healthy.
// Returns ErrAlreadyRunning if a handle is already live, ErrStartupTimeout
// (after killing the spawned process) if it never becomes healthy.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	cmd := exec.Command(s.command, "serve",
		"--hostname", s.opts.Hostname,
		"--port", strconv.Itoa(s.opts.Port),
	)
	cmd.Dir = s.opts.WorkingDirectory

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	slog.Info("Starting opencode server",
		"command", s.command,
		"hostname", s.opts.Hostname,
		"port", s.opts.Port,
		"cwd", s.opts.WorkingDirectory)

	if err := cmd.Start(); err != nil {
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("spawn %s: %w", s.command, err)
	}

	s.cmd = cmd
	s.state = StateStarting
	done := make(chan error, 1)
	s.done = done
	s.mu.Unlock()

	go forwardOutput(stdout, "stdout")
	go forwardOutput(stderr, "stderr")
	go func() { done <- cmd.Wait() }()

	slog.Info("opencode server started", "pid", cmd.Process.Pid)

	if err := s.waitHealthy(ctx); err != nil {
		// The process is useless if it never answers; reap it.
		_ = s.Stop()
		return err
	}

	s.mu.Lock()
	s.state = StateHealthy
	s.mu.Unlock()
	return nil
}

// waitHealthy polls /global/health until the server answers healthy or the
// retry budget is spent.
func (s *Server) waitHealthy(ctx context.Context) error {
	for attempt := 1; attempt <= s.opts.StartupRetries; attempt++ {
		health, err := s.client.Health(ctx)
		if err == nil && health.Healthy {
			slog.Info("opencode server healthy", "attempt", attempt)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.StartupInterval):
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrStartupTimeout, s.opts.StartupRetries)
}

// Stop gracefully terminates the subprocess: SIGTERM, bounded wait, then
// SIGKILL. A Stop with no live process is a no-op. Stop never returns an
// error that should abort shutdown sequencing; it always releases the HTTP
// connection pool.
func (s *Server) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	if cmd == nil {
		s.mu.Unlock()
		s.client.Close()
		return nil
	}
	s.state = StateStopping
	s.cmd = nil
	s.done = nil
	s.mu.Unlock()

	defer s.client.Close()
	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
	}()

	pid := cmd.Process.Pid
	slog.Info("Stopping opencode server", "pid", pid)

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone; collect the wait result so the process is reaped.
		<-done
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.opts.StopTimeout):
		slog.Warn("Force-killing opencode server", "pid", pid)
		_ = cmd.Process.Kill()
		<-done
		return nil
	}
}

func forwardOutput(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Debug("opencode "+stream, "line", scanner.Text())
	}
}
