package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

var (
	ErrLaunchFailure = errors.New("launch failure")
	ErrNoCommand     = errors.New("no command to restart")

	errGroupAlive = errors.New("process group still alive")
)

type State int

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const (
	DefaultShell       = "/bin/sh"
	DefaultGracePeriod = time.Second

	// how long to wait for the group to vanish after each SIGKILL
	killWait = 100 * time.Millisecond
	pollStep = 10 * time.Millisecond
)

type Options struct {
	Shell       string        // command interpreter, default /bin/sh
	GracePeriod time.Duration // SIGTERM to SIGKILL delay, default 1s
	// KillBackOff paces repeated SIGKILLs. It must never give up.
	KillBackOff func() backoff.BackOff
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Logger      logrus.FieldLogger
}

// Supervisor owns at most one live process group. Start replaces the
// current group, Stop returns only once the group is confirmed dead.
type Supervisor struct {
	mu      sync.Mutex
	opts    Options
	logger  logrus.FieldLogger
	handle  *ProcessHandle
	lastCmd string

	// read without mu so Stopping is visible while Stop runs
	state atomic.Int32
}

var subreaperOnce sync.Once

func New(opts Options) *Supervisor {
	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.KillBackOff == nil {
		opts.KillBackOff = defaultKillBackOff
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	subreaperOnce.Do(func() {
		if err := becomeSubreaper(); err != nil {
			logger.Warnf("supervisor: cannot become child subreaper: %s", err)
		}
	})
	return &Supervisor{opts: opts, logger: logger}
}

func defaultKillBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Start launches cmd through the shell as a new process group leader,
// stopping the current group first.
func (s *Supervisor) Start(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(cmd)
}

// Stop terminates the current group: SIGTERM, grace period, then
// SIGKILL until nothing in the group is left. No-op when idle.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
}

// Restart stops the current group and relaunches the last command.
func (s *Supervisor) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCmd == "" {
		return ErrNoCommand
	}
	return s.start(s.lastCmd)
}

// Running reports whether any process of the current group is alive.
// It does not block.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handle
	if h == nil {
		return false
	}
	if !h.exited() {
		return true
	}
	reapGroup(h.Pgid)
	return groupAlive(h.Pgid)
}

// State is the lifecycle state. It does not wait for a Stop in
// progress, which reports Stopping. A group that exits on its own stays
// Running until the next Stop or Start; use Running for liveness.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

// Pid of the current group leader, 0 when idle.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0
	}
	return s.handle.Pid
}

func (s *Supervisor) start(cmd string) error {
	s.lastCmd = cmd
	if s.handle != nil {
		s.stop()
	}

	c := exec.Command(s.opts.Shell, "-c", cmd)
	c.SysProcAttr = sysProcAttr()
	c.Stdin = s.opts.Stdin
	c.Stdout = s.opts.Stdout
	c.Stderr = s.opts.Stderr

	h := newHandle(cmd)
	if err := c.Start(); err != nil {
		s.setState(Idle)
		return fmt.Errorf("%w: %w", ErrLaunchFailure, err)
	}
	h.attach(c)
	s.handle = h
	s.setState(Running)
	s.logger.WithField("handle", h.ID).WithField("pid", h.Pid).Infof("started: %s", cmd)
	return nil
}

func (s *Supervisor) stop() {
	h := s.handle
	if h == nil {
		return
	}
	s.setState(Stopping)
	logger := s.logger.WithField("handle", h.ID).WithField("pgid", h.Pgid)

	if err := signalGroup(h.Pgid, syscall.SIGTERM); err != nil {
		logger.Debugf("sigterm: %s", err)
	}
	if !s.awaitGroup(h, s.opts.GracePeriod) {
		attempts := 0
		// never gives up: the returned error is always nil
		backoff.RetryNotify(func() error {
			attempts++
			if err := signalGroup(h.Pgid, syscall.SIGKILL); err != nil {
				logger.Debugf("sigkill: %s", err)
			}
			if !s.awaitGroup(h, killWait) {
				return errGroupAlive
			}
			return nil
		}, s.opts.KillBackOff(), func(err error, next time.Duration) {
			logger.Warnf("%s after %d SIGKILL, retry in %s", err, attempts, next)
		})
		logger.Debugf("killed after %d SIGKILL", attempts)
	}

	logger.Infof("stopped (%s)", exitReason(h))
	s.handle = nil
	s.setState(Idle)
}

// awaitGroup waits up to d for the whole group to disappear.
func (s *Supervisor) awaitGroup(h *ProcessHandle, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if h.exited() {
			reapGroup(h.Pgid)
			if !groupAlive(h.Pgid) {
				return true
			}
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(pollStep)
	}
}

func exitReason(h *ProcessHandle) string {
	if err := h.Err(); err != nil {
		return err.Error()
	}
	return "exit status 0"
}
