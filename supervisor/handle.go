package supervisor

import (
	"os/exec"
	"time"

	"github.com/rkonfj/camcast/id"
)

// ProcessHandle is the process group launched by one Start call.
type ProcessHandle struct {
	ID      string
	Cmd     string
	Pid     int
	Pgid    int
	Started time.Time

	done chan struct{}
	err  error
}

func newHandle(cmd string) *ProcessHandle {
	return &ProcessHandle{ID: id.New(id.Handle), Cmd: cmd, done: make(chan struct{})}
}

// attach records the started leader and reaps it in the background.
func (h *ProcessHandle) attach(c *exec.Cmd) {
	h.Pid = c.Process.Pid
	// Setpgid with Pgid 0 makes the leader's pid the group id
	h.Pgid = h.Pid
	h.Started = time.Now()
	go func() {
		h.err = c.Wait()
		close(h.done)
	}()
}

// exited reports whether the group leader has been reaped.
func (h *ProcessHandle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err is the leader's exit error, valid once it has exited.
func (h *ProcessHandle) Err() error {
	if !h.exited() {
		return nil
	}
	return h.err
}
