package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rkonfj/camcast/message"
	"github.com/rkonfj/camcast/pipeline"
	"github.com/stretchr/testify/require"
)

type fakeInbox struct {
	mu      sync.Mutex
	pending []message.Message
}

func (f *fakeInbox) push(msgs ...message.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, msgs...)
}

func (f *fakeInbox) DrainAll() []message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.pending
	f.pending = nil
	return msgs
}

// fakeProcess records calls and stands in for the supervisor.
type fakeProcess struct {
	mu       sync.Mutex
	running  bool
	started  []string
	stops    int
	startErr error
	events   []string
}

func (f *fakeProcess) Start(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "start")
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, cmd)
	f.running = true
	return nil
}

func (f *fakeProcess) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "stop")
	f.stops++
	f.running = false
}

func (f *fakeProcess) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func newTestServer(name *string) (*Server, *fakeInbox, *fakeProcess, *[]time.Duration) {
	inbox := &fakeInbox{}
	proc := &fakeProcess{}
	s := New(inbox, proc, Options{
		Hostname:   "pi1",
		CameraName: name,
		Source:     pipeline.USBCam{Device: "/dev/video0"},
	})
	var slept []time.Duration
	s.sleep = func(d time.Duration) {
		slept = append(slept, d)
	}
	return s, inbox, proc, &slept
}

func TestCloseMatchingCamera(t *testing.T) {
	s, inbox, proc, _ := newTestServer(message.Name("cam0"))
	proc.running = true

	inbox.push(&message.CloseRequest{Host: "pi1", Name: message.Name("cam0")})
	require.Equal(t, 1, s.ParseMessages())
	require.False(t, s.Viewing())
	require.Equal(t, 1, proc.stops)

	proc.running = true
	inbox.push(&message.CloseRequest{Host: "pi1", Name: message.Name("cam1")})
	s.ParseMessages()
	require.True(t, s.Viewing())
	require.Equal(t, 1, proc.stops)
}

func TestIgnoresOtherHostsAndNames(t *testing.T) {
	s, inbox, proc, _ := newTestServer(nil)
	inbox.push(
		&message.CloseRequest{Host: "pi2"},
		&message.CloseRequest{Host: "pi1", Name: message.Name("cam0")},
		&message.OpenRequest{IP: "10.0.0.1", Host: "pi2", Resolution: message.Resolution{Width: 320, Height: 240}, Port: 5001},
	)
	require.Equal(t, 3, s.ParseMessages())
	require.Empty(t, proc.events)
}

func TestOpenStartsAfterDelay(t *testing.T) {
	s, inbox, proc, slept := newTestServer(nil)
	inbox.push(&message.OpenRequest{
		IP:         "192.168.1.50",
		Host:       "pi1",
		Resolution: message.Resolution{Width: 640, Height: 480},
		Port:       5001,
	})
	s.ParseMessages()

	require.Equal(t, []time.Duration{DefaultStartDelay}, *slept)
	require.Len(t, proc.started, 1)
	require.Contains(t, proc.started[0], "host=192.168.1.50 port=5001")
	require.Contains(t, proc.started[0], "width=640,height=480")
	require.True(t, s.Viewing())
}

func TestMessagesHandledInOrder(t *testing.T) {
	s, inbox, proc, _ := newTestServer(nil)
	open := &message.OpenRequest{IP: "10.0.0.9", Host: "pi1", Resolution: message.Resolution{Width: 320, Height: 240}, Port: 5002}
	inbox.push(open, &message.CloseRequest{Host: "pi1"}, open)
	s.ParseMessages()
	require.Equal(t, []string{"start", "stop", "start"}, proc.events)
}

func TestLaunchFailureKeepsServing(t *testing.T) {
	s, inbox, proc, _ := newTestServer(nil)
	proc.startErr = errors.New("launch failure: no shell")
	open := &message.OpenRequest{IP: "10.0.0.9", Host: "pi1", Resolution: message.Resolution{Width: 320, Height: 240}, Port: 5002}
	inbox.push(open)
	s.ParseMessages()
	require.False(t, s.Viewing())

	proc.startErr = nil
	inbox.push(open)
	s.ParseMessages()
	require.True(t, s.Viewing())
}

func TestRunStopsPipelineOnCancel(t *testing.T) {
	inbox := &fakeInbox{}
	proc := &fakeProcess{}
	s := New(inbox, proc, Options{Hostname: "pi1", StartDelay: time.Millisecond, PollInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	inbox.push(&message.OpenRequest{IP: "10.0.0.9", Host: "pi1", Resolution: message.Resolution{Width: 320, Height: 240}, Port: 5002})
	require.Eventually(t, s.Viewing, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	require.False(t, s.Viewing())
}
