package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rkonfj/camcast/id"
	"github.com/rkonfj/camcast/message"
	"github.com/rkonfj/camcast/pipeline"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCloseRepeat     = 3
	DefaultMonitorInterval = 500 * time.Millisecond

	// a playback that lived this long resets the reopen backoff
	stableAfter = time.Minute
)

var DefaultResolution = message.Resolution{Width: 320, Height: 240}

// Sender publishes control messages.
type Sender interface {
	Send(m message.Message) error
}

// Process is the supervised playback pipeline.
type Process interface {
	Start(cmd string) error
	Stop()
	Running() bool
}

// Session is one stream from a remote camera to a local port.
type Session struct {
	ID         string
	RemoteHost string
	CameraName *string
	LocalIP    string
	Port       int
	Opened     time.Time
}

type Options struct {
	LocalIP         string
	Resolution      message.Resolution
	Sink            pipeline.Sink
	BasePort        int
	MaxPort         int
	CloseRepeat     int // datagrams per close, compensating for UDP loss
	MonitorInterval time.Duration
	ReopenBackOff   func() backoff.BackOff
	Logger          logrus.FieldLogger
}

type Viewer struct {
	pub     Sender
	process Process
	opts    Options
	logger  logrus.FieldLogger
	probe   func(port int) error
}

func New(pub Sender, process Process, opts Options) *Viewer {
	if opts.LocalIP == "" {
		opts.LocalIP, _ = LocalIP("")
	}
	if opts.Resolution == (message.Resolution{}) {
		opts.Resolution = DefaultResolution
	}
	if opts.Sink == nil {
		opts.Sink = pipeline.Window{}
	}
	if opts.BasePort == 0 {
		opts.BasePort = DefaultBasePort
	}
	if opts.MaxPort == 0 {
		opts.MaxPort = DefaultMaxPort
	}
	if opts.CloseRepeat == 0 {
		opts.CloseRepeat = DefaultCloseRepeat
	}
	if opts.MonitorInterval == 0 {
		opts.MonitorInterval = DefaultMonitorInterval
	}
	if opts.ReopenBackOff == nil {
		opts.ReopenBackOff = defaultReopenBackOff
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Viewer{pub: pub, process: process, opts: opts, logger: logger, probe: bindUDP}
}

func defaultReopenBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Open reserves a local port, asks host to stream camera name to it and
// starts local playback on that port.
func (v *Viewer) Open(host string, name *string) (*Session, error) {
	port, err := freePort(v.opts.BasePort, v.opts.MaxPort, v.probe)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:         id.New(id.Session),
		RemoteHost: host,
		CameraName: name,
		LocalIP:    v.opts.LocalIP,
		Port:       port,
		Opened:     time.Now(),
	}
	err = v.pub.Send(&message.OpenRequest{
		IP:         sess.LocalIP,
		Host:       host,
		Resolution: v.opts.Resolution,
		Port:       port,
		Name:       name,
	})
	if err != nil {
		return nil, err
	}
	if err := v.process.Start(pipeline.ViewerCommand(v.opts.Sink, port, v.opts.Resolution)); err != nil {
		// the server may already be streaming to a port nobody reads
		if cerr := v.retract(sess); cerr != nil {
			v.sessionLogger(sess).Warnf("retract open request: %s", cerr)
		}
		return nil, err
	}
	v.sessionLogger(sess).Infof("receiving on %s:%d (%s)", sess.LocalIP, port, v.opts.Sink.Name())
	return sess, nil
}

// Close tells the remote to stop streaming and stops local playback.
// The request is sent several times since nothing acknowledges it.
func (v *Viewer) Close(sess *Session) error {
	err := v.retract(sess)
	v.process.Stop()
	v.sessionLogger(sess).Info("closed")
	return err
}

// retract sends CloseRepeat close requests for sess.
func (v *Viewer) retract(sess *Session) error {
	req := &message.CloseRequest{Host: sess.RemoteHost, Name: sess.CameraName}
	var errs []error
	for i := 0; i < v.opts.CloseRepeat; i++ {
		if err := v.pub.Send(req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stream opens a session and keeps it open until ctx is done, reopening
// whenever local playback exits.
func (v *Viewer) Stream(ctx context.Context, host string, name *string) error {
	sess, err := v.Open(host, name)
	if err != nil {
		return err
	}
	bo := v.opts.ReopenBackOff()
	ticker := time.NewTicker(v.opts.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return v.Close(sess)
		case <-ticker.C:
		}
		if v.process.Running() {
			continue
		}
		if time.Since(sess.Opened) > stableAfter {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		v.sessionLogger(sess).Warnf("playback exited, reopening in %s", wait)
		if !sleepCtx(ctx, wait) {
			return v.Close(sess)
		}
		next, err := v.Open(host, name)
		if errors.Is(err, ErrPortExhausted) {
			return err
		}
		if err != nil {
			v.sessionLogger(sess).Error(err)
			continue
		}
		sess = next
	}
}

func (v *Viewer) sessionLogger(sess *Session) logrus.FieldLogger {
	return v.logger.WithField("session", sess.ID).
		WithField("host", sess.RemoteHost).
		WithField("camera", message.NameString(sess.CameraName))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
