package server

import (
	"context"
	"time"

	"github.com/rkonfj/camcast/message"
	"github.com/rkonfj/camcast/pipeline"
	"github.com/sirupsen/logrus"
)

const (
	DefaultStartDelay   = time.Second
	DefaultPollInterval = 50 * time.Millisecond
	DefaultBitrate      = 1_000_000
)

// Inbox yields pending control messages without blocking.
type Inbox interface {
	DrainAll() []message.Message
}

// Process is the supervised capture pipeline.
type Process interface {
	Start(cmd string) error
	Stop()
	Running() bool
}

type Options struct {
	Hostname   string
	CameraName *string // nil is the default camera
	Source     pipeline.Source
	Bitrate    uint64 // bits per second
	// StartDelay gives the viewer time to bind its port before packets
	// are pushed at it.
	StartDelay   time.Duration
	PollInterval time.Duration
	Logger       logrus.FieldLogger
}

// Server streams its camera to whichever viewer last asked for it.
type Server struct {
	inbox   Inbox
	process Process
	opts    Options
	logger  logrus.FieldLogger
	sleep   func(time.Duration)
}

func New(inbox Inbox, process Process, opts Options) *Server {
	if opts.Source == nil {
		opts.Source = pipeline.USBCam{Device: pipeline.DefaultDevice}
	}
	if opts.Bitrate == 0 {
		opts.Bitrate = DefaultBitrate
	}
	if opts.StartDelay == 0 {
		opts.StartDelay = DefaultStartDelay
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		inbox:   inbox,
		process: process,
		opts:    opts,
		logger: logger.WithField("host", opts.Hostname).
			WithField("camera", message.NameString(opts.CameraName)),
		sleep: time.Sleep,
	}
}

// Run handles control messages until ctx is done, then stops the
// pipeline.
func (s *Server) Run(ctx context.Context) error {
	defer s.process.Stop()
	s.logger.Infof("waiting for viewers, capture from %s", s.opts.Source.Name())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			return nil
		default:
		}
		if s.ParseMessages() == 0 {
			s.sleep(s.opts.PollInterval)
		}
	}
}

// ParseMessages drains the inbox once and acts on the messages meant for
// this node. It returns how many messages were read.
func (s *Server) ParseMessages() int {
	msgs := s.inbox.DrainAll()
	for _, m := range msgs {
		s.handle(m)
	}
	return len(msgs)
}

func (s *Server) handle(m message.Message) {
	if m.Target() != s.opts.Hostname {
		return
	}
	if !message.SameName(m.Camera(), s.opts.CameraName) {
		return
	}
	switch msg := m.(type) {
	case *message.CloseRequest:
		s.logger.Info("close requested")
		s.process.Stop()
	case *message.OpenRequest:
		logger := s.logger.WithField("viewer", msg.IP).WithField("port", msg.Port)
		logger.Infof("open requested at %s", msg.Resolution)
		s.sleep(s.opts.StartDelay)
		cmd := pipeline.ServerCommand(s.opts.Source, pipeline.Target{
			IP:         msg.IP,
			Port:       msg.Port,
			Resolution: msg.Resolution,
			Bitrate:    s.opts.Bitrate,
		})
		if err := s.process.Start(cmd); err != nil {
			logger.Error(err)
		}
	}
}

// Viewing reports whether a pipeline is streaming to some viewer.
func (s *Server) Viewing() bool {
	return s.process.Running()
}
