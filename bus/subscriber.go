package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rkonfj/camcast/message"
	"github.com/sirupsen/logrus"
)

var (
	ErrStale   = errors.New("no fresh message")
	ErrTimeout = errors.New("receive timeout")

	errNoData = errors.New("no datagram pending")
)

type SubscriberOptions struct {
	Port    int           // default 5000
	Timeout time.Duration // staleness window for Latest
	Logger  logrus.FieldLogger
}

// Subscriber receives control messages broadcast on a shared port.
// Undecodable datagrams are dropped.
type Subscriber struct {
	opts     SubscriberOptions
	conn     *net.UDPConn
	buf      []byte
	logger   logrus.FieldLogger
	last     message.Message
	lastTime time.Time
}

func NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	lc := net.ListenConfig{Control: controlListen}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":"+strconv.Itoa(opts.Port))
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		opts:   opts,
		conn:   pc.(*net.UDPConn),
		buf:    make([]byte, message.MaxSize),
		logger: logger.WithField("subscribe", pc.LocalAddr().String()),
	}, nil
}

// DrainAll returns every message pending in the socket buffer, oldest
// first. It never blocks.
func (s *Subscriber) DrainAll() []message.Message {
	return s.drain()
}

// Latest is LatestWithin using the configured staleness window.
func (s *Subscriber) Latest() (message.Message, error) {
	return s.LatestWithin(s.opts.Timeout)
}

// LatestWithin drains the socket and returns the most recently received
// message when it arrived during this call or less than timeout ago.
func (s *Subscriber) LatestWithin(timeout time.Duration) (message.Message, error) {
	if len(s.drain()) > 0 {
		return s.last, nil
	}
	if s.last != nil && time.Since(s.lastTime) < timeout {
		return s.last, nil
	}
	if s.last == nil {
		return nil, fmt.Errorf("%w: nothing received, timeout=%s", ErrStale, timeout)
	}
	return nil, fmt.Errorf("%w: last message %s ago, timeout=%s",
		ErrStale, time.Since(s.lastTime).Round(time.Millisecond), timeout)
}

// Recv blocks up to timeout for the next decodable message.
// A non-positive timeout only looks at what is already buffered.
func (s *Subscriber) Recv(timeout time.Duration) (message.Message, error) {
	if timeout <= 0 {
		for {
			n, err := recvNow(s.conn, s.buf)
			if errors.Is(err, errNoData) {
				return nil, fmt.Errorf("%w: buffer empty", ErrTimeout)
			}
			if err != nil {
				return nil, err
			}
			if m := s.decode(s.buf[:n]); m != nil {
				return m, nil
			}
		}
	}

	s.conn.SetReadDeadline(time.Now().Add(timeout))
	defer s.conn.SetReadDeadline(time.Time{})
	for {
		n, _, err := s.conn.ReadFrom(s.buf)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		if err != nil {
			return nil, err
		}
		if m := s.decode(s.buf[:n]); m != nil {
			return m, nil
		}
	}
}

func (s *Subscriber) Port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

func (s *Subscriber) Close() error {
	return s.conn.Close()
}

func (s *Subscriber) drain() (msgs []message.Message) {
	for {
		n, err := recvNow(s.conn, s.buf)
		if err != nil {
			if !errors.Is(err, errNoData) {
				s.logger.Debug(err)
			}
			return
		}
		if m := s.decode(s.buf[:n]); m != nil {
			msgs = append(msgs, m)
		}
	}
}

func (s *Subscriber) decode(b []byte) message.Message {
	m, err := message.Decode(b)
	if err != nil {
		s.logger.Debugf("drop datagram (%d bytes): %s", len(b), err)
		return nil
	}
	s.last, s.lastTime = m, time.Now()
	return m
}
