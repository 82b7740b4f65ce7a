package bus

import (
	"errors"
	"net"
	"strconv"
	"syscall"

	"github.com/rkonfj/camcast/message"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort is the well-known control channel port.
	DefaultPort      = 5000
	DefaultBroadcast = "255.255.255.255"
)

type PublisherOptions struct {
	Addr   string // broadcast (or unicast) destination, default 255.255.255.255
	Port   int    // default 5000
	Logger logrus.FieldLogger
}

// Publisher sends control messages as single broadcast datagrams.
// Delivery is not acknowledged.
type Publisher struct {
	conn   net.Conn
	logger logrus.FieldLogger
}

func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultBroadcast
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	d := net.Dialer{Control: controlDial}
	conn, err := d.Dial("udp4", net.JoinHostPort(opts.Addr, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: logger.WithField("publish", conn.RemoteAddr().String())}, nil
}

// Send encodes m and writes it in one datagram. A message that does not
// fit fails with message.ErrMessageTooLarge and nothing is sent.
func (p *Publisher) Send(m message.Message) error {
	b, err := message.Encode(m)
	if err != nil {
		return err
	}
	_, err = p.conn.Write(b)
	if errors.Is(err, syscall.ECONNREFUSED) {
		// an earlier datagram bounced; nobody is listening, which is fine
		p.logger.Debugf("send %T: %s", m, err)
		return nil
	}
	return err
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
