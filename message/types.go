package message

import (
	"errors"
	"fmt"
	"net"
)

// MaxSize is the largest payload a single UDP datagram can carry over IPv4.
// Encoded messages must stay strictly below it.
const MaxSize = 65507

const cmdClose = "close"

var (
	ErrMessageTooLarge = errors.New("encoded message too large")
	ErrMalformed       = errors.New("malformed control message")
)

// Message is a control-plane request. It is either an *OpenRequest or a
// *CloseRequest.
type Message interface {
	// Target is the hostname of the server node the request is meant for.
	Target() string
	// Camera disambiguates cameras on one host. nil is the default camera.
	Camera() *string
	isMessage()
}

type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// OpenRequest asks a server to stream to IP:Port.
type OpenRequest struct {
	IP         string
	Host       string
	Resolution Resolution
	Port       int
	Name       *string
}

func (r *OpenRequest) Target() string  { return r.Host }
func (r *OpenRequest) Camera() *string { return r.Name }
func (*OpenRequest) isMessage()        {}

// Validate checks the fields a server interpolates into a pipeline command.
func (r *OpenRequest) Validate() error {
	if net.ParseIP(r.IP) == nil {
		return fmt.Errorf("%w: invalid ip %q", ErrMalformed, r.IP)
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrMalformed, r.Port)
	}
	if r.Resolution.Width <= 0 || r.Resolution.Height <= 0 {
		return fmt.Errorf("%w: invalid resolution %s", ErrMalformed, r.Resolution)
	}
	return nil
}

// CloseRequest asks a server to stop streaming.
type CloseRequest struct {
	Host string
	Name *string
}

func (r *CloseRequest) Target() string  { return r.Host }
func (r *CloseRequest) Camera() *string { return r.Name }
func (*CloseRequest) isMessage()        {}

// SameName compares optional camera names. Two absent names match.
func SameName(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Name returns a pointer to name, or nil when name is empty.
func Name(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

// NameString renders an optional camera name for logs.
func NameString(name *string) string {
	if name == nil {
		return "<default>"
	}
	return *name
}
