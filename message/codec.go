package message

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/vmihailenco/msgpack/v5"
)

// wireMessage is the map layout on the wire. Keys match what the python
// msgpack peers produce, including an explicit nil name.
type wireMessage struct {
	Host       *string `msgpack:"host"`
	Cmd        string  `msgpack:"cmd,omitempty"`
	Name       *string `msgpack:"name"`
	IP         string  `msgpack:"ip,omitempty"`
	Resolution []int   `msgpack:"resolution,omitempty"`
	Port       int     `msgpack:"port,omitempty"`
}

// Encode serializes m. It fails with ErrMessageTooLarge when the result
// would not fit in one datagram.
func Encode(m Message) ([]byte, error) {
	var w wireMessage
	switch msg := m.(type) {
	case *OpenRequest:
		w = wireMessage{
			Host:       &msg.Host,
			Name:       msg.Name,
			IP:         msg.IP,
			Resolution: []int{msg.Resolution.Width, msg.Resolution.Height},
			Port:       msg.Port,
		}
	case *CloseRequest:
		w = wireMessage{Host: &msg.Host, Cmd: cmdClose, Name: msg.Name}
	default:
		return nil, fmt.Errorf("unsupported message type %T", m)
	}
	b, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, err
	}
	if len(b) >= MaxSize {
		return nil, fmt.Errorf("%w: %s (limit %s)", ErrMessageTooLarge,
			humanize.Bytes(uint64(len(b))), humanize.Bytes(MaxSize))
	}
	return b, nil
}

// Decode parses one datagram. Every failure wraps ErrMalformed.
func Decode(b []byte) (Message, error) {
	var w wireMessage
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Host == nil {
		return nil, fmt.Errorf("%w: missing host", ErrMalformed)
	}
	switch w.Cmd {
	case cmdClose:
		return &CloseRequest{Host: *w.Host, Name: w.Name}, nil
	case "":
	default:
		return nil, fmt.Errorf("%w: unknown cmd %q", ErrMalformed, w.Cmd)
	}
	if len(w.Resolution) != 2 {
		return nil, fmt.Errorf("%w: resolution needs 2 values, got %d", ErrMalformed, len(w.Resolution))
	}
	req := &OpenRequest{
		IP:         w.IP,
		Host:       *w.Host,
		Resolution: Resolution{Width: w.Resolution[0], Height: w.Resolution[1]},
		Port:       w.Port,
		Name:       w.Name,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
