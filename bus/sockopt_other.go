//go:build !linux && !darwin

package bus

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"
)

func controlListen(network, address string, c syscall.RawConn) error {
	return nil
}

func controlDial(network, address string, c syscall.RawConn) error {
	return nil
}

// recvNow falls back to a one millisecond read deadline where a
// non-blocking recvfrom is not available.
func recvNow(conn *net.UDPConn, buf []byte) (int, error) {
	conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	defer conn.SetReadDeadline(time.Time{})
	n, _, err := conn.ReadFrom(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return 0, errNoData
	}
	return n, err
}
