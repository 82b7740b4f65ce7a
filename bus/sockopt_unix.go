//go:build linux || darwin

package bus

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// controlListen lets several subscribers share the control port on one
// host and accept broadcast datagrams.
func controlListen(network, address string, c syscall.RawConn) error {
	return setSockopts(c, unix.SO_REUSEADDR, unix.SO_REUSEPORT, unix.SO_BROADCAST)
}

func controlDial(network, address string, c syscall.RawConn) error {
	return setSockopts(c, unix.SO_BROADCAST)
}

func setSockopts(c syscall.RawConn, opts ...int) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		for _, opt := range opts {
			if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, 1); serr != nil {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return serr
}

// recvNow reads one datagram without waiting. errNoData means the socket
// buffer is empty.
func recvNow(conn *net.UDPConn, buf []byte) (int, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var rerr error
	err = rc.Read(func(fd uintptr) bool {
		n, _, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return 0, err
	}
	if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) {
		return 0, errNoData
	}
	return n, rerr
}
