package viewer

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultBasePort = 5001
	DefaultMaxPort  = 7000
)

var ErrPortExhausted = errors.New("no free port")

// FreePort returns the first UDP port in [base, max] that can be bound.
// The probe socket is released before returning, so another process may
// still grab the port before the playback pipeline binds it.
func FreePort(base, max int) (int, error) {
	return freePort(base, max, bindUDP)
}

func freePort(base, max int, probe func(port int) error) (int, error) {
	for port := base; port <= max; port++ {
		if probe(port) == nil {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w in %d-%d", ErrPortExhausted, base, max)
}

func bindUDP(port int) error {
	pc, err := net.ListenPacket("udp4", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	return pc.Close()
}

// LocalIP returns the first IPv4 address of this host inside subnet, or
// of any non-loopback interface when subnet is empty. Without a match it
// falls back to 127.0.0.1.
func LocalIP(subnet string) (string, error) {
	var network *net.IPNet
	if subnet != "" {
		_, n, err := net.ParseCIDR(subnet)
		if err != nil {
			return "", err
		}
		network = n
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		ipn, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipn.IP.To4()
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if network != nil && !network.Contains(ip) {
			continue
		}
		return ip.String(), nil
	}
	return "127.0.0.1", nil
}
