package id

import (
	"crypto/rand"
	"errors"

	"github.com/decred/base58"
)

// Kind is the version prefix embedded in a generated identifier.
type Kind [2]byte

var (
	Session = Kind{0x3f, 0x01}
	Handle  = Kind{0x3f, 0x02}
)

var ErrUnknownKind = errors.New("unknown id kind")

// New returns a base58check identifier carrying 6 random bytes.
// Short enough to read in a log line, unique enough for one LAN.
func New(kind Kind) string {
	buf := make([]byte, 6)
	rand.Reader.Read(buf)
	return base58.CheckEncode(buf, kind)
}

// KindOf validates the checksum of s and reports which kind produced it.
func KindOf(s string) (Kind, error) {
	_, version, err := base58.CheckDecode(s)
	if err != nil {
		return Kind{}, err
	}
	k := Kind(version)
	if k != Session && k != Handle {
		return Kind{}, ErrUnknownKind
	}
	return k, nil
}
