package message

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestRoundTrip(t *testing.T) {
	cases := []Message{
		&OpenRequest{IP: "192.168.1.50", Host: "pi1", Resolution: Resolution{640, 480}, Port: 5001},
		&OpenRequest{IP: "10.0.0.2", Host: "pi2", Resolution: Resolution{320, 240}, Port: 6999, Name: Name("cam0")},
		&CloseRequest{Host: "pi1"},
		&CloseRequest{Host: "pi1", Name: Name("cam1")},
	}
	for _, m := range cases {
		b, err := Encode(m)
		require.NoError(t, err)
		got, err := Decode(b)
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestEncodeTooLarge(t *testing.T) {
	_, err := Encode(&CloseRequest{Host: strings.Repeat("h", MaxSize)})
	require.True(t, errors.Is(err, ErrMessageTooLarge))
}

func TestEncodeJustBelowLimit(t *testing.T) {
	// fixmap + "host" + str16 header + "cmd" + "close" + "name" + nil
	overhead := 1 + 5 + 3 + 4 + 6 + 5 + 1
	_, err := Encode(&CloseRequest{Host: strings.Repeat("h", MaxSize-overhead-1)})
	require.NoError(t, err)
	_, err = Encode(&CloseRequest{Host: strings.Repeat("h", MaxSize-overhead)})
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

// Datagrams as a python msgpack peer would emit them: plain maps,
// tuples as arrays and an explicit nil name.
func TestDecodeForeignMaps(t *testing.T) {
	b, err := msgpack.Marshal(map[string]interface{}{
		"ip":         "192.168.1.50",
		"host":       "pi1",
		"resolution": []interface{}{640, 480},
		"port":       5001,
		"name":       nil,
	})
	require.NoError(t, err)
	m, err := Decode(b)
	require.NoError(t, err)
	open, ok := m.(*OpenRequest)
	require.True(t, ok)
	require.Equal(t, "pi1", open.Target())
	require.Nil(t, open.Camera())
	require.Equal(t, Resolution{640, 480}, open.Resolution)
	require.Equal(t, 5001, open.Port)

	b, err = msgpack.Marshal(map[string]interface{}{"host": "pi1", "cmd": "close", "name": "cam0"})
	require.NoError(t, err)
	m, err = Decode(b)
	require.NoError(t, err)
	require.Equal(t, &CloseRequest{Host: "pi1", Name: Name("cam0")}, m)
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]interface{}{
		"not msgpack":    nil,
		"no host":        map[string]interface{}{"cmd": "close"},
		"unknown cmd":    map[string]interface{}{"host": "pi1", "cmd": "reboot"},
		"bad ip":         map[string]interface{}{"host": "pi1", "ip": "1.2.3.4; rm -rf /", "port": 5001, "resolution": []int{1, 1}},
		"bad port":       map[string]interface{}{"host": "pi1", "ip": "1.2.3.4", "port": 70000, "resolution": []int{1, 1}},
		"bad resolution": map[string]interface{}{"host": "pi1", "ip": "1.2.3.4", "port": 5001, "resolution": []int{640}},
		"string port":    map[string]interface{}{"host": "pi1", "ip": "1.2.3.4", "port": "5001", "resolution": []int{1, 1}},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			b := []byte{0xc1}
			if v != nil {
				var err error
				b, err = msgpack.Marshal(v)
				require.NoError(t, err)
			}
			_, err := Decode(b)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestSameName(t *testing.T) {
	require.True(t, SameName(nil, nil))
	require.True(t, SameName(Name("cam0"), Name("cam0")))
	require.False(t, SameName(Name("cam0"), Name("cam1")))
	require.False(t, SameName(nil, Name("cam0")))
	require.False(t, SameName(Name("cam0"), nil))
	require.Nil(t, Name(""))
}
