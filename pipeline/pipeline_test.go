package pipeline

import (
	"strings"
	"testing"

	"github.com/rkonfj/camcast/message"
	"github.com/stretchr/testify/require"
)

var vga = message.Resolution{Width: 640, Height: 480}

func TestServerCommandTargetsRequester(t *testing.T) {
	target := Target{IP: "192.168.1.50", Port: 5001, Resolution: vga, Bitrate: 1_000_000}
	for _, src := range []Source{RPiCam{}, USBCam{Device: "/dev/video2"}, USBH264{Device: "/dev/video0"}, RawStdin{}} {
		t.Run(src.Name(), func(t *testing.T) {
			cmd := ServerCommand(src, target)
			require.Contains(t, cmd, "udpsink host=192.168.1.50 port=5001")
			require.Contains(t, cmd, "640")
			require.Contains(t, cmd, "480")
		})
	}
}

func TestServerCommandModes(t *testing.T) {
	target := Target{IP: "10.0.0.1", Port: 6000, Resolution: vga, Bitrate: 2_000_000}

	rpi := ServerCommand(RPiCam{}, target)
	require.True(t, strings.HasPrefix(rpi, "raspivid "))
	require.Contains(t, rpi, "-b 2000000")
	require.Contains(t, rpi, "| gst-launch-1.0 fdsrc")

	usb := ServerCommand(USBCam{Device: "/dev/video2"}, target)
	require.Contains(t, usb, "device='/dev/video2'")
	require.Contains(t, usb, "x264enc bitrate=2000")

	h264 := ServerCommand(USBH264{Device: "/dev/video0"}, target)
	require.Contains(t, h264, "video/x-h264")
	require.NotContains(t, h264, "x264enc")

	raw := ServerCommand(RawStdin{}, target)
	require.Contains(t, raw, "fdsrc fd=0 ! rawvideoparse")
}

func TestQuote(t *testing.T) {
	require.Equal(t, `'/dev/it'\''s'`, quote("/dev/it's"))
}

func TestViewerCommand(t *testing.T) {
	win := ViewerCommand(Window{}, 5004, vga)
	require.Contains(t, win, "udpsrc port=5004")
	require.Contains(t, win, "autovideosink")

	raw := ViewerCommand(RawStdout{}, 5004, message.Resolution{Width: 320, Height: 240})
	require.Contains(t, raw, "gst-launch-1.0 -q")
	require.Contains(t, raw, "format=BGR,width=320,height=240")
	require.Contains(t, raw, "fdsink fd=1")
	require.Equal(t, 320*240*3, FrameSize(message.Resolution{Width: 320, Height: 240}))
}

func TestParseSourceAndSink(t *testing.T) {
	src, err := ParseSource("", "")
	require.NoError(t, err)
	require.Equal(t, USBCam{Device: DefaultDevice}, src)

	src, err = ParseSource("rpi", "")
	require.NoError(t, err)
	require.Equal(t, RPiCam{}, src)

	_, err = ParseSource("webcam", "")
	require.Error(t, err)

	sink, err := ParseSink("raw")
	require.NoError(t, err)
	require.Equal(t, RawStdout{}, sink)

	_, err = ParseSink("tv")
	require.Error(t, err)
}

func TestParseBitrate(t *testing.T) {
	for in, want := range map[string]uint64{
		"1M":       1_000_000,
		"800k":     800_000,
		"2.5M bps": 2_500_000,
		"64000":    64_000,
	} {
		got, err := ParseBitrate(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, in := range []string{"fast", "10", "1M fps"} {
		_, err := ParseBitrate(in)
		require.Error(t, err, in)
	}
}
