package pipeline

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rkonfj/camcast/message"
)

// Sink is how a viewer node presents the stream: Window or RawStdout.
type Sink interface {
	Name() string
	isSink()
}

// Window decodes into a desktop video window.
type Window struct{}

// RawStdout decodes into packed BGR frames on the pipeline's stdout.
type RawStdout struct{}

func (Window) Name() string    { return "window" }
func (RawStdout) Name() string { return "raw" }

func (Window) isSink()    {}
func (RawStdout) isSink() {}

func ParseSink(name string) (Sink, error) {
	switch name {
	case "", "window":
		return Window{}, nil
	case "raw":
		return RawStdout{}, nil
	}
	return nil, fmt.Errorf("unknown output %q (window, raw)", name)
}

const rtpCaps = `caps="application/x-rtp, media=video, encoding-name=H264, payload=96"`

// ViewerCommand builds the shell command that receives RTP/H.264 on
// port and renders it into sink.
func ViewerCommand(sink Sink, port int, res message.Resolution) string {
	switch sink.(type) {
	case Window:
		return fmt.Sprintf("gst-launch-1.0 udpsrc port=%d %s ! rtph264depay ! avdec_h264 ! "+
			"videoconvert ! autovideosink sync=false", port, rtpCaps)
	case RawStdout:
		// -q keeps gst-launch status lines out of the frame stream
		return fmt.Sprintf("gst-launch-1.0 -q udpsrc port=%d %s ! rtph264depay ! avdec_h264 ! "+
			"videoconvert ! videoscale ! video/x-raw,format=BGR,width=%d,height=%d ! fdsink fd=1 sync=false",
			port, rtpCaps, res.Width, res.Height)
	}
	panic(fmt.Sprintf("pipeline: unhandled sink %T", sink))
}

// FrameSize is the byte length of one BGR frame written by RawStdout.
func FrameSize(res message.Resolution) int {
	return res.Width * res.Height * 3
}

// ParseBitrate reads an SI quantity such as "800k" or "1.5M bps".
func ParseBitrate(s string) (uint64, error) {
	v, unit, err := humanize.ParseSI(s)
	if err != nil {
		return 0, fmt.Errorf("invalid bitrate %q: %w", s, err)
	}
	switch strings.TrimSpace(unit) {
	case "", "b", "bps", "bit/s":
	default:
		return 0, fmt.Errorf("invalid bitrate unit %q", unit)
	}
	if v < 1000 {
		return 0, fmt.Errorf("bitrate %q below 1 kbit/s", s)
	}
	return uint64(v), nil
}
