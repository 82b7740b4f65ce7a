package pipeline

import (
	"fmt"
	"strings"

	"github.com/rkonfj/camcast/message"
)

// Source is how a server node captures video. The set of sources is
// closed: RPiCam, USBCam, USBH264 and RawStdin.
type Source interface {
	Name() string
	isSource()
}

// RPiCam is the Raspberry Pi camera module read through raspivid,
// which already emits H.264.
type RPiCam struct{}

// USBCam is a V4L2 device producing raw frames that are encoded here.
type USBCam struct {
	Device string
}

// USBH264 is a V4L2 device with an on-board H.264 encoder.
type USBH264 struct {
	Device string
}

// RawStdin encodes raw I420 frames written to the pipeline's stdin.
type RawStdin struct{}

func (RPiCam) Name() string   { return "rpi" }
func (USBCam) Name() string   { return "usb" }
func (USBH264) Name() string  { return "usb-h264" }
func (RawStdin) Name() string { return "stdin" }

func (RPiCam) isSource()   {}
func (USBCam) isSource()   {}
func (USBH264) isSource()  {}
func (RawStdin) isSource() {}

const DefaultDevice = "/dev/video0"

// ParseSource maps a configured input name to a Source.
func ParseSource(name, device string) (Source, error) {
	if device == "" {
		device = DefaultDevice
	}
	switch name {
	case "rpi":
		return RPiCam{}, nil
	case "", "usb":
		return USBCam{Device: device}, nil
	case "usb-h264":
		return USBH264{Device: device}, nil
	case "stdin":
		return RawStdin{}, nil
	}
	return nil, fmt.Errorf("unknown input %q (rpi, usb, usb-h264, stdin)", name)
}

// Target is where and how a server streams.
type Target struct {
	IP         string
	Port       int
	Resolution message.Resolution
	Bitrate    uint64 // bits per second
}

// ServerCommand builds the shell command that captures from src and
// pushes RTP/H.264 to t.
func ServerCommand(src Source, t Target) string {
	w, h := t.Resolution.Width, t.Resolution.Height
	kbps := max(t.Bitrate/1000, 1)
	sink := fmt.Sprintf("rtph264pay config-interval=1 pt=96 ! udpsink host=%s port=%d", t.IP, t.Port)
	encode := fmt.Sprintf("x264enc bitrate=%d speed-preset=ultrafast tune=zerolatency intra-refresh=true", kbps)

	switch s := src.(type) {
	case RPiCam:
		return fmt.Sprintf("raspivid -t 0 -n -w %d -h %d -fps 30 -b %d -pf baseline -ih -o - | "+
			"gst-launch-1.0 fdsrc ! h264parse ! %s", w, h, t.Bitrate, sink)
	case USBCam:
		return fmt.Sprintf("gst-launch-1.0 v4l2src device=%s ! video/x-raw,width=%d,height=%d ! "+
			"videoconvert ! %s ! %s", quote(s.Device), w, h, encode, sink)
	case USBH264:
		return fmt.Sprintf("gst-launch-1.0 v4l2src device=%s ! video/x-h264,width=%d,height=%d ! "+
			"h264parse ! %s", quote(s.Device), w, h, sink)
	case RawStdin:
		return fmt.Sprintf("gst-launch-1.0 fdsrc fd=0 ! rawvideoparse width=%d height=%d format=i420 framerate=30/1 ! "+
			"videoconvert ! %s ! %s", w, h, encode, sink)
	}
	panic(fmt.Sprintf("pipeline: unhandled source %T", src))
}

// quote wraps s in single quotes for sh.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
