package view

import (
	"bytes"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rkonfj/camcast/bus"
	"github.com/rkonfj/camcast/config"
	"github.com/rkonfj/camcast/message"
	"github.com/rkonfj/camcast/pipeline"
	"github.com/rkonfj/camcast/supervisor"
	"github.com/rkonfj/camcast/viewer"
	"github.com/spf13/cobra"
)

var Cmd *cobra.Command

func init() {
	Cmd = &cobra.Command{
		Use:   "viewer hostname [camera_name]",
		Short: "Ask a server for its camera and play the stream",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  startAction,
	}
	Cmd.Flags().StringP("config", "c", "", "config file (default is $HOME/.config/camcast/camcast.yml)")
	Cmd.Flags().StringP("output", "o", "", "window, or raw for BGR frames on stdout (overrides config)")
	Cmd.Flags().String("ip", "", "address the server streams to (default is picked from viewer.subnet)")
}

type Options struct {
	Cfg        *config.Config
	RemoteHost string
	CameraName *string
	Sink       pipeline.Sink
	LocalIP    string

	// config echoed while loading, written once the sink is known
	echo []byte
}

func startAction(cmd *cobra.Command, args []string) error {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(logLevel, os.Stderr)
	if err != nil {
		return err
	}
	opts, err := processOptions(cmd, args)
	if err != nil {
		return err
	}
	if _, err := diagOutput(opts.Sink).Write(opts.echo); err != nil {
		return err
	}

	pub, err := bus.NewPublisher(bus.PublisherOptions{
		Addr:   opts.Cfg.Broadcast,
		Port:   opts.Cfg.ControlPort,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer pub.Close()

	sup := supervisor.New(supervisor.Options{
		Shell:       opts.Cfg.Supervisor.Shell,
		GracePeriod: opts.Cfg.Supervisor.GracePeriod.Std(),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Logger:      logger,
	})
	defer sup.Stop()

	res := message.Resolution{Width: opts.Cfg.Viewer.Width, Height: opts.Cfg.Viewer.Height}
	if _, ok := opts.Sink.(pipeline.RawStdout); ok {
		logger.Infof("writing %s BGR frames (%s) to stdout",
			humanize.Bytes(uint64(pipeline.FrameSize(res))), res)
	}

	v := viewer.New(pub, sup, viewer.Options{
		LocalIP:         opts.LocalIP,
		Resolution:      res,
		Sink:            opts.Sink,
		BasePort:        opts.Cfg.Viewer.BasePort,
		MaxPort:         opts.Cfg.Viewer.MaxPort,
		CloseRepeat:     opts.Cfg.Viewer.CloseRepeat,
		MonitorInterval: opts.Cfg.Viewer.MonitorInterval.Std(),
		Logger:          logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return v.Stream(ctx, opts.RemoteHost, opts.CameraName)
}

// diagOutput is where human-readable output goes. Raw frames own stdout.
func diagOutput(sink pipeline.Sink) io.Writer {
	if _, ok := sink.(pipeline.RawStdout); ok {
		return os.Stderr
	}
	return os.Stdout
}

func processOptions(cmd *cobra.Command, args []string) (opts Options, err error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return
	}
	var echo bytes.Buffer
	opts.Cfg, err = config.Load(configPath, &echo)
	if err != nil {
		return
	}
	opts.echo = echo.Bytes()

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return
	}
	if output != "" {
		opts.Cfg.Viewer.Output = output
	}
	opts.Sink, err = pipeline.ParseSink(opts.Cfg.Viewer.Output)
	if err != nil {
		return
	}

	opts.LocalIP, err = cmd.Flags().GetString("ip")
	if err != nil {
		return
	}
	if opts.LocalIP == "" {
		opts.LocalIP, err = viewer.LocalIP(opts.Cfg.Viewer.Subnet)
		if err != nil {
			return
		}
	}

	opts.RemoteHost = args[0]
	if len(args) > 1 {
		opts.CameraName = message.Name(args[1])
	}
	return
}
