package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rkonfj/camcast/bus"
	"github.com/rkonfj/camcast/config"
	"github.com/rkonfj/camcast/message"
	"github.com/rkonfj/camcast/pipeline"
	"github.com/rkonfj/camcast/server"
	"github.com/rkonfj/camcast/supervisor"
	"github.com/spf13/cobra"
)

var Cmd *cobra.Command

func init() {
	Cmd = &cobra.Command{
		Use:   "server [camera_name]",
		Short: "Stream the local camera to viewers that ask for it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  startAction,
	}
	Cmd.Flags().StringP("config", "c", "", "config file (default is $HOME/.config/camcast/camcast.yml)")
	Cmd.Flags().String("input", "", "capture source: rpi, usb, usb-h264 or stdin (overrides config)")
	Cmd.Flags().String("device", "", "V4L2 capture device (overrides config)")
	Cmd.Flags().String("bitrate", "", "encoder bit rate, i.e. 800k (overrides config)")
	Cmd.Flags().String("hostname", "", "hostname viewers address (default is the system hostname)")
}

type Options struct {
	Cfg        *config.Config
	Hostname   string
	CameraName *string
	Source     pipeline.Source
	Bitrate    uint64
}

func startAction(cmd *cobra.Command, args []string) error {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(logLevel, nil)
	if err != nil {
		return err
	}
	opts, err := processOptions(cmd, args)
	if err != nil {
		return err
	}

	sub, err := bus.NewSubscriber(bus.SubscriberOptions{Port: opts.Cfg.ControlPort, Logger: logger})
	if err != nil {
		return err
	}
	defer sub.Close()

	supOpts := supervisor.Options{
		Shell:       opts.Cfg.Supervisor.Shell,
		GracePeriod: opts.Cfg.Supervisor.GracePeriod.Std(),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Logger:      logger,
	}
	if _, ok := opts.Source.(pipeline.RawStdin); ok {
		supOpts.Stdin = os.Stdin
	}

	s := server.New(sub, supervisor.New(supOpts), server.Options{
		Hostname:     opts.Hostname,
		CameraName:   opts.CameraName,
		Source:       opts.Source,
		Bitrate:      opts.Bitrate,
		StartDelay:   opts.Cfg.Server.StartDelay.Std(),
		PollInterval: opts.Cfg.Server.PollInterval.Std(),
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

func processOptions(cmd *cobra.Command, args []string) (opts Options, err error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return
	}
	opts.Cfg, err = config.Load(configPath, os.Stdout)
	if err != nil {
		return
	}

	input, err := cmd.Flags().GetString("input")
	if err != nil {
		return
	}
	if input != "" {
		opts.Cfg.Server.Input = input
	}
	device, err := cmd.Flags().GetString("device")
	if err != nil {
		return
	}
	if device != "" {
		opts.Cfg.Server.Device = device
	}
	opts.Source, err = pipeline.ParseSource(opts.Cfg.Server.Input, opts.Cfg.Server.Device)
	if err != nil {
		return
	}

	bitrate, err := cmd.Flags().GetString("bitrate")
	if err != nil {
		return
	}
	if bitrate != "" {
		opts.Cfg.Server.Bitrate = bitrate
	}
	opts.Bitrate, err = pipeline.ParseBitrate(opts.Cfg.Server.Bitrate)
	if err != nil {
		return
	}

	opts.Hostname, err = cmd.Flags().GetString("hostname")
	if err != nil {
		return
	}
	if opts.Hostname == "" {
		opts.Hostname, err = os.Hostname()
		if err != nil {
			return
		}
	}
	if len(args) > 0 {
		opts.CameraName = message.Name(args[0])
	}
	return
}
