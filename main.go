package main

import (
	"os"

	"github.com/rkonfj/camcast/cmd/serve"
	"github.com/rkonfj/camcast/cmd/view"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:          "camcast",
		Short:        "Ad-hoc camera streaming on a LAN, negotiated over UDP broadcast",
		SilenceUsage: true,
	}

	cmd.AddCommand(serve.Cmd)
	cmd.AddCommand(view.Cmd)

	cmd.PersistentFlags().String("log-level", "info", "logrus logger level")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
