package main

import (
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/daemon"
)

func newDaemonCommand() *cobra.Command {
	var socketPath string
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the aggregation daemon in the foreground.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return daemon.RunServer(daemon.Config{
				SocketPath: socketPath,
				ConfigPath: configPath,
				Verbose:    verbose,
			})
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", daemon.DefaultSocketPath(), "unix socket path to listen on")
	cmd.Flags().StringVar(&configPath, "config", config.ConfigPath(), "settings file path")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log at debug level to the terminal")
	return cmd
}
