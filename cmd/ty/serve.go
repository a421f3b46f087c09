package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zulandar/taskyard/internal/server"
	"github.com/zulandar/taskyard/internal/task"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serves the JSON API and shared page views. Blocks until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			ctx, stop := signalContext()
			defer stop()

			return server.Start(ctx, server.StartOpts{
				Opts: server.Opts{
					DB:     gormDB,
					Tasks:  task.NewEngine(gormDB, nil),
					Owner:  cfg.Owner,
					Logger: logrus.StandardLogger().WithField("component", "server"),
				},
				Port: cfg.Server.Port,
				Out:  cmd.OutOrStdout(),
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port (overrides server.port)")
	return cmd
}
