package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zulandar/taskyard/internal/config"
	"github.com/zulandar/taskyard/internal/notify"
	"github.com/zulandar/taskyard/internal/telegraph"
	"gorm.io/gorm"
)

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Digest delivery commands",
	}

	cmd.AddCommand(newNotifyRunCmd())
	cmd.AddCommand(newNotifyServeCmd())
	cmd.AddCommand(newNotifyTestCmd())
	return cmd
}

func newNotifyRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send due digests once and exit",
		Long:  "Makes one pass over all shared pages with a chat destination. Exits non-zero if any page failed; the other pages are still processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyOnce(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runNotifyOnce(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	adapter, err := connectAdapter(ctx, cfg)
	if err != nil {
		return err
	}
	defer adapter.Close()

	sched, err := newScheduler(cfg, gormDB, adapter)
	if err != nil {
		return err
	}
	summary, err := sched.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)
	return summary.Err()
}

func newNotifyServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Send digests on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return runNotifyDaemon(ctx, cmd, cfg, gormDB)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runNotifyDaemon(ctx context.Context, cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB) error {
	adapter, err := connectAdapter(ctx, cfg)
	if err != nil {
		return err
	}
	defer adapter.Close()

	sched, err := newScheduler(cfg, gormDB, adapter)
	if err != nil {
		return err
	}
	daemon, err := notify.NewDaemon(sched, cfg.Notify.Schedule, cfg.Location())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Digest daemon running on %q via %s (Ctrl+C to stop)\n", cfg.Notify.Schedule, cfg.Gateway.Platform)
	return daemon.Run(ctx)
}

func newNotifyTestCmd() *cobra.Command {
	var (
		configPath string
		text       string
	)

	cmd := &cobra.Command{
		Use:   "test <chat>",
		Short: "Send a test message to a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signalContext()
			defer stop()

			adapter, err := connectAdapter(ctx, cfg)
			if err != nil {
				return err
			}
			defer adapter.Close()

			sendCtx, cancel := context.WithTimeout(ctx, cfg.Notify.SendTimeout)
			defer cancel()
			if err := adapter.Send(sendCtx, telegraph.OutboundMessage{ChannelID: args[0], Text: text}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent test message to %s\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&text, "text", "Taskyard test message", "message text")
	return cmd
}

func newScheduler(cfg *config.Config, gormDB *gorm.DB, adapter telegraph.Adapter) (*notify.Scheduler, error) {
	return notify.New(gormDB, adapter, nil, notify.Options{
		Owner:       cfg.Owner,
		Workers:     cfg.Notify.Workers,
		SendTimeout: cfg.Notify.SendTimeout,
		Throttle: notify.Throttle{
			Cooldown: cfg.Notify.Cooldown,
			SendHour: *cfg.Notify.SendHour,
			Location: cfg.Location(),
		},
		BaseURL: cfg.Notify.BaseURL,
		Logger:  logrus.StandardLogger().WithField("component", "notify"),
	})
}

func printSummary(out io.Writer, summary *notify.Summary) {
	if len(summary.Results) == 0 {
		fmt.Fprintln(out, "No shared pages with a chat destination.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAGE\tNAME\tSENT\tRESULT")
	for _, r := range summary.Results {
		result := "ok"
		if r.Err != nil {
			result = r.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.PageID, truncate(r.PageName, 30), r.Sent, result)
	}
	w.Flush()
}
