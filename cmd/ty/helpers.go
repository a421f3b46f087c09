package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskyard/internal/config"
	"github.com/zulandar/taskyard/internal/db"
	"github.com/zulandar/taskyard/internal/logging"
	"github.com/zulandar/taskyard/internal/telegraph"
	discordadapter "github.com/zulandar/taskyard/internal/telegraph/discord"
	slackadapter "github.com/zulandar/taskyard/internal/telegraph/slack"
	telegramadapter "github.com/zulandar/taskyard/internal/telegraph/telegram"
	"golang.org/x/term"
	"gorm.io/gorm"
)

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	if _, err := logging.Setup(cfg.Log); err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to Taskyard config file")
}

// newAdapter builds a platform adapter from the config. Allows test override.
var newAdapter = func(cfg *config.Config) (telegraph.Adapter, error) {
	var (
		a   telegraph.Adapter
		err error
	)
	switch cfg.Gateway.Platform {
	case "telegram":
		a, err = telegramadapter.New(telegramadapter.AdapterOpts{Token: cfg.Gateway.TelegramToken})
	case "slack":
		a, err = slackadapter.New(slackadapter.AdapterOpts{BotToken: cfg.Gateway.SlackBotToken})
	case "discord":
		a, err = discordadapter.New(discordadapter.AdapterOpts{BotToken: cfg.Gateway.DiscordBotToken})
	case "":
		return nil, fmt.Errorf("gateway.platform is not configured")
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Gateway.Platform)
	}
	if err != nil {
		return nil, err
	}
	return telegraph.NewPaced(a, cfg.Gateway.MessagesPerMinute), nil
}

// connectAdapter builds and connects the configured adapter. The caller
// must Close it.
func connectAdapter(ctx context.Context, cfg *config.Config) (telegraph.Adapter, error) {
	a, err := newAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("create adapter: %w", err)
	}
	if err := a.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Gateway.Platform, err)
	}
	return a, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// confirm asks a yes/no question. Without a terminal on stdin there is
// nobody to answer, so it declines.
func confirm(cmd *cobra.Command, prompt string) bool {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt+" Type \"yes\" to confirm: ")
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime reads a flag timestamp in loc. Accepts RFC 3339, a date, or a
// date with hours and minutes.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use YYYY-MM-DD, YYYY-MM-DD HH:MM, or RFC 3339)", s)
}

// parseDuration accepts Go durations plus a day suffix, e.g. "7d" or "1d12h".
func parseDuration(s string) (time.Duration, error) {
	var total time.Duration
	if i := strings.Index(s, "d"); i > 0 {
		days, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total = time.Duration(days) * 24 * time.Hour
		s = s[i+1:]
		if s == "" {
			return total, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total + d, nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

// truncate shortens s to max characters, adding "..." if truncated.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
