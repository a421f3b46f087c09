package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskyard/internal/config"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/page"
	"gorm.io/gorm"
)

func newPageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Page management commands",
	}

	cmd.AddCommand(newPageAddCmd())
	cmd.AddCommand(newPageListCmd())
	cmd.AddCommand(newPageShowCmd())
	cmd.AddCommand(newPageShareCmd())
	cmd.AddCommand(newPageUnshareCmd())
	cmd.AddCommand(newPageDestinationCmd())
	cmd.AddCommand(newPageTagCmd())
	cmd.AddCommand(newPageMessagesCmd())
	cmd.AddCommand(newPageDeleteCmd())
	return cmd
}

func newPageAddCmd() *cobra.Command {
	var (
		configPath string
		chatID     string
		tag        string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p, err := page.Create(gormDB, page.CreateOpts{
				Owner:  cfg.Owner,
				Name:   args[0],
				ChatID: chatID,
				Tag:    tag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created page %d: %s\n", p.ID, p.Name)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&chatID, "chat", "", "chat destination for digests (sent once the page is shared)")
	cmd.Flags().StringVar(&tag, "tag", "", "mention prefixed to digests, e.g. @alice")
	return cmd
}

func newPageListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			pages, err := page.List(gormDB, cfg.Owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(pages) == 0 {
				fmt.Fprintln(out, "No pages found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCHAT\tSHARED\tMESSAGES")
			for i := range pages {
				p := &pages[i]
				shared := "no"
				if p.IsShared {
					shared = "yes"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", p.ID, truncate(p.Name, 30), deref(p.ChatID), shared, len(p.Messages))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newPageShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show page details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, p, err := loadOwnPage(configPath, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Page %d: %s\n", p.ID, p.Name)
			fmt.Fprintf(out, "Chat:     %s\n", deref(p.ChatID))
			fmt.Fprintf(out, "Tag:      %s\n", deref(p.Tag))
			if p.IsShared {
				fmt.Fprintf(out, "Shared:   %s\n", shareURL(cfg, p))
			} else {
				fmt.Fprintln(out, "Shared:   no")
			}
			fmt.Fprintf(out, "Messages: %d\n", len(p.Messages))
			if last := page.LastMessage(p); last != nil {
				fmt.Fprintf(out, "Last:     %s\n", formatTime(&last.Timestamp, cfg.Location()))
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newPageShareCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "share <id>",
		Short: "Publish a read-only link to the page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, p, err := loadOwnPage(configPath, args[0])
			if err != nil {
				return err
			}
			p, err = page.Share(gormDB, p.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Page %d shared at %s\n", p.ID, shareURL(cfg, p))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newPageUnshareCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "unshare <id>",
		Short: "Revoke the page's shared link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, p, err := loadOwnPage(configPath, args[0])
			if err != nil {
				return err
			}
			if _, err := page.Unshare(gormDB, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Page %d is no longer shared\n", p.ID)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newPageDestinationCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "destination <id> [chat]",
		Short: "Set or clear the page's digest chat",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, p, err := loadOwnPage(configPath, args[0])
			if err != nil {
				return err
			}
			chatID := ""
			if len(args) == 2 {
				chatID = args[1]
			}
			if _, err := page.SetDestination(gormDB, p.ID, chatID); err != nil {
				return err
			}
			if chatID == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Page %d will not receive digests\n", p.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Page %d digests go to %s\n", p.ID, chatID)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newPageTagCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tag <id> [tag]",
		Short: "Set or clear the mention prefixed to digests",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, p, err := loadOwnPage(configPath, args[0])
			if err != nil {
				return err
			}
			tag := ""
			if len(args) == 2 {
				tag = args[1]
			}
			if _, err := page.SetTag(gormDB, p.ID, tag); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated tag of page %d\n", p.ID)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newPageMessagesCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "messages <id>",
		Short: "Show the digests sent for a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, p, err := loadOwnPage(configPath, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			msgs := []models.PageMessage(p.Messages)
			if len(msgs) == 0 {
				fmt.Fprintln(out, "No messages sent.")
				return nil
			}
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[len(msgs)-limit:]
			}
			for _, m := range msgs {
				fmt.Fprintf(out, "[%s]\n%s\n\n", formatTime(&m.Timestamp, cfg.Location()), strings.TrimRight(m.Text, "\n"))
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "show the last n messages (0 for all)")
	return cmd
}

func newPageDeleteCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a page; its tasks are kept without a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, p, err := loadOwnPage(configPath, args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd, fmt.Sprintf("Delete page %q?", p.Name)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			if err := page.Delete(gormDB, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted page %d\n", p.ID)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

// loadOwnPage connects and loads the page, refusing pages of other owners.
func loadOwnPage(configPath, rawID string) (*config.Config, *gorm.DB, *models.Page, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := page.Get(gormDB, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if p.Owner != cfg.Owner {
		return nil, nil, nil, fmt.Errorf("%w: %d", page.ErrNotFound, id)
	}
	return cfg, gormDB, p, nil
}

func shareURL(cfg *config.Config, p *models.Page) string {
	return strings.TrimRight(cfg.Notify.BaseURL, "/") + page.Link(p)
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
