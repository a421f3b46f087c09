package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskChainCmd())
	cmd.AddCommand(newTaskDepCmd())
	for _, t := range transitions {
		cmd.AddCommand(newTaskTransitionCmd(t))
	}
	return cmd
}

type taskFlags struct {
	name          string
	kind          string
	pageID        uint
	activate      string
	deadline      string
	every         string
	after         uint
	notes         string
	position      string
	status        string
	clearActivate bool
	clearDeadline bool
}

func newTaskAddCmd() *cobra.Command {
	var (
		configPath string
		f          taskFlags
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		Long: `Adds a task. Kinds:
  normal        a one-off task
  repetitive    recurs every --every, anchored on its activate/deadline window
  never_ending  reappears --every after each completion
  pipeline      activates when the --after task is done
  notes         free text pinned to the top or bottom of a page`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskAdd(cmd, configPath, f)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&f.name, "name", "", "task name (required)")
	cmd.Flags().StringVar(&f.kind, "kind", models.KindNormal, "task kind")
	cmd.Flags().UintVar(&f.pageID, "page", 0, "page id")
	cmd.Flags().StringVar(&f.activate, "activate", "", "activation time")
	cmd.Flags().StringVar(&f.deadline, "deadline", "", "deadline")
	cmd.Flags().StringVar(&f.every, "every", "", "recurrence interval, e.g. 7d or 36h")
	cmd.Flags().UintVar(&f.after, "after", 0, "prerequisite task id (pipeline)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "note text (notes)")
	cmd.Flags().StringVar(&f.position, "position", "", "top (default) or bottom (notes)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runTaskAdd(cmd *cobra.Command, configPath string, f taskFlags) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	loc := cfg.Location()

	opts := task.CreateOpts{
		Owner:    cfg.Owner,
		Name:     f.name,
		Kind:     f.kind,
		Notes:    f.notes,
		Position: f.position,
	}
	if f.pageID != 0 {
		opts.PageID = &f.pageID
	}
	if f.after != 0 {
		opts.PrerequisiteID = &f.after
	}
	if opts.Activate, err = optionalTime(f.activate, loc); err != nil {
		return err
	}
	if opts.Deadline, err = optionalTime(f.deadline, loc); err != nil {
		return err
	}
	if f.every != "" {
		if opts.Duration, err = parseDuration(f.every); err != nil {
			return err
		}
	}

	t, err := task.NewEngine(gormDB, nil).Create(opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s task %d: %s\n", t.Kind, t.ID, t.Name)
	return nil
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		pageID     uint
		filters    task.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "Lists tasks with optional filters. Views: all, week, next_week, activated, open.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageID != 0 {
				filters.PageID = &pageID
			}
			return runTaskList(cmd, configPath, filters)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().UintVar(&pageID, "page", 0, "filter by page id")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status (ACTIVE, DONE, FAILED)")
	cmd.Flags().StringVar(&filters.Kind, "kind", "", "filter by kind")
	cmd.Flags().StringVar(&filters.View, "view", task.ViewAll, "list view")
	cmd.Flags().BoolVar(&filters.IncludeOld, "old", false, "include tasks completed long ago")
	return cmd
}

func runTaskList(cmd *cobra.Command, configPath string, filters task.ListFilters) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	filters.Owner = cfg.Owner
	now := time.Now()

	tasks, err := task.List(gormDB, filters, now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}
	printTaskTable(out, tasks, now)
	return nil
}

func printTaskTable(out io.Writer, tasks []models.Task, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tSTATUS\tDUE")
	for i := range tasks {
		t := &tasks[i]
		due := task.DueInString(t, now)
		if due == "" {
			due = "-"
		}
		if task.IsOverdue(t, now) {
			due += " (overdue)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, truncate(t.Name, 40), t.Kind, t.Status, due)
	}
	w.Flush()
}

func newTaskShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskShow(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runTaskShow(cmd *cobra.Command, configPath, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	t, err := task.Get(gormDB, id)
	if err != nil {
		return err
	}
	loc := cfg.Location()
	now := time.Now()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task %d: %s\n", t.ID, t.Name)
	fmt.Fprintf(out, "Kind:      %s\n", t.Kind)
	fmt.Fprintf(out, "Status:    %s\n", t.Status)
	fmt.Fprintf(out, "Activate:  %s\n", formatTime(t.Activate, loc))
	fmt.Fprintf(out, "Deadline:  %s\n", formatTime(t.Deadline, loc))
	fmt.Fprintf(out, "Completed: %s\n", formatTime(t.Completed, loc))
	if due := task.DueInString(t, now); due != "" {
		fmt.Fprintf(out, "Due:       %s\n", due)
	}
	if t.PageID != nil {
		fmt.Fprintf(out, "Page:      %d\n", *t.PageID)
	}
	if t.IsChain() {
		fmt.Fprintf(out, "Every:     %s\n", t.Duration)
		if t.PreviousID != nil {
			fmt.Fprintf(out, "Previous:  %d\n", *t.PreviousID)
		}
		if t.Blocked {
			fmt.Fprintln(out, "Blocked:   yes")
		}
	}
	if t.PrerequisiteID != nil {
		fmt.Fprintf(out, "After:     %d\n", *t.PrerequisiteID)
	}
	if t.Notes != "" {
		fmt.Fprintf(out, "\nNotes (%s):\n%s\n", t.Position, t.Notes)
	}

	deps, err := task.Dependents(gormDB, t.ID)
	if err != nil {
		return err
	}
	if len(deps) > 0 {
		fmt.Fprintln(out, "\nWaiting on this task:")
		for _, d := range deps {
			fmt.Fprintf(out, "  %d  %s  [%s]\n", d.ID, d.Name, d.Status)
		}
	}
	return nil
}

type transition struct {
	use   string
	short string
	run   func(e *task.Engine, id uint) (*models.Task, error)
}

var transitions = []transition{
	{"complete", "Mark a task done", (*task.Engine).Complete},
	{"reset", "Reopen a done or failed task", (*task.Engine).Reset},
	{"toggle", "Complete an active task or reopen a closed one", (*task.Engine).Toggle},
	{"fail", "Mark a task failed", (*task.Engine).Fail},
}

func newTaskTransitionCmd(tr transition) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   tr.use + " <id>",
		Short: tr.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := tr.run(task.NewEngine(gormDB, nil), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d is now %s\n", t.ID, t.Status)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		configPath string
		f          taskFlags
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Long:  "Updates the given fields. Setting --status assigns it directly, without chain or pipeline effects of complete and reset.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskUpdate(cmd, configPath, args[0], f)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&f.name, "name", "", "new name")
	cmd.Flags().StringVar(&f.activate, "activate", "", "activation time")
	cmd.Flags().BoolVar(&f.clearActivate, "clear-activate", false, "remove the activation time")
	cmd.Flags().StringVar(&f.deadline, "deadline", "", "deadline")
	cmd.Flags().BoolVar(&f.clearDeadline, "clear-deadline", false, "remove the deadline")
	cmd.Flags().StringVar(&f.every, "every", "", "recurrence interval")
	cmd.Flags().StringVar(&f.notes, "notes", "", "note text")
	cmd.Flags().StringVar(&f.position, "position", "", "top or bottom")
	cmd.Flags().StringVar(&f.status, "status", "", "ACTIVE, DONE, or FAILED")
	return cmd
}

func runTaskUpdate(cmd *cobra.Command, configPath, rawID string, f taskFlags) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	loc := cfg.Location()
	flags := cmd.Flags()

	opts := task.UpdateOpts{
		ClearActivate: f.clearActivate,
		ClearDeadline: f.clearDeadline,
	}
	if flags.Changed("name") {
		opts.Name = &f.name
	}
	if flags.Changed("notes") {
		opts.Notes = &f.notes
	}
	if flags.Changed("position") {
		opts.Position = &f.position
	}
	if flags.Changed("status") {
		opts.Status = &f.status
	}
	if opts.Activate, err = optionalTime(f.activate, loc); err != nil {
		return err
	}
	if opts.Deadline, err = optionalTime(f.deadline, loc); err != nil {
		return err
	}
	if f.every != "" {
		d, err := parseDuration(f.every)
		if err != nil {
			return err
		}
		opts.Duration = &d
	}

	t, err := task.NewEngine(gormDB, nil).Update(id, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d\n", t.ID)
	return nil
}

func newTaskDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Long:  "Deletes a task. Chains are spliced around it and pipeline tasks waiting on it are detached.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := task.NewEngine(gormDB, nil).Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTaskChainCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "chain <id>",
		Short: "Show the recurrence chain around a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskChain(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runTaskChain(cmd *cobra.Command, configPath, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	before, err := task.ChainBefore(gormDB, id)
	if err != nil {
		return err
	}
	after, err := task.ChainAfter(gormDB, id)
	if err != nil {
		return err
	}
	self, err := task.Get(gormDB, id)
	if err != nil {
		return err
	}

	// Oldest first.
	ordered := make([]models.Task, 0, len(before)+1+len(after))
	for i := len(before) - 1; i >= 0; i-- {
		ordered = append(ordered, before[i])
	}
	ordered = append(ordered, *self)
	ordered = append(ordered, after...)

	printTaskTable(cmd.OutOrStdout(), ordered, time.Now())
	return nil
}

func newTaskDepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage pipeline prerequisites",
	}

	cmd.AddCommand(newTaskDepSetCmd())
	cmd.AddCommand(newTaskDepClearCmd())
	cmd.AddCommand(newTaskDepListCmd())
	return cmd
}

func newTaskDepSetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set <id> <prerequisite-id>",
		Short: "Make a pipeline task wait on another task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			prereq, err := parseID(args[1])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := task.NewEngine(gormDB, nil).SetPrerequisite(id, &prereq); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d now waits on %d\n", id, prereq)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTaskDepClearCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clear <id>",
		Short: "Detach a pipeline task from its prerequisite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := task.NewEngine(gormDB, nil).SetPrerequisite(id, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d no longer waits on another task\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTaskDepListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <id>",
		Short: "List pipeline tasks waiting on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			deps, err := task.Dependents(gormDB, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(deps) == 0 {
				fmt.Fprintf(out, "No tasks wait on %d.\n", id)
				return nil
			}
			printTaskTable(out, deps, time.Now())
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func optionalTime(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
