package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"conveyor/internal/queue"
)

// statusOrder fixes the row order for queue summaries.
var statusOrder = []queue.Status{
	queue.StatusPending,
	queue.StatusDownloading,
	queue.StatusDownloaded,
	queue.StatusSubtitleProcessing,
	queue.StatusSubtitled,
	queue.StatusEnhancing,
	queue.StatusEnhanced,
	queue.StatusModerating,
	queue.StatusAwaitingReview,
	queue.StatusReadyForUpload,
	queue.StatusUploading,
	queue.StatusCompleted,
	queue.StatusFailed,
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if len(stats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(stats))
				for _, status := range statusOrder {
					if count, ok := stats[status]; ok {
						rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
					}
				}
				out := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				tasks, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						shortID(task.ID),
						string(task.Status),
						truncate(displayTitle(task), 40),
						progressCell(task),
						task.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				out := renderTable(
					[]string{"ID", "Status", "Title", "Progress", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				task, err := resolveTask(cmd, store, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", task.ID)
				fmt.Fprintf(out, "Status:      %s\n", task.Status)
				fmt.Fprintf(out, "Source:      %s\n", task.SourceURL)
				fmt.Fprintf(out, "Title:       %s\n", displayTitle(task))
				if task.ProgressStage != "" {
					fmt.Fprintf(out, "Progress:    %s\n", progressCell(task))
				}
				if task.SubtitlePath != "" {
					fmt.Fprintf(out, "Subtitles:   %s (score %.2f)\n", task.SubtitlePath, task.QCScore)
				}
				if task.ExternalID != "" {
					fmt.Fprintf(out, "External ID: %s\n", task.ExternalID)
				}
				if task.ErrorStage != "" {
					fmt.Fprintf(out, "Error:       %s [%s] after %d attempt(s): %s\n",
						task.ErrorStage, task.ErrorClass, task.ErrorAttempts, task.ErrorMessage)
				}
				findings, err := task.Findings()
				if err == nil && len(findings) > 0 {
					fmt.Fprintln(out, "Findings:")
					for _, finding := range findings {
						fmt.Fprintf(out, "  - %s: %q (%s)\n", finding.Field, finding.Term, finding.Severity)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [task-id...]",
		Short: "Requeue failed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				ids, err := resolveTaskIDs(cmd, store, args)
				if err != nil {
					return err
				}
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d task(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Remove a task from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				task, err := resolveTask(cmd, store, args[0])
				if err != nil {
					return err
				}
				removed, err := store.Remove(cmd.Context(), task.ID)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintln(cmd.OutOrStdout(), "Task not found")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", task.ID)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear completed tasks (or more with flags)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				var count int64
				var err error
				switch {
				case clearAll:
					count, err = store.Clear(cmd.Context())
				case clearFailed:
					count, err = store.ClearFailed(cmd.Context())
				default:
					count, err = store.ClearCompleted(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d task(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every task regardless of status")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed tasks instead of completed")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database:   %s\n", health.DBPath)
				fmt.Fprintf(out, "Exists:     %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable:   %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Integrity:  %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Tasks:      %d\n", health.TotalTasks)
				return err
			})
		},
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// resolveTask accepts full task IDs or unambiguous prefixes.
func resolveTask(cmd *cobra.Command, store *queue.Store, ref string) (*queue.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("task id is required")
	}

	task, err := store.GetByID(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	if task != nil {
		return task, nil
	}

	tasks, err := store.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	var match *queue.Task
	for _, candidate := range tasks {
		if strings.HasPrefix(candidate.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("task id prefix %q is ambiguous", ref)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, fmt.Errorf("task %q not found", ref)
	}
	return match, nil
}

func resolveTaskIDs(cmd *cobra.Command, store *queue.Store, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		task, err := resolveTask(cmd, store, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, task.ID)
	}
	return ids, nil
}

func displayTitle(task *queue.Task) string {
	if meta, err := task.Metadata(); err == nil && meta.TranslatedTitle != "" {
		return meta.TranslatedTitle
	}
	if task.Title != "" {
		return task.Title
	}
	return task.SourceURL
}

func progressCell(task *queue.Task) string {
	if task.ProgressStage == "" {
		return ""
	}
	return fmt.Sprintf("%s %.0f%%", task.ProgressStage, task.ProgressPercent)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
