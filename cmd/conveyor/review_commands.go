package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"conveyor/internal/queue"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Handle tasks held for manual review",
	}

	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewApproveCommand(ctx))
	reviewCmd.AddCommand(newReviewRerunCommand(ctx))
	reviewCmd.AddCommand(newReviewEditCommand(ctx))

	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks awaiting manual review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				tasks, err := store.TasksByStatus(cmd.Context(), queue.StatusAwaitingReview)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks awaiting review")
					return nil
				}

				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						shortID(task.ID),
						truncate(displayTitle(task), 40),
						findingsCell(task),
					})
				}
				out := renderTable(
					[]string{"ID", "Title", "Findings"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

// approve overrides the moderation hold and releases the task to the upload
// lane as-is.
func newReviewApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <task-id>",
		Short: "Release a held task for upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				task, err := resolveTask(cmd, store, args[0])
				if err != nil {
					return err
				}
				updated, err := store.Transition(cmd.Context(), task.ID, queue.EventBypass)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", updated.ID, updated.Status)
				return nil
			})
		},
	}
}

// rerun sends a held task back through moderation, picking up any metadata
// fixes made in the meantime.
func newReviewRerunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rerun <task-id>",
		Short: "Send a held task back through moderation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				task, err := resolveTask(cmd, store, args[0])
				if err != nil {
					return err
				}
				updated, err := store.Transition(cmd.Context(), task.ID, queue.EventResume)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", updated.ID, updated.Status)
				return nil
			})
		},
	}
}

// edit amends the stored publish metadata while the task is held, so a rerun
// moderates the corrected document instead of the one that tripped a finding.
func newReviewEditCommand(ctx *commandContext) *cobra.Command {
	var (
		title       string
		description string
		tags        []string
		category    string
	)
	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Amend a held task's publish metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				task, err := resolveTask(cmd, store, args[0])
				if err != nil {
					return err
				}
				if task.Status != queue.StatusAwaitingReview {
					return fmt.Errorf("task %s is %s; only tasks awaiting review can be edited", shortID(task.ID), task.Status)
				}

				flags := cmd.Flags()
				if !flags.Changed("title") && !flags.Changed("description") &&
					!flags.Changed("tags") && !flags.Changed("category") {
					return errors.New("nothing to change: pass --title, --description, --tags, or --category")
				}

				meta, err := task.Metadata()
				if err != nil {
					return err
				}
				if flags.Changed("title") {
					meta.TranslatedTitle = title
				}
				if flags.Changed("description") {
					meta.TranslatedDescription = description
				}
				if flags.Changed("tags") {
					meta.Tags = tags
				}
				if flags.Changed("category") {
					meta.Category = category
				}
				if err := task.SetMetadata(meta); err != nil {
					return err
				}
				if err := store.Update(cmd.Context(), task); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated metadata for task %s\n", shortID(task.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "replacement translated title")
	cmd.Flags().StringVar(&description, "description", "", "replacement translated description")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "replacement tag list")
	cmd.Flags().StringVar(&category, "category", "", "replacement category")
	return cmd
}

func findingsCell(task *queue.Task) string {
	findings, err := task.Findings()
	if err != nil || len(findings) == 0 {
		return ""
	}
	cell := ""
	for i, finding := range findings {
		if i > 0 {
			cell += "; "
		}
		cell += fmt.Sprintf("%s: %q", finding.Field, finding.Term)
	}
	return cell
}
