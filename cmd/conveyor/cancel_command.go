package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"conveyor/internal/queue"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cooperative cancellation of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				task, err := resolveTask(cmd, store, args[0])
				if err != nil {
					return err
				}
				requested, err := store.RequestCancel(cmd.Context(), task.ID)
				if err != nil {
					return err
				}
				if !requested {
					fmt.Fprintf(cmd.OutOrStdout(), "Task %s is already finished\n", task.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s; the worker stops at the next stage boundary\n", task.ID)
				return nil
			})
		},
	}
}
