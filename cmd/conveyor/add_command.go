package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"conveyor/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <source-url>",
		Short: "Queue a video for re-upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceURL := strings.TrimSpace(args[0])
			if sourceURL == "" {
				return fmt.Errorf("source url is required")
			}

			return ctx.withStore(func(store *queue.Store) error {
				existing, err := store.FindBySourceURL(cmd.Context(), sourceURL)
				if err != nil {
					return err
				}
				if existing != nil && existing.Status != queue.StatusFailed {
					fmt.Fprintf(cmd.OutOrStdout(), "Already queued as %s (%s)\n", existing.ID, existing.Status)
					return nil
				}

				task, err := store.NewTask(cmd.Context(), sourceURL, title)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", task.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Optional title override")
	return cmd
}
