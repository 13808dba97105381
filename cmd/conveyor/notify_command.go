package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"conveyor/internal/notifications"
	"conveyor/internal/queue"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test event to the configured webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sink := notifications.NewWebhookSink(cfg.Notifications)
			if sink == nil {
				return fmt.Errorf("no webhook url configured under [notifications]")
			}

			event := notifications.Event{
				TaskID:  "test",
				Status:  queue.StatusFailed,
				Stage:   "notify",
				Summary: "conveyor test notification",
				Time:    time.Now(),
			}
			if err := sink.Deliver(cmd.Context(), event); err != nil {
				return fmt.Errorf("deliver test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent (uses the errors category)")
			return nil
		},
	}
}
