package poller

import (
	"context"
	"log/slog"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/queue"
	"conveyor/internal/services/feed"
)

// Source lists recently published videos for a channel. Satisfied by
// *feed.Client.
type Source interface {
	Recent(ctx context.Context, channelID string, limit int) ([]feed.Video, error)
}

// MonitorJob polls the configured channels and queues any upload not already
// known to the store. A channel that fails to list is skipped for the cycle;
// the remaining channels still get polled.
func MonitorJob(cfg *config.Config, store *queue.Store, source Source, logger *slog.Logger) Job {
	if logger == nil {
		logger = logging.NewNop()
	}
	mon := cfg.Monitor
	return Job{
		Name:     "source_monitor",
		Interval: time.Duration(mon.IntervalMinutes) * time.Minute,
		Run: func(ctx context.Context) error {
			for _, channel := range mon.Channels {
				videos, err := source.Recent(ctx, channel, mon.MaxPerPoll)
				if err != nil {
					logger.Warn("channel poll failed",
						logging.String("channel", channel),
						logging.Error(err))
					continue
				}
				queued := 0
				for _, video := range videos {
					if outsideDurationWindow(mon, video.DurationSeconds) {
						continue
					}
					existing, err := store.FindBySourceURL(ctx, video.URL)
					if err != nil {
						return err
					}
					if existing != nil {
						continue
					}
					task, err := store.NewTask(ctx, video.URL, video.Title)
					if err != nil {
						return err
					}
					queued++
					logger.Info("queued monitored upload",
						logging.String(logging.FieldTaskID, task.ID),
						logging.String("channel", channel),
						logging.String("title", video.Title))
				}
				if queued > 0 {
					logger.Info("channel poll complete",
						logging.String("channel", channel),
						logging.Int("queued", queued))
				}
			}
			return nil
		},
	}
}

// outsideDurationWindow applies the configured length bounds. A bound of
// zero is disabled.
func outsideDurationWindow(mon config.Monitor, durationSeconds float64) bool {
	if mon.MinDurationSeconds > 0 && durationSeconds < float64(mon.MinDurationSeconds) {
		return true
	}
	if mon.MaxDurationSeconds > 0 && durationSeconds > float64(mon.MaxDurationSeconds) {
		return true
	}
	return false
}
