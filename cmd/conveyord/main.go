package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"conveyor/internal/config"
	"conveyor/internal/daemon"
	"conveyor/internal/lanes"
	"conveyor/internal/logging"
	"conveyor/internal/notifications"
	"conveyor/internal/poller"
	"conveyor/internal/queue"
	"conveyor/internal/services/asr"
	"conveyor/internal/services/downloader"
	"conveyor/internal/services/enhancer"
	"conveyor/internal/services/feed"
	"conveyor/internal/services/moderator"
	"conveyor/internal/services/publisher"
	"conveyor/internal/services/qc"
	"conveyor/internal/services/vad"
	"conveyor/internal/staging"
	"conveyor/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	sinks := []notifications.Sink{notifications.NewLogSink(logger)}
	if webhook := notifications.NewWebhookSink(cfg.Notifications); webhook != nil {
		sinks = append(sinks, webhook)
	}
	bus := notifications.NewBus(sinks, logger)

	scratch := staging.NewManager(cfg, logger)
	controller := lanes.NewController(cfg.Lanes.Processing, cfg.Lanes.Upload)

	collab := workflow.Collaborators{
		Fetcher:    downloader.New(cfg.Downloader),
		Detector:   vad.New(cfg.VAD),
		Recognizer: asr.New(cfg.ASR),
		Scorer:     qc.New(cfg.QC),
		Translator: enhancer.New(cfg.Enhancer),
		Reviewer:   moderator.New(cfg.Moderator),
		Uploader:   publisher.New(cfg.Publisher),
	}
	factory := workflow.DefaultStageFactory(cfg, collab, scratch, logger)
	manager := workflow.NewManager(cfg, store, controller, bus, scratch, factory, logger)

	jobs := poller.MaintenanceJobs(cfg, store, scratch, logger)
	if cfg.Monitor.Enabled {
		jobs = append(jobs, poller.MonitorJob(cfg, store, feed.New(cfg.Monitor), logger))
	}
	maintenance := poller.New(logger, jobs...)

	d, err := daemon.New(cfg, store, manager, maintenance, bus, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	for _, health := range manager.HealthChecks(ctx) {
		if !health.Ready {
			logger.Warn("stage not ready",
				logging.String("stage", health.Name),
				logging.String("detail", health.Detail))
		}
	}

	<-ctx.Done()
	logger.Info("conveyord shutting down")
}
