// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bimcloud-demo/internal/config"
	"bimcloud-demo/internal/domain/ports/adapter"
	"bimcloud-demo/internal/infra/bimcloud"
	"bimcloud-demo/internal/infra/clock"
	"bimcloud-demo/internal/infra/identity"
	"bimcloud-demo/internal/infra/logging"
	"bimcloud-demo/internal/infra/metrics"
	"bimcloud-demo/internal/infra/notify"
	red "bimcloud-demo/internal/infra/redis"
	"bimcloud-demo/internal/infra/storage"
	"bimcloud-demo/internal/infra/web"
	"bimcloud-demo/internal/usecase"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	flags := pflag.NewFlagSet("bimcloud-demo", pflag.ExitOnError)
	cfgPath := flags.StringP("config", "c", "config.yaml", "path to YAML config file")
	devMode := flags.Bool("dev", false, "enable developer mode (console logs, unredacted secrets)")
	source := flags.StringP("source", "s", "", "IFC source file to upload (overrides config)")
	noViewer := flags.Bool("no-viewer", false, "exit after downloading instead of serving the viewer")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.SourceFile = *source
	}
	if *noViewer {
		cfg.Viewer.Enabled = false
	}

	// ---- Logging & metrics ----
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx = logging.WithRunID(ctx, uuid.NewString())
	log := logging.With(ctx, logger)
	log.Info().
		Str("source", cfg.SourceFile).
		Str("base_url", cfg.API.BaseURL).
		Str("client_id", logging.Redact(cfg.Identity.ClientID, cfg.Runtime.Dev)).
		Msg("starting")

	// ---- Status notifications ----
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		notifiers = append(notifiers, notify.NewRedisNotifier(redisClient, cfg.Redis.Channel, logger))
		log.Info().Str("channel", cfg.Redis.Channel).Msg("publishing operation events to redis")
	}

	// ---- Adapters ----
	var tokens adapter.TokenProvider = identity.NewProvider(cfg.Identity, nil, logger)
	client := bimcloud.NewClient(cfg.API, logger)
	store, err := storage.NewLocalStore(cfg.Storage.Dir, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("artifact storage")
	}

	// ---- Use cases ----
	poller := usecase.NewOperationPoller(client, store, notifiers, clock.Real(), usecase.PollerOptions{
		Interval:           cfg.Poll.Interval,
		Timeout:            cfg.Poll.Timeout,
		MaxTransientErrors: cfg.Poll.MaxTransientErrors,
	}, logger)
	aggregator := usecase.NewAggregator(poller, cfg.Poll.Concurrency, logger)
	workflow := usecase.NewWorkflow(tokens, client, aggregator, logger)

	result, err := workflow.Run(ctx, cfg.SourceFile)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("interrupted")
			return
		}
		log.Fatal().Err(err).Msg("workflow")
	}
	for slot, name := range result.Slots {
		log.Info().Str("slot", string(slot)).Str("file", name).Msg("artifact available")
	}

	// ---- Viewer ----
	if !cfg.Viewer.Enabled {
		return
	}
	if ctx.Err() != nil {
		log.Warn().Msg("interrupted, viewer not started")
		return
	}
	viewer := web.NewServer(cfg.Viewer, result.AssetID, result.Slots, store, logger)
	if err := viewer.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("viewer")
	}
	log.Info().Msg("viewer closed")
}
