// chatexport runs one ingestion cycle against a chat bridge: it extracts
// structured records from a channel's message history and appends them to a
// tabular destination, tracking progress in a watermark so repeated runs
// only process new messages.
//
// Usage:
//
//	chatexport -config config.yaml run
//	chatexport -config config.yaml channels
//
// Scheduling is deliberately external (cron or similar); the caller must
// also ensure runs do not overlap, e.g. with flock.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
	"github.com/illmade-knight/go-chatexport/pkg/ingest"
	"github.com/illmade-knight/go-chatexport/pkg/tabsink"
	"github.com/illmade-knight/go-chatexport/pkg/wabridge"
	"github.com/illmade-knight/go-chatexport/pkg/watermark"
	"github.com/rs/zerolog"
)

const (
	exitOK          = 0
	exitCycleFailed = 1
	exitBadConfig   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if *debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	command := flag.Arg(0)
	if command == "" {
		command = "run"
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid configuration.")
		return exitBadConfig
	}

	ctx := context.Background()
	source, err := wabridge.NewClient(wabridge.ClientConfig{
		BaseURL: cfg.Bridge.BaseURL,
		Timeout: cfg.BridgeTimeout(),
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid bridge configuration.")
		return exitBadConfig
	}

	switch command {
	case "channels":
		return listChannels(ctx, source, logger)
	case "run":
		return runCycle(ctx, cfg, source, logger)
	default:
		logger.Error().Str("command", command).Msg("Unknown command; expected 'run' or 'channels'.")
		return exitBadConfig
	}
}

// listChannels prints the channels the bridge session can read, for
// discovering the channel id to configure.
func listChannels(ctx context.Context, source ingest.MessageSource, logger zerolog.Logger) int {
	channels, err := source.ListChannels(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list channels.")
		return exitCycleFailed
	}
	for _, ch := range channels {
		fmt.Printf("%s\t%s\n", ch.ID, ch.Name)
	}
	return exitOK
}

func runCycle(ctx context.Context, cfg *Config, source ingest.MessageSource, logger zerolog.Logger) int {
	if cfg.Channel.ID == "" {
		logger.Error().Msg("channel.id is required to run an ingestion cycle.")
		return exitBadConfig
	}

	store, closeStore, err := buildWatermarkStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build watermark store.")
		return exitBadConfig
	}
	defer closeStore()

	sink, closeSink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build record sink.")
		return exitBadConfig
	}
	defer closeSink()

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build cycle notifier.")
		return exitBadConfig
	}
	defer closeNotifier()

	parser := chatrecord.NewParser(cfg.Channel.Name)
	coordinator, err := ingest.NewCoordinator(ingest.CoordinatorConfig{
		ChannelID:          cfg.Channel.ID,
		ChannelName:        cfg.Channel.Name,
		PageSize:           cfg.Ingestion.PageSize,
		DeltaFetchLimit:    cfg.Ingestion.DeltaFetchLimit,
		DisableDeltaPaging: cfg.Ingestion.DisableDeltaPaging,
	}, source, parser, sink, store, notifier, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build coordinator.")
		return exitBadConfig
	}

	result := coordinator.RunCycle(ctx)
	if !result.Success {
		logger.Error().
			Str("cycle_id", result.CycleID).
			Str("error", result.Error).
			Msg("Ingestion cycle failed.")
		return exitCycleFailed
	}
	logger.Info().
		Str("cycle_id", result.CycleID).
		Bool("backfill", result.Backfill).
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("parse_errors", result.ParseErrors).
		Str("destination", result.Destination).
		Msg("Ingestion cycle succeeded.")
	return exitOK
}

func buildWatermarkStore(ctx context.Context, cfg *Config, logger zerolog.Logger) (watermark.Store, func(), error) {
	noop := func() {}
	switch cfg.Watermark.Backend {
	case "file":
		store, err := watermark.NewFileStore(cfg.Watermark.File.Path, logger)
		return store, noop, err
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.Watermark.Firestore.ProjectID)
		if err != nil {
			return nil, noop, fmt.Errorf("firestore.NewClient: %w", err)
		}
		docID := cfg.Watermark.Firestore.Document
		if docID == "" {
			docID = cfg.Channel.ID
		}
		store, err := watermark.NewFirestoreStore(watermark.FirestoreConfig{
			ProjectID:      cfg.Watermark.Firestore.ProjectID,
			CollectionName: cfg.Watermark.Firestore.Collection,
			DocumentID:     docID,
		}, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return store, func() { _ = client.Close() }, nil
	case "redis":
		key := cfg.Watermark.Redis.Key
		if key == "" {
			key = "chatexport:watermark:" + cfg.Channel.ID
		}
		store, err := watermark.NewRedisStore(ctx, watermark.RedisConfig{
			Addr:     cfg.Watermark.Redis.Addr,
			Password: cfg.Watermark.Redis.Password,
			DB:       cfg.Watermark.Redis.DB,
			Key:      key,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown watermark backend %q", cfg.Watermark.Backend)
	}
}

func buildSink(ctx context.Context, cfg *Config, logger zerolog.Logger) (tabsink.RecordSink, func(), error) {
	noop := func() {}
	switch cfg.Sink.Backend {
	case "csv":
		sink, err := tabsink.NewCSVSink(cfg.Sink.CSV.Path, logger)
		return sink, noop, err
	case "sheets":
		svc, err := tabsink.NewSheetsService(ctx, cfg.Sink.Sheets.CredentialsFile, logger)
		if err != nil {
			return nil, noop, err
		}
		sink, err := tabsink.NewSheetsSink(tabsink.SheetsSinkConfig{
			SpreadsheetID: cfg.Sink.Sheets.SpreadsheetID,
			SheetName:     cfg.Sink.Sheets.SheetName,
		}, tabsink.NewSpreadsheetAPIAdapter(svc), logger)
		return sink, noop, err
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("storage.NewClient: %w", err)
		}
		sink, err := tabsink.NewGCSSink(tabsink.GCSSinkConfig{
			BucketName: cfg.Sink.GCS.Bucket,
			ObjectName: cfg.Sink.GCS.Object,
		}, tabsink.NewGCSClientAdapter(client), logger)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return sink, func() { _ = client.Close() }, nil
	case "bigquery":
		client, err := tabsink.NewBigQueryClient(ctx, tabsink.BigQueryConfig{
			ProjectID:       cfg.Sink.BigQuery.ProjectID,
			CredentialsFile: cfg.Sink.BigQuery.CredentialsFile,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		sink, err := tabsink.NewBigQuerySink(ctx, tabsink.BigQueryConfig{
			ProjectID: cfg.Sink.BigQuery.ProjectID,
			DatasetID: cfg.Sink.BigQuery.Dataset,
			TableID:   cfg.Sink.BigQuery.Table,
		}, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return sink, func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown sink backend %q", cfg.Sink.Backend)
	}
}

func buildNotifier(ctx context.Context, cfg *Config, logger zerolog.Logger) (ingest.CycleNotifier, func(), error) {
	noop := func() {}
	if cfg.Notifier.Pubsub.TopicID == "" {
		return nil, noop, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.Notifier.Pubsub.ProjectID)
	if err != nil {
		return nil, noop, fmt.Errorf("pubsub.NewClient: %w", err)
	}
	notifierCfg := ingest.NewPubsubNotifierDefaults()
	notifierCfg.TopicID = cfg.Notifier.Pubsub.TopicID
	notifier, err := ingest.NewPubsubNotifier(ctx, notifierCfg, client, logger)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return notifier, func() {
		notifier.Stop()
		_ = client.Close()
	}, nil
}
