package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
	"github.com/illmade-knight/go-chatexport/pkg/tabsink"
	"github.com/illmade-knight/go-chatexport/pkg/watermark"
	"github.com/rs/zerolog"
)

// CoordinatorConfig holds configuration for one channel's ingestion.
type CoordinatorConfig struct {
	// ChannelID and ChannelName identify the source stream; they are
	// persisted into the watermark so operators can tell whose progress a
	// document tracks.
	ChannelID   string
	ChannelName string

	// PageSize is the page size for paged retrieval.
	PageSize int

	// DeltaFetchLimit bounds the single-window fetch used when delta paging
	// is disabled.
	DeltaFetchLimit int

	// DisableDeltaPaging restores the legacy delta behavior: one bounded
	// FetchRecent window instead of paging back to the watermark. The legacy
	// mode silently under-delivers when more than one window of new messages
	// exists, so it is off by default; it remains available for sources
	// where paged history retrieval is expensive.
	DisableDeltaPaging bool
}

// CycleResult summarizes one ingestion cycle for the caller and for the
// optional notifier.
type CycleResult struct {
	CycleID     string `json:"cycleId"`
	Success     bool   `json:"success"`
	Backfill    bool   `json:"backfill"`
	Fetched     int    `json:"fetched"`
	Processed   int    `json:"processed"`
	Skipped     int    `json:"skipped"`
	ParseErrors int    `json:"parseErrors"`
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`

	// Err carries the underlying failure for callers; Error above is its
	// rendered form for serialized summaries.
	Err error `json:"-"`
}

// CycleNotifier receives a summary after every completed cycle. Notification
// failures never fail the cycle.
type CycleNotifier interface {
	NotifyCycle(ctx context.Context, result CycleResult) error
}

// Coordinator drives one channel's incremental extraction: it chooses
// backfill or delta from the persisted watermark, pulls raw messages from
// the source, parses them into records, writes the batch to the sink, and
// only then advances the watermark.
//
// A Coordinator runs one cycle at a time; invoking cycles concurrently (for
// example from overlapping schedule triggers) is unsafe and must be
// prevented by the caller with a run lock.
type Coordinator struct {
	cfg      CoordinatorConfig
	source   MessageSource
	parser   *chatrecord.Parser
	sink     tabsink.RecordSink
	store    watermark.Store
	notifier CycleNotifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCoordinator creates a Coordinator. The notifier may be nil.
func NewCoordinator(
	cfg CoordinatorConfig,
	source MessageSource,
	parser *chatrecord.Parser,
	sink tabsink.RecordSink,
	store watermark.Store,
	notifier CycleNotifier,
	logger zerolog.Logger,
) (*Coordinator, error) {
	if source == nil {
		return nil, fmt.Errorf("message source cannot be nil")
	}
	if parser == nil {
		return nil, fmt.Errorf("parser cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("record sink cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("watermark store cannot be nil")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("channel id is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.DeltaFetchLimit <= 0 {
		cfg.DeltaFetchLimit = cfg.PageSize
	}
	return &Coordinator{
		cfg:      cfg,
		source:   source,
		parser:   parser,
		sink:     sink,
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "Coordinator").Str("channel_id", cfg.ChannelID).Logger(),
		now:      time.Now,
	}, nil
}

// RunCycle executes one ingestion cycle. Failures are reported inside the
// result rather than returned, so the caller decides exit behavior; only
// per-message parse problems are recovered silently (counted and logged).
func (c *Coordinator) RunCycle(ctx context.Context) CycleResult {
	result := CycleResult{
		CycleID:     uuid.New().String(),
		Destination: c.sink.Destination(),
	}
	logger := c.logger.With().Str("cycle_id", result.CycleID).Logger()

	current := c.store.Load(ctx)
	result.Backfill = current.FirstRun()
	logger.Info().
		Bool("backfill", result.Backfill).
		Int64("watermark", current.LastProcessedTimestamp).
		Msg("Starting ingestion cycle.")

	fetched, err := c.fetch(ctx, current.LastProcessedTimestamp, result.Backfill)
	if err != nil {
		logger.Error().Err(err).Msg("Message retrieval failed, aborting cycle.")
		return c.finish(ctx, fail(result, fmt.Errorf("retrieve messages: %w", err)))
	}
	result.Fetched = len(fetched)

	// The watermark advances over every fetched timestamp, not just the
	// parsed subset: a message skipped for a blank body or a parse failure
	// had no extractable content, so refetching it later would be wasted
	// work rather than recovered data.
	var maxTimestamp int64
	batch := make([]chatrecord.Record, 0, len(fetched))
	for _, msg := range fetched {
		if msg.Timestamp > maxTimestamp {
			maxTimestamp = msg.Timestamp
		}
		if !result.Backfill && msg.Timestamp <= current.LastProcessedTimestamp {
			continue
		}
		rec, ok := c.parseMessage(logger, msg)
		if !ok {
			result.ParseErrors++
			continue
		}
		if rec == nil {
			result.Skipped++
			continue
		}
		batch = append(batch, *rec)
	}

	if len(batch) == 0 {
		logger.Info().Int("fetched", result.Fetched).Msg("No new records this cycle.")
		result.Success = true
		return c.finish(ctx, result)
	}

	if err := c.sink.Write(ctx, batch, !result.Backfill); err != nil {
		logger.Error().Err(err).Msg("Sink write failed, aborting cycle before watermark update.")
		return c.finish(ctx, fail(result, fmt.Errorf("write batch: %w", err)))
	}

	processed := int64(len(batch))
	runAt := c.now().UTC().Format(time.RFC3339)
	total := current.TotalRecordsProcessed + processed
	update := watermark.Update{
		SourceID:               &c.cfg.ChannelID,
		SourceName:             &c.cfg.ChannelName,
		LastProcessedTimestamp: &maxTimestamp,
		LastRunAt:              &runAt,
		TotalRecordsProcessed:  &total,
	}
	if err := c.store.Update(ctx, update); err != nil {
		// The batch is already durable but progress is not recorded; this
		// must surface, because the next cycle will reprocess and the total
		// count is now suspect.
		logger.Error().Err(err).Msg("Watermark update failed after a durable sink write.")
		return c.finish(ctx, fail(result, fmt.Errorf("persist watermark: %w", err)))
	}

	result.Processed = len(batch)
	result.Success = true
	logger.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("parse_errors", result.ParseErrors).
		Int64("new_watermark", maxTimestamp).
		Msg("Ingestion cycle complete.")
	return c.finish(ctx, result)
}

// fetch retrieves this cycle's raw messages per the chosen mode.
func (c *Coordinator) fetch(ctx context.Context, watermarkTs int64, backfill bool) ([]RawMessage, error) {
	if !backfill && c.cfg.DisableDeltaPaging {
		return c.source.FetchRecent(ctx, c.cfg.ChannelID, c.cfg.DeltaFetchLimit)
	}

	var all []RawMessage
	cursor := ""
	for {
		page, next, err := c.source.FetchPage(ctx, c.cfg.ChannelID, cursor, c.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if len(page) < c.cfg.PageSize || next == "" {
			return all, nil
		}
		if !backfill && pageReachesWatermark(page, watermarkTs) {
			// Crossed the watermark: everything older is already processed.
			return all, nil
		}
		cursor = next
	}
}

// parseMessage parses one raw message, recovering from parser panics. It
// returns (nil, true) for a skip (blank body) and (nil, false) for a parse
// failure.
func (c *Coordinator) parseMessage(logger zerolog.Logger, msg RawMessage) (rec *chatrecord.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Int64("timestamp", msg.Timestamp).
				Msg("Parser panic recovered; message counted as a parse error.")
			rec, ok = nil, false
		}
	}()

	if strings.TrimSpace(msg.Body) == "" {
		return nil, true
	}
	parsed := c.parser.Parse(msg.Body, msg.Timestamp, msg.HasMedia)
	parsed.Sender = msg.SenderID
	return &parsed, true
}

// finish publishes the cycle summary when a notifier is configured.
func (c *Coordinator) finish(ctx context.Context, result CycleResult) CycleResult {
	if c.notifier != nil {
		if err := c.notifier.NotifyCycle(ctx, result); err != nil {
			c.logger.Warn().Err(err).Str("cycle_id", result.CycleID).Msg("Failed to publish cycle summary.")
		}
	}
	return result
}

func fail(result CycleResult, err error) CycleResult {
	result.Success = false
	result.Err = err
	result.Error = err.Error()
	return result
}

func pageReachesWatermark(page []RawMessage, watermarkTs int64) bool {
	for _, msg := range page {
		if msg.Timestamp <= watermarkTs {
			return true
		}
	}
	return false
}
