package watermark

import "context"

// ====================================================================================
// The watermark is the persisted high-water mark for one message source: every
// source message at or below LastProcessedTimestamp is considered already
// processed. The ingestion coordinator reads it once at cycle start and writes
// it at most once at cycle end, after the batch is durably in the sink.
// ====================================================================================

// Watermark is one source's persisted progress snapshot. The zero value is
// the "never run" default: a zero LastProcessedTimestamp tells the
// coordinator to perform a full backfill.
type Watermark struct {
	SourceID               string `json:"sourceId,omitempty" firestore:"sourceId"`
	SourceName             string `json:"sourceName,omitempty" firestore:"sourceName"`
	LastProcessedTimestamp int64  `json:"lastProcessedTimestamp,omitempty" firestore:"lastProcessedTimestamp"`
	// LastRunAt is the wall-clock time of the last successful cycle, ISO-8601.
	LastRunAt             string `json:"lastRunAt,omitempty" firestore:"lastRunAt"`
	TotalRecordsProcessed int64  `json:"totalRecordsProcessed" firestore:"totalRecordsProcessed"`
}

// FirstRun reports whether this watermark still carries the never-run
// sentinel.
func (w Watermark) FirstRun() bool {
	return w.LastProcessedTimestamp == 0
}

// Update is a partial watermark: nil fields are left unchanged by Apply.
type Update struct {
	SourceID               *string
	SourceName             *string
	LastProcessedTimestamp *int64
	LastRunAt              *string
	TotalRecordsProcessed  *int64
}

// Apply merges the update over an existing snapshot and returns the result.
func (u Update) Apply(w Watermark) Watermark {
	if u.SourceID != nil {
		w.SourceID = *u.SourceID
	}
	if u.SourceName != nil {
		w.SourceName = *u.SourceName
	}
	if u.LastProcessedTimestamp != nil {
		w.LastProcessedTimestamp = *u.LastProcessedTimestamp
	}
	if u.LastRunAt != nil {
		w.LastRunAt = *u.LastRunAt
	}
	if u.TotalRecordsProcessed != nil {
		w.TotalRecordsProcessed = *u.TotalRecordsProcessed
	}
	return w
}

// Store persists watermarks. Implementations must make Save atomic from a
// reader's point of view: a concurrent Load sees either the old or the new
// snapshot, never a mix.
type Store interface {
	// Load returns the persisted watermark. A missing, corrupt, or
	// unreachable store degrades to the zero-value default rather than
	// failing: losing the watermark must never stop ingestion, because the
	// worst outcome is a redundant backfill.
	Load(ctx context.Context) Watermark

	// Save durably persists the full snapshot, creating any missing
	// containing storage. A save failure must propagate; swallowing it would
	// silently break the monotonic-progress guarantee.
	Save(ctx context.Context, w Watermark) error

	// Update merges the partial over the current (or default) snapshot and
	// saves the result. Callers invoke it at most once per ingestion cycle;
	// there is no in-store locking against concurrent writers.
	Update(ctx context.Context, u Update) error
}
