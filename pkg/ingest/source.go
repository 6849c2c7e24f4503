package ingest

import "context"

// ====================================================================================
// Boundary types for the external message source. The source (a chat session
// held by a separate bridge process) is modelled as a plain synchronous
// interface: retrieval calls may fail, at which point the cycle fails. Any
// retry or timeout policy belongs to the source implementation, not here.
// ====================================================================================

// RawMessage is one message as delivered by the source, already validated
// and defaulted at the decode boundary: a null body arrives here as "".
// It is consumed read-only within a single ingestion cycle.
type RawMessage struct {
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	HasMedia  bool   `json:"hasMedia"`
	SenderID  string `json:"senderId"`
}

// Channel identifies one retrievable message stream at the source.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageSource is the retrieval contract the coordinator consumes. Message
// order within a page is not guaranteed; the coordinator takes the maximum
// timestamp regardless.
type MessageSource interface {
	// ListChannels enumerates the streams the source can retrieve from.
	ListChannels(ctx context.Context) ([]Channel, error)

	// FetchRecent retrieves a bounded window of the most recent messages.
	FetchRecent(ctx context.Context, channelID string, limit int) ([]RawMessage, error)

	// FetchPage retrieves one page of history starting at cursor (empty
	// cursor means the newest page). A short page or an empty next cursor
	// signals exhaustion.
	FetchPage(ctx context.Context, channelID string, cursor string, pageSize int) (messages []RawMessage, nextCursor string, err error)
}
