package tabsink

import (
	"context"
	"strconv"
	"strings"

	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
)

// ====================================================================================
// This file defines the contract every tabular destination implements, plus
// the single source of truth for the persisted column layout. The header
// order is a contract other tooling reads; changing it is a breaking change.
// ====================================================================================

// LinksSeparator joins a record's links into one cell. It must never be a
// character the delimited formats reserve for field separation.
const LinksSeparator = " | "

// Header is the persisted schema row, in the exact order downstream tools
// depend on.
var Header = []string{"Date", "Time", "Sender", "Reporter", "Message", "Has_Media", "Links"}

// Row renders one record as a row in Header order.
func Row(r chatrecord.Record) []string {
	return []string{
		r.Date,
		r.Time,
		r.Sender,
		r.Reporter,
		r.Content,
		strconv.FormatBool(r.HasMedia),
		strings.Join(r.Links, LinksSeparator),
	}
}

// RecordSink appends structured records to a durable tabular destination.
//
// With appendMode false, or when the destination does not exist yet, Write
// creates the destination and emits the schema header before any rows; a
// header-only destination from an empty batch is valid output. With
// appendMode true on an existing destination, Write emits rows only and
// never duplicates the header. Field values containing the format's
// separator, quote, or newline characters must be escaped so that reading
// the destination back recovers them exactly.
//
// Implementations do not roll back partial writes on failure; the caller
// treats any sink error as a failed cycle.
type RecordSink interface {
	Write(ctx context.Context, records []chatrecord.Record, appendMode bool) error
	// Destination describes where rows were written, for logs and results.
	Destination() string
}
