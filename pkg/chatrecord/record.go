package chatrecord

// Record is the structured form of a single chat message. It is created by a
// Parser from exactly one raw message and is immutable after creation; the
// pipeline writes it to a sink and drops it, so nothing retains a Record
// beyond the cycle that produced it.
type Record struct {
	// Reporter is the first non-blank line of the message text, by convention
	// the name of the person the message is attributed to.
	Reporter string `json:"reporter"`

	// Content is the remaining message text after source-tag lines are
	// removed, joined with newlines.
	Content string `json:"content"`

	// Date is the message timestamp as a zero-padded DD/MM/YYYY, in UTC.
	Date string `json:"date"`

	// Time is the message timestamp as a zero-padded 24-hour HH:MM, in UTC.
	Time string `json:"time"`

	// Links holds every URL found in Content, in order of first appearance.
	// Duplicates are kept.
	Links []string `json:"links"`

	// HasMedia reports whether the source message carried an attachment.
	HasMedia bool `json:"hasMedia"`

	// Sender is the source-level sender identifier, distinct from Reporter.
	Sender string `json:"sender"`
}
