package chatrecord

import (
	"regexp"
	"strings"
	"time"
)

// urlPattern matches a URL scheme followed by an unbroken run of
// non-whitespace. It deliberately stops at whitespace rather than trying to
// validate the URL; the extracted links are reported as seen.
var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)

// GenericSourceTags are the tag words matched regardless of channel. A
// Parser always carries these in addition to any channel-specific tags.
var GenericSourceTags = []string{"chat", "group"}

// Parser turns raw message text into Records. It is pure and total: no
// input, however malformed, produces an error — degenerate input degrades to
// empty fields.
//
// Chat messages commonly end with a trailer line restating the channel they
// came from (the channel's own name, or a bare "chat"/"group" marker). Those
// lines are channel identity, not content, so the Parser is configured with
// the set of tags to strip. Matching is case-insensitive against the whole
// trimmed line, at any position in the message body.
type Parser struct {
	tags map[string]struct{}
}

// NewParser returns a Parser that strips the generic source tags plus any
// additional channel-specific tags (typically the channel's display name).
func NewParser(channelTags ...string) *Parser {
	tags := make(map[string]struct{}, len(GenericSourceTags)+len(channelTags))
	for _, t := range GenericSourceTags {
		tags[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	for _, t := range channelTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags[t] = struct{}{}
		}
	}
	return &Parser{tags: tags}
}

// Parse extracts a Record from one message.
//
// The first non-blank line becomes the reporter. Remaining non-blank lines,
// minus source-tag lines, joined with newlines, become the content. Blank
// lines are dropped entirely, interior ones included. The timestamp is
// interpreted in UTC for the Date and Time fields regardless of input text.
func (p *Parser) Parse(rawText string, timestampSeconds int64, hasMedia bool) Record {
	rec := Record{
		Links:    []string{},
		HasMedia: hasMedia,
	}
	rec.Date, rec.Time = formatTimestamp(timestampSeconds)

	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return rec
	}

	var lines []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return rec
	}

	rec.Reporter = lines[0]

	var kept []string
	for _, line := range lines[1:] {
		if p.isSourceTag(line) {
			continue
		}
		kept = append(kept, line)
	}
	rec.Content = strings.TrimSpace(strings.Join(kept, "\n"))
	rec.Links = append(rec.Links, urlPattern.FindAllString(rec.Content, -1)...)
	return rec
}

// isSourceTag reports whether a trimmed line restates the source channel.
func (p *Parser) isSourceTag(line string) bool {
	_, ok := p.tags[strings.ToLower(line)]
	return ok
}

// formatTimestamp renders a unix-seconds timestamp as the pipeline's
// DD/MM/YYYY and HH:MM column values, in UTC.
func formatTimestamp(timestampSeconds int64) (date, clock string) {
	t := time.Unix(timestampSeconds, 0).UTC()
	return t.Format("02/01/2006"), t.Format("15:04")
}
