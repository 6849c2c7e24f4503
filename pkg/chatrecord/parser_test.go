package chatrecord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-02-10T12:00:00Z
const testTimestamp = int64(1707580800)

func TestParser_Parse_ReporterContentAndLinks(t *testing.T) {
	p := NewParser()

	rec := p.Parse("Reporter Name\nline one\nhttps://a.test/x line two", testTimestamp, false)

	assert.Equal(t, "Reporter Name", rec.Reporter)
	assert.Equal(t, "line one\nhttps://a.test/x line two", rec.Content)
	assert.Equal(t, "10/02/2024", rec.Date)
	assert.Equal(t, "12:00", rec.Time)
	assert.Equal(t, []string{"https://a.test/x"}, rec.Links)
	assert.False(t, rec.HasMedia)
}

func TestParser_Parse_EmptyAndWhitespaceInput(t *testing.T) {
	p := NewParser()

	for _, input := range []string{"", "   ", "\n\n\t\n"} {
		rec := p.Parse(input, testTimestamp, true)
		assert.Empty(t, rec.Reporter, "input %q", input)
		assert.Empty(t, rec.Content, "input %q", input)
		assert.Empty(t, rec.Links, "input %q", input)
		assert.Equal(t, "10/02/2024", rec.Date)
		assert.Equal(t, "12:00", rec.Time)
		assert.True(t, rec.HasMedia, "hasMedia must be carried through for empty input")
	}
}

func TestParser_Parse_ReporterOnlyMessage(t *testing.T) {
	p := NewParser()

	rec := p.Parse("Just A Reporter", testTimestamp, false)

	assert.Equal(t, "Just A Reporter", rec.Reporter)
	assert.Empty(t, rec.Content)
	assert.Empty(t, rec.Links)
}

func TestParser_Parse_BlankInteriorLinesDropped(t *testing.T) {
	p := NewParser()

	rec := p.Parse("Reporter\n\nfirst\n\n\nsecond\n", testTimestamp, false)

	assert.Equal(t, "Reporter", rec.Reporter)
	assert.Equal(t, "first\nsecond", rec.Content)
}

func TestParser_Parse_SourceTagLinesRemoved(t *testing.T) {
	p := NewParser("Newsdesk Channel")

	tests := []struct {
		name    string
		input   string
		content string
	}{
		{
			name:    "trailing channel name",
			input:   "Reporter\nthe story\nNewsdesk Channel",
			content: "the story",
		},
		{
			name:    "tag casing ignored",
			input:   "Reporter\nthe story\nNEWSDESK CHANNEL",
			content: "the story",
		},
		{
			name:    "interior tag removed too",
			input:   "Reporter\nGroup\nthe story",
			content: "the story",
		},
		{
			name:    "only tag lines leaves empty content",
			input:   "Reporter\nchat\nNewsdesk Channel",
			content: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := p.Parse(tc.input, testTimestamp, false)
			assert.Equal(t, "Reporter", rec.Reporter)
			assert.Equal(t, tc.content, rec.Content)
			if tc.content == "" {
				assert.Empty(t, rec.Links)
			}
		})
	}
}

func TestParser_Parse_TagWordInsideSentenceIsKept(t *testing.T) {
	p := NewParser()

	rec := p.Parse("Reporter\nmeet me in the group chat later", testTimestamp, false)

	assert.Equal(t, "meet me in the group chat later", rec.Content)
}

func TestParser_Parse_LinkOrderAndDuplicates(t *testing.T) {
	p := NewParser()

	rec := p.Parse(
		"Reporter\nsee https://b.test/1 then http://a.test/2\nagain https://b.test/1",
		testTimestamp, false,
	)

	require.Len(t, rec.Links, 3)
	assert.Equal(t, []string{"https://b.test/1", "http://a.test/2", "https://b.test/1"}, rec.Links)
}

func TestParser_Parse_NonASCIIPreserved(t *testing.T) {
	p := NewParser()

	rec := p.Parse("כתב ראשי\nשלום עולם https://a.test/ע", testTimestamp, false)

	assert.Equal(t, "כתב ראשי", rec.Reporter)
	assert.Equal(t, "שלום עולם https://a.test/ע", rec.Content)
	require.Len(t, rec.Links, 1)
}

func TestParser_Parse_MidnightAndPaddingUTC(t *testing.T) {
	p := NewParser()

	// 2023-01-05T04:09:00Z
	rec := p.Parse("R", 1672891740, false)

	assert.Equal(t, "05/01/2023", rec.Date)
	assert.Equal(t, "04:09", rec.Time)
}
