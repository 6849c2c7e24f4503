package tabsink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCSVSink(t *testing.T) (*CSVSink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export", "messages.csv")
	sink, err := NewCSVSink(path, zerolog.Nop())
	require.NoError(t, err)
	return sink, path
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func testRecord() chatrecord.Record {
	return chatrecord.Record{
		Reporter: "Reporter Name",
		Content:  "line one\nhttps://a.test/x line two",
		Date:     "10/02/2024",
		Time:     "12:00",
		Links:    []string{"https://a.test/x"},
		HasMedia: false,
		Sender:   "sender-1",
	}
}

func TestCSVSink_CreateWritesHeaderAndRows(t *testing.T) {
	sink, path := newTestCSVSink(t)

	require.NoError(t, sink.Write(context.Background(), []chatrecord.Record{testRecord()}, false))

	rows := readCSVFile(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"10/02/2024", "12:00", "sender-1", "Reporter Name", "line one\nhttps://a.test/x line two", "false", "https://a.test/x"}, rows[1])
}

func TestCSVSink_EmptyCreateIsHeaderOnly(t *testing.T) {
	sink, path := newTestCSVSink(t)

	require.NoError(t, sink.Write(context.Background(), nil, false))

	rows := readCSVFile(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, Header, rows[0])
}

func TestCSVSink_AppendNeverDuplicatesHeader(t *testing.T) {
	sink, path := newTestCSVSink(t)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, []chatrecord.Record{testRecord()}, false))
	require.NoError(t, sink.Write(ctx, []chatrecord.Record{testRecord()}, true))
	require.NoError(t, sink.Write(ctx, []chatrecord.Record{testRecord()}, true))

	rows := readCSVFile(t, path)
	require.Len(t, rows, 4)
	headerCount := 0
	for _, row := range rows {
		if len(row) > 0 && row[0] == "Date" {
			headerCount++
		}
	}
	assert.Equal(t, 1, headerCount)
}

func TestCSVSink_AppendOnMissingFileCreates(t *testing.T) {
	sink, path := newTestCSVSink(t)

	require.NoError(t, sink.Write(context.Background(), []chatrecord.Record{testRecord()}, true))

	rows := readCSVFile(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
}

func TestCSVSink_RoundTripPreservesReservedCharacters(t *testing.T) {
	sink, path := newTestCSVSink(t)

	rec := chatrecord.Record{
		Reporter: `Quote "Heavy" Reporter, Esq.`,
		Content:  "first, line\nsecond \"quoted\" line",
		Date:     "10/02/2024",
		Time:     "12:00",
		Links:    []string{"https://a.test/?q=1,2"},
		Sender:   "s",
	}
	require.NoError(t, sink.Write(context.Background(), []chatrecord.Record{rec}, false))

	rows := readCSVFile(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, rec.Reporter, rows[1][3])
	assert.Equal(t, rec.Content, rows[1][4])
	assert.Equal(t, "https://a.test/?q=1,2", rows[1][6])
}

func TestCSVSink_RoundTripPreservesRTLText(t *testing.T) {
	sink, path := newTestCSVSink(t)

	rec := chatrecord.Record{
		Reporter: "כתב ראשי",
		Content:  "שלום עולם",
		Date:     "10/02/2024",
		Time:     "12:00",
		Sender:   "שולח",
	}
	require.NoError(t, sink.Write(context.Background(), []chatrecord.Record{rec}, false))

	rows := readCSVFile(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "כתב ראשי", rows[1][3])
	assert.Equal(t, "שלום עולם", rows[1][4])
	assert.Equal(t, "שולח", rows[1][2])
}

func TestCSVSink_LinksJoinedWithoutBareComma(t *testing.T) {
	sink, path := newTestCSVSink(t)

	rec := testRecord()
	rec.Links = []string{"https://a.test/1", "https://b.test/2"}
	require.NoError(t, sink.Write(context.Background(), []chatrecord.Record{rec}, false))

	rows := readCSVFile(t, path)
	assert.Equal(t, "https://a.test/1 | https://b.test/2", rows[1][6])
}

func TestCSVSink_CreateModeTruncatesExistingFile(t *testing.T) {
	sink, path := newTestCSVSink(t)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, []chatrecord.Record{testRecord(), testRecord()}, false))
	require.NoError(t, sink.Write(ctx, []chatrecord.Record{testRecord()}, false))

	rows := readCSVFile(t, path)
	require.Len(t, rows, 2, "backfill rewrite must replace prior contents")
}

func TestCSVSink_UnwritableDestinationFails(t *testing.T) {
	base := t.TempDir()
	// A regular file where a directory is needed makes the path uncreatable.
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	sink, err := NewCSVSink(filepath.Join(blocker, "nested", "messages.csv"), zerolog.Nop())
	require.NoError(t, err)

	err = sink.Write(context.Background(), []chatrecord.Record{testRecord()}, false)
	assert.Error(t, err)
}
