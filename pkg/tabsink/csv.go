package tabsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
	"github.com/rs/zerolog"
)

// CSVSink writes records to a local comma-delimited file. Quoting and
// escaping follow RFC 4180 via encoding/csv, so embedded commas, quotes, and
// newlines round-trip through any conforming reader, and non-ASCII text is
// written byte-faithfully as UTF-8.
type CSVSink struct {
	path   string
	logger zerolog.Logger
}

// NewCSVSink creates a sink writing to the given file path.
func NewCSVSink(path string, logger zerolog.Logger) (*CSVSink, error) {
	if path == "" {
		return nil, errors.New("csv destination path is required")
	}
	return &CSVSink{
		path:   path,
		logger: logger.With().Str("component", "CSVSink").Str("path", path).Logger(),
	}, nil
}

// Write appends or creates per the RecordSink contract. Append against a
// missing file falls back to create, so the first delta cycle after a lost
// file still produces a well-formed document.
func (s *CSVSink) Write(_ context.Context, records []chatrecord.Record, appendMode bool) error {
	exists := true
	if _, err := os.Stat(s.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat csv destination %s: %w", s.path, err)
		}
		exists = false
	}
	creating := !appendMode || !exists

	if creating {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("create csv destination directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE
	if creating {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open csv destination %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if creating {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, rec := range records {
		if err := w.Write(Row(rec)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv destination %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv destination %s: %w", s.path, err)
	}

	s.logger.Debug().Int("rows", len(records)).Bool("created", creating).Msg("Wrote records to CSV file.")
	return nil
}

// Destination returns the file path rows are written to.
func (s *CSVSink) Destination() string {
	return s.path
}
