package watermark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore persists the watermark as a single JSON document on local disk.
// It is the default backend for single-host deployments; operational tooling
// may read the file for monitoring but must not write it while a cycle runs.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a store writing to the given path. The containing
// directory is created lazily on the first Save.
func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("watermark file path is required")
	}
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "WatermarkFileStore").Str("path", path).Logger(),
	}, nil
}

// Load reads the persisted snapshot. Absence is normal before the first run;
// unreadable or malformed contents are logged and degrade to the default.
func (s *FileStore) Load(_ context.Context) Watermark {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("Watermark file unreadable, using default watermark.")
		}
		return Watermark{}
	}

	var w Watermark
	if err := json.Unmarshal(data, &w); err != nil {
		s.logger.Warn().Err(err).Msg("Watermark file corrupt, using default watermark.")
		return Watermark{}
	}
	return w
}

// Save writes the snapshot atomically: the document is written to a temp
// file in the same directory and renamed over the target, so a reader sees
// either the old or the new snapshot, never a partial write.
func (s *FileStore) Save(_ context.Context, w Watermark) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watermark directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal watermark: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create watermark temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write watermark temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close watermark temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace watermark file: %w", err)
	}

	s.logger.Debug().
		Int64("last_processed_timestamp", w.LastProcessedTimestamp).
		Int64("total_records_processed", w.TotalRecordsProcessed).
		Msg("Watermark saved.")
	return nil
}

// Update performs the read-merge-write cycle over the current snapshot.
func (s *FileStore) Update(ctx context.Context, u Update) error {
	return s.Save(ctx, u.Apply(s.Load(ctx)))
}
