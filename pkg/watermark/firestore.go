package watermark

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore-backed store.
type FirestoreConfig struct {
	ProjectID      string
	CollectionName string
	// DocumentID identifies this source's watermark document, typically the
	// source channel id.
	DocumentID string
}

// FirestoreStore persists the watermark as one Firestore document per
// source. Useful when the exporter runs somewhere without durable local disk.
// The client's lifecycle is managed externally.
type FirestoreStore struct {
	client *firestore.Client
	cfg    FirestoreConfig
	logger zerolog.Logger
}

// NewFirestoreStore creates a store over an injected Firestore client.
func NewFirestoreStore(cfg FirestoreConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if cfg.CollectionName == "" || cfg.DocumentID == "" {
		return nil, fmt.Errorf("firestore collection and document id are required")
	}
	return &FirestoreStore{
		client: client,
		cfg:    cfg,
		logger: logger.With().
			Str("component", "WatermarkFirestoreStore").
			Str("collection", cfg.CollectionName).
			Str("document", cfg.DocumentID).
			Logger(),
	}, nil
}

// Load fetches the watermark document. NotFound is the normal first-run
// case; any other failure is logged and degrades to the default watermark,
// since a redundant backfill is the acceptable worst case.
func (s *FirestoreStore) Load(ctx context.Context) Watermark {
	snap, err := s.client.Collection(s.cfg.CollectionName).Doc(s.cfg.DocumentID).Get(ctx)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			s.logger.Warn().Err(err).Msg("Failed to get watermark document, using default watermark.")
		}
		return Watermark{}
	}

	var w Watermark
	if err := snap.DataTo(&w); err != nil {
		s.logger.Warn().Err(err).Msg("Watermark document malformed, using default watermark.")
		return Watermark{}
	}
	return w
}

// Save overwrites the watermark document with the full snapshot. A document
// Set is atomic on the server side, satisfying the snapshot guarantee.
func (s *FirestoreStore) Save(ctx context.Context, w Watermark) error {
	_, err := s.client.Collection(s.cfg.CollectionName).Doc(s.cfg.DocumentID).Set(ctx, w)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to write watermark document.")
		return fmt.Errorf("firestore set watermark %s/%s: %w", s.cfg.CollectionName, s.cfg.DocumentID, err)
	}
	s.logger.Debug().Int64("last_processed_timestamp", w.LastProcessedTimestamp).Msg("Watermark saved.")
	return nil
}

// Update performs the read-merge-write cycle over the current snapshot.
func (s *FirestoreStore) Update(ctx context.Context, u Update) error {
	return s.Save(ctx, u.Apply(s.Load(ctx)))
}
