package tabsink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// BigQueryConfig holds configuration for a BigQuery dataset and table.
type BigQueryConfig struct {
	ProjectID       string
	DatasetID       string
	TableID         string
	CredentialsFile string // Optional: Path to a service account JSON file.
}

// NewBigQueryClient creates a BigQuery client suitable for production
// environments. It will use Application Default Credentials unless a
// specific credentials file is provided.
func NewBigQueryClient(ctx context.Context, cfg BigQueryConfig, logger zerolog.Logger) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info().Str("credentials_file", cfg.CredentialsFile).Msg("Using specified credentials file for BigQuery client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for BigQuery client.")
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return client, nil
}

// messageRow mirrors the persisted column contract as a BigQuery row. Field
// names become the table schema, the tabular equivalent of the header row.
type messageRow struct {
	Date     string `bigquery:"Date"`
	Time     string `bigquery:"Time"`
	Sender   string `bigquery:"Sender"`
	Reporter string `bigquery:"Reporter"`
	Message  string `bigquery:"Message"`
	HasMedia bool   `bigquery:"Has_Media"`
	Links    string `bigquery:"Links"`
}

// BigQuerySink streams records into a BigQuery table. The schema plays the
// header's role and is created at most once: the constructor creates the
// table from the inferred row schema only when it does not exist, so
// repeated cycles can never duplicate the schema declaration. Both append
// and create mode insert rows; against a freshly created table they are the
// same operation, since streaming inserts cannot truncate.
type BigQuerySink struct {
	inserter    *bigquery.Inserter
	destination string
	logger      zerolog.Logger
}

// NewBigQuerySink creates a sink over an injected BigQuery client, creating
// the destination table from the inferred schema when missing.
func NewBigQuerySink(ctx context.Context, cfg BigQueryConfig, client *bigquery.Client, logger zerolog.Logger) (*BigQuerySink, error) {
	if client == nil {
		return nil, errors.New("bigquery client cannot be nil")
	}
	if cfg.DatasetID == "" || cfg.TableID == "" {
		return nil, errors.New("bigquery dataset and table id are required")
	}
	logger = logger.With().
		Str("component", "BigQuerySink").
		Str("dataset_id", cfg.DatasetID).
		Str("table_id", cfg.TableID).
		Logger()

	tableRef := client.Dataset(cfg.DatasetID).Table(cfg.TableID)
	if _, err := tableRef.Metadata(ctx); err != nil {
		if !strings.Contains(err.Error(), "notFound") {
			return nil, fmt.Errorf("failed to get BigQuery table metadata: %w", err)
		}
		logger.Warn().Msg("BigQuery table not found. Creating with inferred schema.")
		schema, inferErr := bigquery.InferSchema(messageRow{})
		if inferErr != nil {
			return nil, fmt.Errorf("failed to infer schema: %w", inferErr)
		}
		if createErr := tableRef.Create(ctx, &bigquery.TableMetadata{Schema: schema}); createErr != nil {
			return nil, fmt.Errorf("failed to create BigQuery table %s.%s: %w", cfg.DatasetID, cfg.TableID, createErr)
		}
		logger.Info().Msg("BigQuery table created successfully.")
	}

	return &BigQuerySink{
		inserter:    tableRef.Inserter(),
		destination: fmt.Sprintf("%s.%s.%s", client.Project(), cfg.DatasetID, cfg.TableID),
		logger:      logger,
	}, nil
}

// Write streams the batch into the table.
func (s *BigQuerySink) Write(ctx context.Context, records []chatrecord.Record, _ bool) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]*messageRow, len(records))
	for i, rec := range records {
		r := Row(rec)
		rows[i] = &messageRow{
			Date:     r[0],
			Time:     r[1],
			Sender:   r[2],
			Reporter: r[3],
			Message:  r[4],
			HasMedia: rec.HasMedia,
			Links:    r[6],
		}
	}

	if err := s.inserter.Put(ctx, rows); err != nil {
		s.logger.Error().Err(err).Int("batch_size", len(rows)).Msg("Failed to insert rows into BigQuery.")
		var multiErr bigquery.PutMultiError
		if errors.As(err, &multiErr) {
			for _, rowErr := range multiErr {
				s.logger.Error().Int("row_index", rowErr.RowIndex).Msgf("BigQuery insert error for row: %v", rowErr.Errors)
			}
		}
		return fmt.Errorf("bigquery Inserter.Put failed: %w", err)
	}

	s.logger.Debug().Int("batch_size", len(rows)).Msg("Successfully inserted batch into BigQuery.")
	return nil
}

// Destination returns the fully qualified table rows are written to.
func (s *BigQuerySink) Destination() string {
	return s.destination
}
