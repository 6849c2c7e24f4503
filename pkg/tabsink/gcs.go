package tabsink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
	"github.com/rs/zerolog"
)

// ====================================================================================
// Cloud Storage destination: one CSV object per channel. GCS objects are
// immutable, so "append" is read-existing-then-rewrite; with the pipeline's
// single-writer assumption the rewrite is safe, and the object swap is atomic
// from a reader's point of view. The client is abstracted behind interfaces
// so the sink can be tested without a real bucket.
// ====================================================================================

// GCSClient abstracts the top-level *storage.Client.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

// GCSBucketHandle abstracts a *storage.BucketHandle.
type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
}

// GCSObjectHandle abstracts a *storage.ObjectHandle.
type GCSObjectHandle interface {
	NewWriter(ctx context.Context) io.WriteCloser
	NewReader(ctx context.Context) (io.ReadCloser, error)
}

// gcsClientAdapter wraps a *storage.Client to satisfy the GCSClient interface.
type gcsClientAdapter struct {
	client *storage.Client
}

// NewGCSClientAdapter makes the concrete *storage.Client conform to GCSClient.
func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
}

func (a *gcsBucketHandleAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

func (a *gcsObjectHandleAdapter) NewWriter(ctx context.Context) io.WriteCloser {
	return a.handle.NewWriter(ctx)
}

func (a *gcsObjectHandleAdapter) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return a.handle.NewReader(ctx)
}

// GCSSinkConfig holds configuration for the Cloud Storage destination.
type GCSSinkConfig struct {
	BucketName string
	ObjectName string
}

// GCSSink writes records to a CSV object in a Cloud Storage bucket.
type GCSSink struct {
	client GCSClient
	cfg    GCSSinkConfig
	logger zerolog.Logger
}

// NewGCSSink creates a sink over an injected GCS client.
func NewGCSSink(cfg GCSSinkConfig, client GCSClient, logger zerolog.Logger) (*GCSSink, error) {
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if cfg.BucketName == "" || cfg.ObjectName == "" {
		return nil, errors.New("GCS bucket and object name are required")
	}
	return &GCSSink{
		client: client,
		cfg:    cfg,
		logger: logger.With().
			Str("component", "GCSSink").
			Str("bucket", cfg.BucketName).
			Str("object", cfg.ObjectName).
			Logger(),
	}, nil
}

// Write implements the RecordSink contract against the object. In append
// mode the existing object body is carried over verbatim ahead of the new
// rows; a missing object falls back to create.
func (s *GCSSink) Write(ctx context.Context, records []chatrecord.Record, appendMode bool) error {
	obj := s.client.Bucket(s.cfg.BucketName).Object(s.cfg.ObjectName)

	var existing []byte
	creating := !appendMode
	if appendMode {
		rc, err := obj.NewReader(ctx)
		if err != nil {
			if !errors.Is(err, storage.ErrObjectNotExist) {
				return fmt.Errorf("read existing object %s: %w", s.cfg.ObjectName, err)
			}
			creating = true
		} else {
			existing, err = io.ReadAll(rc)
			closeErr := rc.Close()
			if err != nil {
				return fmt.Errorf("read existing object %s: %w", s.cfg.ObjectName, err)
			}
			if closeErr != nil {
				return fmt.Errorf("close reader for object %s: %w", s.cfg.ObjectName, closeErr)
			}
		}
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}
	w := csv.NewWriter(&buf)
	if creating {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("encode csv header: %w", err)
		}
	}
	for _, rec := range records {
		if err := w.Write(Row(rec)); err != nil {
			return fmt.Errorf("encode csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode csv object body: %w", err)
	}

	wc := obj.NewWriter(ctx)
	if _, err := wc.Write(buf.Bytes()); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write object %s: %w", s.cfg.ObjectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", s.cfg.ObjectName, err)
	}

	s.logger.Debug().Int("rows", len(records)).Bool("created", creating).Msg("Wrote records to GCS object.")
	return nil
}

// Destination returns the bucket and object rows are written to.
func (s *GCSSink) Destination() string {
	return "gs://" + s.cfg.BucketName + "/" + s.cfg.ObjectName
}
