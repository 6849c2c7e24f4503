package tabsink

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- In-memory GCS fake implementing the client abstraction ---

type fakeGCS struct {
	sync.Mutex
	objects  map[string][]byte
	writeErr error
}

func newFakeGCS() *fakeGCS {
	return &fakeGCS{objects: make(map[string][]byte)}
}

func (f *fakeGCS) Bucket(name string) GCSBucketHandle { return &fakeBucket{gcs: f, bucket: name} }

type fakeBucket struct {
	gcs    *fakeGCS
	bucket string
}

func (b *fakeBucket) Object(name string) GCSObjectHandle {
	return &fakeObject{gcs: b.gcs, key: b.bucket + "/" + name}
}

type fakeObject struct {
	gcs *fakeGCS
	key string
}

func (o *fakeObject) NewWriter(_ context.Context) io.WriteCloser {
	return &fakeObjectWriter{gcs: o.gcs, key: o.key}
}

func (o *fakeObject) NewReader(_ context.Context) (io.ReadCloser, error) {
	o.gcs.Lock()
	defer o.gcs.Unlock()
	data, ok := o.gcs.objects[o.key]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeObjectWriter struct {
	gcs *fakeGCS
	key string
	buf bytes.Buffer
}

func (w *fakeObjectWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fakeObjectWriter) Close() error {
	w.gcs.Lock()
	defer w.gcs.Unlock()
	if w.gcs.writeErr != nil {
		return w.gcs.writeErr
	}
	w.gcs.objects[w.key] = w.buf.Bytes()
	return nil
}

func newTestGCSSink(t *testing.T) (*GCSSink, *fakeGCS) {
	t.Helper()
	gcs := newFakeGCS()
	sink, err := NewGCSSink(GCSSinkConfig{BucketName: "exports", ObjectName: "messages.csv"}, gcs, zerolog.Nop())
	require.NoError(t, err)
	return sink, gcs
}

func readObjectCSV(t *testing.T, gcs *fakeGCS) [][]string {
	t.Helper()
	gcs.Lock()
	data := gcs.objects["exports/messages.csv"]
	gcs.Unlock()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestGCSSink_CreateWritesHeaderAndRows(t *testing.T) {
	sink, gcs := newTestGCSSink(t)

	require.NoError(t, sink.Write(context.Background(), []chatrecord.Record{testRecord()}, false))

	rows := readObjectCSV(t, gcs)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
}

func TestGCSSink_AppendCarriesExistingRows(t *testing.T) {
	sink, gcs := newTestGCSSink(t)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, []chatrecord.Record{testRecord()}, false))
	require.NoError(t, sink.Write(ctx, []chatrecord.Record{testRecord(), testRecord()}, true))

	rows := readObjectCSV(t, gcs)
	require.Len(t, rows, 4)
	headerCount := 0
	for _, row := range rows {
		if row[0] == "Date" {
			headerCount++
		}
	}
	assert.Equal(t, 1, headerCount)
}

func TestGCSSink_AppendOnMissingObjectCreates(t *testing.T) {
	sink, gcs := newTestGCSSink(t)

	require.NoError(t, sink.Write(context.Background(), []chatrecord.Record{testRecord()}, true))

	rows := readObjectCSV(t, gcs)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
}

func TestGCSSink_WriteFailurePropagates(t *testing.T) {
	sink, gcs := newTestGCSSink(t)
	gcs.writeErr = assert.AnError

	err := sink.Write(context.Background(), []chatrecord.Record{testRecord()}, false)
	assert.ErrorIs(t, err, assert.AnError)
}
