// Package icestore archives Records to Google Cloud Storage as gzip
// compressed CSV objects, one object per UTC day per flushed batch.
package icestore

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-sensormapper/pkg/sink"
	"github.com/rs/zerolog"
)

// CSVHeader is the first row of every archive object.
var CSVHeader = []string{"uri", "value", "timestamp_ms"}

// WriterConfig holds configuration specific to the GCS writer.
type WriterConfig struct {
	BucketName   string `yaml:"bucket"`
	ObjectPrefix string `yaml:"prefix"`
}

// Writer implements sink.BatchWriter for Google Cloud Storage.
type Writer struct {
	client GCSClient
	config WriterConfig
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewWriter creates a new archive writer.
func NewWriter(client GCSClient, config WriterConfig, logger zerolog.Logger) (*Writer, error) {
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if config.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	return &Writer{
		client: client,
		config: config,
		logger: logger.With().Str("component", "GCSWriter").Str("bucket", config.BucketName).Logger(),
	}, nil
}

// BatchKey is the object path segment for a record: its UTC day.
func BatchKey(rec sink.Record) string {
	ts := rec.Timestamp.UTC()
	return fmt.Sprintf("%d/%02d/%02d", ts.Year(), ts.Month(), ts.Day())
}

// WriteBatch groups records by BatchKey and uploads each group to its own
// object in parallel.
func (w *Writer) WriteBatch(ctx context.Context, records []sink.Record) error {
	if len(records) == 0 {
		return nil
	}

	grouped := make(map[string][]sink.Record)
	for _, rec := range records {
		key := BatchKey(rec)
		grouped[key] = append(grouped[key], rec)
	}

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var uploadWg sync.WaitGroup
	errs := make([]error, len(keys))
	for i, key := range keys {
		uploadWg.Add(1)
		w.wg.Add(1)
		go func(i int, key string) {
			defer uploadWg.Done()
			defer w.wg.Done()
			errs[i] = w.uploadGroup(ctx, key, grouped[key])
		}(i, key)
	}
	uploadWg.Wait()
	return errors.Join(errs...)
}

func (w *Writer) uploadGroup(ctx context.Context, batchKey string, records []sink.Record) error {
	objectName := path.Join(w.config.ObjectPrefix, batchKey, uuid.New().String()+".csv.gz")

	gcsWriter := w.client.Bucket(w.config.BucketName).Object(objectName).NewWriter(ctx)
	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(encodeCSV(pw, records))
	}()

	bytesWritten, copyErr := io.Copy(gcsWriter, pr)
	_ = pr.Close()
	closeErr := gcsWriter.Close()
	if copyErr != nil {
		return fmt.Errorf("failed to stream data for GCS object %s: %w", objectName, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close GCS object writer for %s: %w", objectName, closeErr)
	}

	w.logger.Info().
		Str("object_name", objectName).
		Int("record_count", len(records)).
		Int64("bytes_written", bytesWritten).
		Msg("Uploaded archive object.")
	return nil
}

func encodeCSV(dst io.Writer, records []sink.Record) error {
	gz := gzip.NewWriter(dst)
	cw := csv.NewWriter(gz)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.URI,
			strconv.FormatFloat(rec.Value, 'f', 6, 64),
			strconv.FormatInt(rec.Timestamp.UnixMilli(), 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv encoding failed: %w", err)
	}
	return gz.Close()
}

// Close waits for in-flight uploads to complete.
func (w *Writer) Close() error {
	w.wg.Wait()
	return nil
}
