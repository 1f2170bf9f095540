// Package bqstore writes Records into Google BigQuery.
package bqstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/illmade-knight/go-sensormapper/pkg/sink"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// BigQueryDatasetConfig holds configuration for a BigQuery dataset and table.
type BigQueryDatasetConfig struct {
	DatasetID       string `yaml:"dataset_id"`
	TableID         string `yaml:"table_id"`
	CredentialsFile string `yaml:"credentials_file"` // Optional: Path to a service account JSON file.
}

// NewProductionBigQueryClient creates a BigQuery client suitable for production environments.
func NewProductionBigQueryClient(ctx context.Context, projectID string, credentialsFile string, logger zerolog.Logger) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		logger.Info().Str("credentials_file", credentialsFile).Msg("Using specified credentials file for BigQuery client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for BigQuery client.")
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return client, nil
}

// rowInserter is satisfied by *bigquery.Inserter.
type rowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// Writer streams batches of Records into one BigQuery table. It implements
// sink.BatchWriter.
type Writer struct {
	inserter rowInserter
	logger   zerolog.Logger
}

// NewWriter creates a writer for the configured table, creating the table
// with a schema inferred from sink.Record if it does not exist.
func NewWriter(ctx context.Context, client *bigquery.Client, cfg *BigQueryDatasetConfig, logger zerolog.Logger) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client cannot be nil")
	}
	if cfg == nil || cfg.DatasetID == "" || cfg.TableID == "" {
		return nil, errors.New("bigquery dataset and table ids are required")
	}

	logger = logger.With().
		Str("component", "BigQueryWriter").
		Str("dataset_id", cfg.DatasetID).
		Str("table_id", cfg.TableID).
		Logger()

	tableRef := client.Dataset(cfg.DatasetID).Table(cfg.TableID)
	if _, err := tableRef.Metadata(ctx); err != nil {
		if !strings.Contains(err.Error(), "notFound") {
			return nil, fmt.Errorf("failed to get BigQuery table metadata: %w", err)
		}
		logger.Warn().Msg("BigQuery table not found. Attempting to create with inferred schema.")
		schema, err := RecordSchema()
		if err != nil {
			return nil, err
		}
		if err := tableRef.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
			return nil, fmt.Errorf("failed to create BigQuery table %s.%s: %w", cfg.DatasetID, cfg.TableID, err)
		}
		logger.Info().Msg("BigQuery table created.")
	}

	return newWriter(tableRef.Inserter(), logger), nil
}

func newWriter(inserter rowInserter, logger zerolog.Logger) *Writer {
	return &Writer{inserter: inserter, logger: logger}
}

// RecordSchema is the table schema for sink.Record rows.
func RecordSchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(sink.Record{})
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema for sink.Record: %w", err)
	}
	return schema, nil
}

// WriteBatch streams records to the table. Row level failures are logged
// individually and returned wrapped.
func (w *Writer) WriteBatch(ctx context.Context, records []sink.Record) error {
	if len(records) == 0 {
		return nil
	}

	err := w.inserter.Put(ctx, records)
	if err != nil {
		var multiErr bigquery.PutMultiError
		if errors.As(err, &multiErr) {
			for _, rowErr := range multiErr {
				w.logger.Error().
					Int("row_index", rowErr.RowIndex).
					Msgf("BigQuery insert error for row: %v", rowErr.Errors)
			}
		}
		return fmt.Errorf("bigquery Inserter.Put failed: %w", err)
	}

	w.logger.Debug().Int("batch_size", len(records)).Msg("Inserted batch into BigQuery.")
	return nil
}

// Close is a no-op; the BigQuery client's lifecycle is managed by its creator.
func (w *Writer) Close() error {
	return nil
}
