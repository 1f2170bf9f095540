package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/rs/zerolog"
)

// ErrSinkStopped is returned by Emit once a sink has been stopped.
var ErrSinkStopped = errors.New("sink stopped")

// BatchWriter persists a batch of Records. It abstracts the destination
// store (BigQuery, GCS, ...).
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []Record) error
	Close() error
}

// BatcherConfig holds configuration for the Batcher.
type BatcherConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"` // How often to flush a partial batch.
	WriteTimeout  time.Duration `yaml:"write_timeout"`  // The timeout for a single flush operation.
}

// DefaultBatcherConfig returns a config suited to low volume telemetry.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		BatchSize:     500,
		FlushInterval: 10 * time.Second,
		WriteTimeout:  30 * time.Second,
	}
}

// Batcher is a ReadingSink that groups Records and hands them to a
// BatchWriter when the batch is full or the flush interval elapses.
type Batcher struct {
	config BatcherConfig
	writer BatchWriter
	logger zerolog.Logger

	input chan Record
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewBatcher creates a Batcher writing to writer.
func NewBatcher(config BatcherConfig, writer BatchWriter, logger zerolog.Logger) (*Batcher, error) {
	if writer == nil {
		return nil, errors.New("batch writer cannot be nil")
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %s", config.FlushInterval)
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultBatcherConfig().WriteTimeout
	}
	return &Batcher{
		config: config,
		writer: writer,
		logger: logger.With().Str("component", "Batcher").Logger(),
		input:  make(chan Record, config.BatchSize*2),
		done:   make(chan struct{}),
	}, nil
}

// Start begins the batching worker. The worker lives until Stop is called or
// ctx is cancelled.
func (b *Batcher) Start(ctx context.Context) error {
	b.logger.Info().
		Int("batch_size", b.config.BatchSize).
		Dur("flush_interval", b.config.FlushInterval).
		Msg("Starting Batcher worker...")
	b.wg.Add(1)
	go b.worker(ctx)
	return nil
}

// Emit queues the Reading for the next batch. It blocks while the queue is
// full.
func (b *Batcher) Emit(ctx context.Context, reading decoder.Reading, ts time.Time) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrSinkStopped
	}
	select {
	case b.input <- NewRecord(reading, ts):
		return nil
	case <-b.done:
		return ErrSinkStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop flushes the pending batch and closes the writer. The wait for the
// final flush is bounded by ctx.
func (b *Batcher) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	close(b.input)
	b.mu.Unlock()

	b.logger.Info().Msg("Stopping Batcher...")
	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		b.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for Batcher worker to stop.")
		return ctx.Err()
	}

	if err := b.writer.Close(); err != nil {
		return fmt.Errorf("failed to close batch writer: %w", err)
	}
	b.logger.Info().Msg("Batcher stopped.")
	return nil
}

func (b *Batcher) worker(ctx context.Context) {
	defer b.wg.Done()
	defer close(b.done)

	batch := make([]Record, 0, b.config.BatchSize)
	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flush(context.Background(), batch)
			return

		case rec, ok := <-b.input:
			if !ok {
				b.flush(context.Background(), batch)
				return
			}
			batch = append(batch, rec)
			if len(batch) >= b.config.BatchSize {
				b.flush(ctx, batch)
				batch = make([]Record, 0, b.config.BatchSize)
				ticker.Reset(b.config.FlushInterval)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(ctx, batch)
				batch = make([]Record, 0, b.config.BatchSize)
			}
		}
	}
}

// flush writes the batch. Failed batches are logged and dropped.
func (b *Batcher) flush(ctx context.Context, batch []Record) {
	if len(batch) == 0 {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, b.config.WriteTimeout)
	defer cancel()

	if err := b.writer.WriteBatch(writeCtx, batch); err != nil {
		b.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to write batch.")
		return
	}
	b.logger.Debug().Int("batch_size", len(batch)).Msg("Flushed batch.")
}
