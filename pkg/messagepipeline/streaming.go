package messagepipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// StreamingService runs a pool of workers that receive messages from a
// consumer, transform each one and hand the result to a processor. Each
// message is handled start to finish by a single worker.
type StreamingService[T any] struct {
	numWorkers  int
	consumer    MessageConsumer
	transformer MessageTransformer[T]
	processor   StreamProcessor[T]
	logger      zerolog.Logger
	wg          sync.WaitGroup
}

// StreamingServiceConfig holds configuration for a StreamingService.
type StreamingServiceConfig struct {
	NumWorkers int `yaml:"num_workers"`
}

// NewStreamingService creates a new StreamingService.
func NewStreamingService[T any](
	cfg StreamingServiceConfig,
	consumer MessageConsumer,
	transformer MessageTransformer[T],
	processor StreamProcessor[T],
	logger zerolog.Logger,
) (*StreamingService[T], error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 5
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer cannot be nil")
	}
	if transformer == nil {
		return nil, fmt.Errorf("transformer cannot be nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}

	return &StreamingService[T]{
		numWorkers:  cfg.NumWorkers,
		consumer:    consumer,
		transformer: transformer,
		processor:   processor,
		logger:      logger.With().Str("service", "StreamingService").Logger(),
	}, nil
}

// Start starts the consumer and then the worker pool.
func (s *StreamingService[T]) Start(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message consumer: %w", err)
	}

	s.logger.Info().Int("worker_count", s.numWorkers).Msg("Starting processing workers...")
	s.wg.Add(s.numWorkers)
	for i := 0; i < s.numWorkers; i++ {
		go s.worker(ctx, i)
	}
	return nil
}

// Stop stops the consumer first so no new messages arrive, then waits for the
// workers to drain what is in flight.
func (s *StreamingService[T]) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping streaming service...")
	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error during consumer stop, continuing shutdown.")
	}

	workerDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(workerDone)
	}()

	select {
	case <-workerDone:
		s.logger.Info().Msg("All processing workers completed.")
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for processing workers to finish.")
		return ctx.Err()
	}
	return nil
}

func (s *StreamingService[T]) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	logger := s.logger.With().Int("worker_id", workerID).Logger()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Worker shutting down due to context cancellation.")
			return
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				logger.Debug().Msg("Consumer channel closed, worker exiting.")
				return
			}
			s.handle(ctx, msg, logger)
		}
	}
}

func (s *StreamingService[T]) handle(ctx context.Context, msg Message, logger zerolog.Logger) {
	payload, skip, err := s.transformer(ctx, &msg)
	if err != nil {
		logger.Error().Err(err).Str("msg_id", msg.ID).Str("topic", msg.Topic()).Msg("Failed to transform message, Nacking.")
		msg.nack()
		return
	}
	if skip {
		msg.ack()
		return
	}
	if err := s.processor(ctx, msg, payload); err != nil {
		logger.Error().Err(err).Str("msg_id", msg.ID).Str("topic", msg.Topic()).Msg("Processor failed to handle message, Nacking.")
		msg.nack()
		return
	}
	msg.ack()
}
