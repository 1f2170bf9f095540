package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-sensormapper/pkg/messagepipeline"
	"github.com/illmade-knight/go-sensormapper/pkg/microservice"
	"github.com/illmade-knight/go-sensormapper/pkg/sink"
	"github.com/rs/zerolog"
)

var _ microservice.Service = (*Service)(nil)

// connectionReporter is implemented by consumers that can report broker
// connectivity, such as mqttconverter.MqttConsumer.
type connectionReporter interface {
	IsConnected() bool
}

// Service runs the decode pipeline behind the health endpoints.
type Service struct {
	*microservice.BaseServer
	pipeline *messagepipeline.StreamingService[DecodedBatch]
	consumer messagepipeline.MessageConsumer
	sink     sink.ReadingSink
	logger   zerolog.Logger
}

// NewService wires consumer through the decoder into out.
func NewService(cfg *Config, consumer messagepipeline.MessageConsumer, out sink.ReadingSink, logger zerolog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	logger = logger.With().Str("service", cfg.ServiceName).Logger()

	dispatcher, err := NewDispatcher(cfg.Separators, out, logger)
	if err != nil {
		return nil, err
	}
	transformer := messagepipeline.WithPayloadValidation(NewTransformer(dispatcher), 0, cfg.MaxPayloadBytes, logger)
	pipeline, err := messagepipeline.NewStreamingService(cfg.Pipeline, consumer, transformer, NewProcessor(dispatcher), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	var ready microservice.ReadinessFunc
	if reporter, ok := consumer.(connectionReporter); ok {
		ready = reporter.IsConnected
	}

	return &Service{
		BaseServer: microservice.NewBaseServer(logger, cfg.HTTPPort, ready),
		pipeline:   pipeline,
		consumer:   consumer,
		sink:       out,
		logger:     logger,
	}, nil
}

// Start starts the sink, then the pipeline, then the HTTP server. The sink
// outlives ctx so that Shutdown can flush it.
func (s *Service) Start(ctx context.Context) error {
	if err := s.sink.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to start sink: %w", err)
	}
	if err := s.pipeline.Start(ctx); err != nil {
		return err
	}
	if err := s.BaseServer.Start(); err != nil {
		return err
	}
	s.logger.Info().Str("http_port", s.GetHTTPPort()).Msg("Sensor mapper started.")
	return nil
}

// Shutdown stops the pipeline, flushes the sink and closes the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.pipeline.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if err := s.sink.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sink: %w", err))
	}
	if err := s.BaseServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	return errors.Join(errs...)
}

// Done is closed when the consumer stops on its own, for example after a
// fatal connection loss.
func (s *Service) Done() <-chan struct{} {
	return s.consumer.Done()
}
