package mapper

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-sensormapper/pkg/bqstore"
	"github.com/illmade-knight/go-sensormapper/pkg/icestore"
	"github.com/illmade-knight/go-sensormapper/pkg/sink"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// BuildSink creates the sinks named in cfg.Sinks.Types, combining them in a
// Fanout when there is more than one. The returned cleanup closes every
// client BuildSink opened and must be called after the sink is stopped.
func BuildSink(ctx context.Context, cfg *Config, logger zerolog.Logger) (sink.ReadingSink, func(), error) {
	var (
		sinks   []sink.ReadingSink
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	for _, t := range cfg.Sinks.Types {
		var (
			s   sink.ReadingSink
			err error
		)
		switch t {
		case SinkPubsub:
			var client *pubsub.Client
			client, err = pubsub.NewClient(ctx, cfg.ProjectID, opts...)
			if err == nil {
				closers = append(closers, func() { _ = client.Close() })
				s, err = sink.NewPubsubSink(ctx, sink.NewPubsubSinkDefaults(cfg.Sinks.Queue), client, logger)
			}
		case SinkRedis:
			client := sink.NewRedisClient(cfg.Sinks.Redis)
			closers = append(closers, func() { _ = client.Close() })
			s, err = sink.NewRedisSink(client, cfg.Sinks.Queue, logger)
		case SinkBigQuery:
			s, err = buildBigQuerySink(ctx, cfg, logger, &closers)
		case SinkGCS:
			s, err = buildGCSSink(ctx, cfg, opts, logger, &closers)
		default:
			err = fmt.Errorf("unknown sink type %q", t)
		}
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to create %s sink: %w", t, err)
		}
		logger.Info().Str("sink_type", t).Msg("Sink configured.")
		sinks = append(sinks, s)
	}

	if len(sinks) == 1 {
		return sinks[0], cleanup, nil
	}
	fanout, err := sink.NewFanout(sinks...)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return fanout, cleanup, nil
}

func buildBigQuerySink(ctx context.Context, cfg *Config, logger zerolog.Logger, closers *[]func()) (sink.ReadingSink, error) {
	client, err := bqstore.NewProductionBigQueryClient(ctx, cfg.ProjectID, cfg.Sinks.BigQuery.CredentialsFile, logger)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { _ = client.Close() })

	writer, err := bqstore.NewWriter(ctx, client, &cfg.Sinks.BigQuery, logger)
	if err != nil {
		return nil, err
	}
	return sink.NewBatcher(cfg.Sinks.Batch, writer, logger)
}

func buildGCSSink(ctx context.Context, cfg *Config, opts []option.ClientOption, logger zerolog.Logger, closers *[]func()) (sink.ReadingSink, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	*closers = append(*closers, func() { _ = client.Close() })

	writer, err := icestore.NewWriter(icestore.NewGCSClientAdapter(client), cfg.Sinks.GCS, logger)
	if err != nil {
		return nil, err
	}
	return sink.NewBatcher(cfg.Sinks.Batch, writer, logger)
}
