package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/rs/zerolog"
)

// URIAttribute carries the Reading URI on each published message.
const URIAttribute = "uri"

// PubsubSinkConfig holds configuration for the Pub/Sub sink.
type PubsubSinkConfig struct {
	TopicID        string        `yaml:"topic_id"`
	DelayThreshold time.Duration `yaml:"delay_threshold"`
	CountThreshold int           `yaml:"count_threshold"`
}

// NewPubsubSinkDefaults returns a config for topicID using the client
// library's batching defaults.
func NewPubsubSinkDefaults(topicID string) *PubsubSinkConfig {
	return &PubsubSinkConfig{
		TopicID:        topicID,
		DelayThreshold: pubsub.DefaultPublishSettings.DelayThreshold,
		CountThreshold: pubsub.DefaultPublishSettings.CountThreshold,
	}
}

// PubsubSink publishes each encoded Record as one Pub/Sub message.
type PubsubSink struct {
	topic  *pubsub.Topic
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewPubsubSink verifies that the topic exists before returning.
func NewPubsubSink(ctx context.Context, cfg *PubsubSinkConfig, client *pubsub.Client, logger zerolog.Logger) (*PubsubSink, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil")
	}
	if cfg == nil || cfg.TopicID == "" {
		return nil, errors.New("pubsub topic id is required")
	}
	topic := client.Topic(cfg.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	if cfg.DelayThreshold > 0 {
		topic.PublishSettings.DelayThreshold = cfg.DelayThreshold
	}
	if cfg.CountThreshold > 0 {
		topic.PublishSettings.CountThreshold = cfg.CountThreshold
	}

	return &PubsubSink{
		topic:  topic,
		logger: logger.With().Str("component", "PubsubSink").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

func (s *PubsubSink) Start(_ context.Context) error {
	return nil
}

// Emit queues the Record for publishing. Publish results are logged
// asynchronously.
func (s *PubsubSink) Emit(ctx context.Context, reading decoder.Reading, ts time.Time) error {
	rec := NewRecord(reading, ts)
	result := s.topic.Publish(ctx, &pubsub.Message{
		Data:       rec.Bytes(),
		Attributes: map[string]string{URIAttribute: rec.URI},
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		getCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		msgID, err := result.Get(getCtx)
		if err != nil {
			s.logger.Error().Err(err).Str("uri", rec.URI).Msg("Failed to publish record")
			return
		}
		s.logger.Debug().Str("published_msg_id", msgID).Msg("Record published.")
	}()
	return nil
}

// Stop flushes pending messages, respecting the context's timeout.
func (s *PubsubSink) Stop(ctx context.Context) error {
	stopDone := make(chan struct{})
	go func() {
		s.topic.Stop()
		s.wg.Wait()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
