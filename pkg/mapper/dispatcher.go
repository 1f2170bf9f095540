// Package mapper turns raw sensor telemetry into Readings and forwards them
// to the configured sinks.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/illmade-knight/go-sensormapper/pkg/sink"
	"github.com/rs/zerolog"
)

// Dispatcher decodes RawMessages and emits their Readings to a sink.
type Dispatcher struct {
	separators decoder.Separators
	sink       sink.ReadingSink
	logger     zerolog.Logger
}

// NewDispatcher creates a dispatcher writing to out.
func NewDispatcher(seps decoder.Separators, out sink.ReadingSink, logger zerolog.Logger) (*Dispatcher, error) {
	if out == nil {
		return nil, errors.New("reading sink cannot be nil")
	}
	if err := seps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid separators: %w", err)
	}
	return &Dispatcher{
		separators: seps,
		sink:       out,
		logger:     logger.With().Str("component", "Dispatcher").Logger(),
	}, nil
}

// Decode returns the Readings carried by msg. Ignored topics, payloads that
// hold no readings and payloads that fail to decode all yield nil; only the
// failure is logged above debug level.
func (d *Dispatcher) Decode(msg RawMessage) []decoder.Reading {
	payload := string(msg.Payload)
	readings, class, err := decoder.Decode(msg.Topic, payload, d.separators)
	switch {
	case err != nil:
		d.logger.Error().Err(err).
			Str("topic", msg.Topic).
			Str("payload", payload).
			Msg("Failed to decode message.")
		return nil
	case class == decoder.TopicIgnored:
		d.logger.Debug().Str("topic", msg.Topic).Msg("Ignoring message on filtered topic.")
		return nil
	case len(readings) == 0:
		d.logger.Debug().
			Str("topic", msg.Topic).
			Str("payload", payload).
			Msg("Message held no readings.")
		return nil
	}

	d.logger.Debug().
		Str("topic", msg.Topic).
		Str("class", class.String()).
		Int("reading_count", len(readings)).
		Msg("Decoded message.")
	return readings
}

// Emit forwards readings to the sink in order and returns how many were
// accepted. A rejected reading is logged and does not stop the rest.
func (d *Dispatcher) Emit(ctx context.Context, readings []decoder.Reading, ts time.Time) int {
	emitted := 0
	for _, r := range readings {
		if err := d.sink.Emit(ctx, r, ts); err != nil {
			d.logger.Warn().Err(err).Str("uri", r.URI).Msg("Sink rejected reading.")
			continue
		}
		emitted++
	}
	return emitted
}

// Dispatch decodes msg and emits its Readings stamped with msg.ReceivedAt.
func (d *Dispatcher) Dispatch(ctx context.Context, msg RawMessage) int {
	return d.Emit(ctx, d.Decode(msg), msg.ReceivedAt)
}
