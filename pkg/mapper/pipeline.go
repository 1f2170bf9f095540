package mapper

import (
	"context"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/illmade-knight/go-sensormapper/pkg/messagepipeline"
)

// DecodedBatch is the Readings decoded from a single message.
type DecodedBatch struct {
	Topic      string
	Readings   []decoder.Reading
	ReceivedAt time.Time
}

// NewTransformer decodes each pipeline message. Messages that yield no
// Readings are skipped.
func NewTransformer(d *Dispatcher) messagepipeline.MessageTransformer[DecodedBatch] {
	return func(_ context.Context, msg *messagepipeline.Message) (*DecodedBatch, bool, error) {
		raw := RawMessageFrom(msg)
		readings := d.Decode(raw)
		if len(readings) == 0 {
			return nil, true, nil
		}
		return &DecodedBatch{Topic: raw.Topic, Readings: readings, ReceivedAt: raw.ReceivedAt}, false, nil
	}
}

// NewProcessor emits every Reading of a batch. Sink failures never Nack the
// source message; they are logged by the Dispatcher.
func NewProcessor(d *Dispatcher) messagepipeline.StreamProcessor[DecodedBatch] {
	return func(ctx context.Context, _ messagepipeline.Message, batch *DecodedBatch) error {
		d.Emit(ctx, batch.Readings, batch.ReceivedAt)
		return nil
	}
}
