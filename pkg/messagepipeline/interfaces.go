package messagepipeline

import (
	"context"
)

// MessageConsumer is a message source such as an MQTT subscription. It hands
// every delivery to the pipeline through the Messages channel.
type MessageConsumer interface {
	// Messages returns the channel pipeline workers receive from. It is closed
	// once the consumer has stopped.
	Messages() <-chan Message
	// Start connects to the source and begins delivering messages.
	Start(ctx context.Context) error
	// Stop ceases consumption and waits for background tasks to finish.
	Stop(ctx context.Context) error
	// Done returns a channel that is closed when the consumer has shut down.
	Done() <-chan struct{}
}

// MessageTransformer turns a Message into a structured payload of type T.
//
// Returning skip=true acknowledges the message without handing it to the
// processor, which filters it out of the pipeline.
type MessageTransformer[T any] func(ctx context.Context, msg *Message) (payload *T, skip bool, err error)

// StreamProcessor handles transformed messages one by one. A returned error
// Nacks the original message.
type StreamProcessor[T any] func(ctx context.Context, original Message, payload *T) error
