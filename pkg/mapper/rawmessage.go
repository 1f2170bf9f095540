package mapper

import (
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/messagepipeline"
)

// RawMessage is one inbound delivery as the mapper sees it.
type RawMessage struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// RawMessageFrom reads the topic and receipt time recorded by the consumer.
// A message without a receipt time is stamped with the current time.
func RawMessageFrom(msg *messagepipeline.Message) RawMessage {
	received := msg.PublishTime
	if received.IsZero() {
		received = time.Now().UTC()
	}
	return RawMessage{
		Topic:      msg.Topic(),
		Payload:    msg.Payload,
		ReceivedAt: received,
	}
}
