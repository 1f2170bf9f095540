package messagepipeline

import (
	"time"
)

// TopicAttribute is the attribute key under which transport consumers store
// the topic a message was published on.
const TopicAttribute = "mqtt_topic"

// Message is the canonical, internal representation of an inbound delivery.
// It carries the raw payload, broker metadata and acknowledgment handles.
type Message struct {
	MessageData

	// Attributes holds metadata from the message broker, such as the MQTT topic.
	Attributes map[string]string

	// Ack signals that the message was handled and can be forgotten.
	Ack func()

	// Nack signals that handling failed.
	Nack func()
}

// MessageData holds the payload of a message.
type MessageData struct {
	// ID is the identifier assigned by the source broker.
	ID string `json:"id"`

	// Payload is the raw byte content of the message.
	Payload []byte `json:"payload"`

	// PublishTime is when the message was received from the broker.
	PublishTime time.Time `json:"publishTime"`
}

// Topic returns the topic recorded by the consumer, or "" if there is none.
func (m *Message) Topic() string {
	return m.Attributes[TopicAttribute]
}

func (m *Message) ack() {
	if m.Ack != nil {
		m.Ack()
	}
}

func (m *Message) nack() {
	if m.Nack != nil {
		m.Nack()
	}
}
