package mapper_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/illmade-knight/go-sensormapper/pkg/messagepipeline"
	"github.com/illmade-knight/go-sensormapper/pkg/sink"
)

// captureSink records every emitted Reading. URIs listed in reject are
// refused.
type captureSink struct {
	mu      sync.Mutex
	records []sink.Record
	reject  map[string]bool
	started bool
	stopped bool
}

func (c *captureSink) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *captureSink) Emit(_ context.Context, reading decoder.Reading, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reject[reading.URI] {
		return errors.New("rejected")
	}
	c.records = append(c.records, sink.NewRecord(reading, ts))
	return nil
}

func (c *captureSink) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

func (c *captureSink) Records() []sink.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sink.Record(nil), c.records...)
}

// mockConsumer is a mock of messagepipeline.MessageConsumer that also
// reports a connection state.
type mockConsumer struct {
	msgChan   chan messagepipeline.Message
	doneChan  chan struct{}
	stopOnce  sync.Once
	mu        sync.Mutex
	connected bool
}

func newMockConsumer(bufferSize int) *mockConsumer {
	return &mockConsumer{
		msgChan:  make(chan messagepipeline.Message, bufferSize),
		doneChan: make(chan struct{}),
	}
}

func (m *mockConsumer) Messages() <-chan messagepipeline.Message { return m.msgChan }

func (m *mockConsumer) Start(_ context.Context) error {
	m.setConnected(true)
	return nil
}

func (m *mockConsumer) Stop(_ context.Context) error {
	m.stopOnce.Do(func() {
		m.setConnected(false)
		close(m.msgChan)
		close(m.doneChan)
	})
	return nil
}

func (m *mockConsumer) Done() <-chan struct{} { return m.doneChan }

func (m *mockConsumer) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockConsumer) setConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

func (m *mockConsumer) Push(topic, payload string, received time.Time) {
	m.msgChan <- messagepipeline.Message{
		MessageData: messagepipeline.MessageData{
			ID:          topic,
			Payload:     []byte(payload),
			PublishTime: received,
		},
		Attributes: map[string]string{messagepipeline.TopicAttribute: topic},
	}
}
