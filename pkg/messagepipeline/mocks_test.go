package messagepipeline_test

import (
	"context"
	"sync"

	"github.com/illmade-knight/go-sensormapper/pkg/messagepipeline"
)

// MockMessageConsumer is a channel backed messagepipeline.MessageConsumer.
type MockMessageConsumer struct {
	msgChan    chan messagepipeline.Message
	doneChan   chan struct{}
	mu         sync.Mutex
	closeOnce  sync.Once
	startCount int
	stopCount  int
}

func NewMockMessageConsumer(bufferSize int) *MockMessageConsumer {
	return &MockMessageConsumer{
		msgChan:  make(chan messagepipeline.Message, bufferSize),
		doneChan: make(chan struct{}),
	}
}

func (m *MockMessageConsumer) Push(msg messagepipeline.Message) {
	m.msgChan <- msg
}

func (m *MockMessageConsumer) Close() {
	m.closeOnce.Do(func() {
		close(m.msgChan)
		close(m.doneChan)
	})
}

func (m *MockMessageConsumer) Messages() <-chan messagepipeline.Message { return m.msgChan }

func (m *MockMessageConsumer) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCount++
	return nil
}

func (m *MockMessageConsumer) Stop(_ context.Context) error {
	m.mu.Lock()
	m.stopCount++
	m.mu.Unlock()
	m.Close()
	return nil
}

func (m *MockMessageConsumer) Done() <-chan struct{} { return m.doneChan }

func (m *MockMessageConsumer) GetStartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount
}

func (m *MockMessageConsumer) GetStopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount
}

func newTopicMessage(id, topic, payload string) messagepipeline.Message {
	return messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: id, Payload: []byte(payload)},
		Attributes:  map[string]string{messagepipeline.TopicAttribute: topic},
	}
}
