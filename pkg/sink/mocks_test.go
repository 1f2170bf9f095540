package sink_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/illmade-knight/go-sensormapper/pkg/sink"
	"github.com/redis/go-redis/v9"
)

// mockSink records every Emit call.
type mockSink struct {
	mu       sync.Mutex
	emitted  []sink.Record
	emitErr  error
	started  bool
	stopped  bool
	startErr error
}

func (m *mockSink) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return m.startErr
}

func (m *mockSink) Emit(_ context.Context, reading decoder.Reading, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted = append(m.emitted, sink.NewRecord(reading, ts))
	return m.emitErr
}

func (m *mockSink) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockSink) records() []sink.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sink.Record(nil), m.emitted...)
}

// mockBatchWriter is a mock implementation of sink.BatchWriter.
type mockBatchWriter struct {
	mu           sync.Mutex
	batches      [][]sink.Record
	closed       bool
	WriteBatchFn func(ctx context.Context, records []sink.Record) error
}

func (m *mockBatchWriter) WriteBatch(ctx context.Context, records []sink.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, records)
	if m.WriteBatchFn != nil {
		return m.WriteBatchFn(ctx, records)
	}
	return nil
}

func (m *mockBatchWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockBatchWriter) GetBatches() [][]sink.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]sink.Record(nil), m.batches...)
}

func (m *mockBatchWriter) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// mockListPusher is a mock implementation of sink.ListPusher.
type mockListPusher struct {
	mu      sync.Mutex
	lists   map[string][]string
	pingErr error
	pushErr error
}

func newMockListPusher() *mockListPusher {
	return &mockListPusher{lists: make(map[string][]string)}
}

func (m *mockListPusher) Ping(_ context.Context) *redis.StatusCmd {
	if m.pingErr != nil {
		return redis.NewStatusResult("", m.pingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockListPusher) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return redis.NewIntResult(0, m.pushErr)
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return redis.NewIntResult(0, errors.New("unexpected value type"))
		}
		m.lists[key] = append(m.lists[key], s)
	}
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *mockListPusher) list(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lists[key]...)
}
