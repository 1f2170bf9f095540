package icestore_test

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/illmade-knight/go-sensormapper/pkg/icestore"
)

// mockGCSWriter is a mock GCSWriter that writes to an in-memory buffer.
type mockGCSWriter struct {
	buf      bytes.Buffer
	closed   bool
	closeErr error
}

func (m *mockGCSWriter) Write(p []byte) (int, error) {
	if m.closed {
		return 0, errors.New("write on closed writer")
	}
	return m.buf.Write(p)
}

func (m *mockGCSWriter) Close() error {
	if m.closed {
		return errors.New("already closed")
	}
	m.closed = true
	return m.closeErr
}

type mockGCSObjectHandle struct {
	writer *mockGCSWriter
}

func (m *mockGCSObjectHandle) NewWriter(_ context.Context) icestore.GCSWriter {
	return m.writer
}

// mockGCSBucketHandle stores created objects in a map.
type mockGCSBucketHandle struct {
	mu       sync.Mutex
	objects  map[string]*mockGCSObjectHandle
	closeErr error
}

func (m *mockGCSBucketHandle) Object(name string) icestore.GCSObjectHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string]*mockGCSObjectHandle)
	}
	if _, ok := m.objects[name]; !ok {
		m.objects[name] = &mockGCSObjectHandle{writer: &mockGCSWriter{closeErr: m.closeErr}}
	}
	return m.objects[name]
}

func (m *mockGCSBucketHandle) snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.objects))
	for name, obj := range m.objects {
		out[name] = obj.writer.buf.Bytes()
	}
	return out
}

type mockGCSClient struct {
	mu         sync.Mutex
	bucket     *mockGCSBucketHandle
	bucketName string
}

func newMockGCSClient() *mockGCSClient {
	return &mockGCSClient{bucket: &mockGCSBucketHandle{}}
}

func (m *mockGCSClient) Bucket(name string) icestore.GCSBucketHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucketName = name
	return m.bucket
}
