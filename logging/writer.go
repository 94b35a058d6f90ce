package logging

import (
	"context"
	"sync"
)

// Built-in writer names.
const (
	WriterStream = "stream"
	WriterFile   = "file"
	WriterDB     = "db"
	WriterRedis  = "redis"
	WriterMock   = "mock"
	WriterNoop   = "noop"
)

// MockWriter keeps every record in memory.
type MockWriter struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

func newMockWriter(Options) (Writer, error) {
	return NewMockWriter(), nil
}

func (w *MockWriter) Write(_ context.Context, rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, rec.Clone())
	return nil
}

// Records returns the records written so far.
func (w *MockWriter) Records() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Record(nil), w.records...)
}

func (w *MockWriter) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *MockWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// NoopWriter discards everything.
type NoopWriter struct{}

func newNoopWriter(Options) (Writer, error) {
	return NoopWriter{}, nil
}

func (NoopWriter) Write(context.Context, Record) error { return nil }
func (NoopWriter) Close() error                        { return nil }
