package events

import (
	"context"
	"sync"
)

// MemorySink keeps published events in order. Used by tests and the local dev server.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]Event, 0)}
}

func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemorySink) Close() error {
	return nil
}

// MultiSink fans an event out to every sink and returns the first error.
type MultiSink []IEventSink

func (m MultiSink) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiSink) Close() error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
