package eventlog

import (
	"context"
	"sync"

	"patridefi/internal/domain"
)

// MemoryLog is an in-memory Log, used by tests and embedded runs.
type MemoryLog struct {
	mu     sync.RWMutex
	events []*domain.Event
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Compile-time interface check.
var _ Log = (*MemoryLog)(nil)

// Append stamps and stores the batch.
func (l *MemoryLog) Append(_ context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return ErrInvalidInput
	}
	for _, ev := range events {
		if ev == nil {
			return ErrInvalidInput
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := uint64(len(l.events)) + 1
	for i, ev := range events {
		copy := *ev
		copy.Seq = next + uint64(i)
		copy.SchemaVersion = domain.EventSchemaVersion
		l.events = append(l.events, &copy)
	}
	return nil
}

// ReadFrom returns events with Seq >= fromSeq in order.
func (l *MemoryLog) ReadFrom(_ context.Context, fromSeq uint64, limit int) ([]*domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if fromSeq < 1 {
		fromSeq = 1
	}
	if fromSeq > uint64(len(l.events)) {
		return nil, nil
	}

	// Seq i lives at index i-1.
	tail := l.events[fromSeq-1:]
	if limit > 0 && limit < len(tail) {
		tail = tail[:limit]
	}

	out := make([]*domain.Event, len(tail))
	for i, ev := range tail {
		copy := *ev
		out[i] = &copy
	}
	return out, nil
}

// LastSeq returns the newest sequence number.
func (l *MemoryLog) LastSeq(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.events)), nil
}
