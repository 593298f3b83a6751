package store

import (
	"context"
	"sync"

	"github.com/futureready/retain/pkg/model"
)

// Record is one durable entry of the append-only version log. The body
// is inlined unless a blob store holds it, in which case BodyRef on the
// version points at the external object.
type Record struct {
	Version *model.DocumentVersion `json:"version"`
	Body    []byte                 `json:"body,omitempty"`
}

// Log is the durability boundary of the store: one append-only entry
// per committed version. Replay must yield records in commit order per
// document so that the in-memory state and temporal index can be
// rebuilt after a crash.
type Log interface {
	Append(ctx context.Context, rec *Record) error
	Replay(ctx context.Context, fn func(rec *Record) error) error
	Close() error
}

// BlobStore holds document bodies outside the log, keyed by version ID.
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// memoryLog is a volatile Log used for tests and ephemeral stores.
type memoryLog struct {
	mu      sync.Mutex
	records []*Record
}

// NewMemoryLog creates an in-memory version log with no durability.
func NewMemoryLog() Log {
	return &memoryLog{}
}

func (l *memoryLog) Append(ctx context.Context, rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *memoryLog) Replay(ctx context.Context, fn func(rec *Record) error) error {
	l.mu.Lock()
	records := make([]*Record, len(l.records))
	copy(records, l.records)
	l.mu.Unlock()

	for _, rec := range records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (l *memoryLog) Close() error {
	return nil
}
