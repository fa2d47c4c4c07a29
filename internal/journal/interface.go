package journal

import (
	"context"

	"widekv/internal/batch"
)

// Writer is the contract the engine needs to ship committed batches.
type Writer interface {
	Append(ctx context.Context, batches ...*batch.WriteBatch) error
}

// Log is a Writer that can also be read back.
type Log interface {
	Writer
	Iterator(ctx context.Context) (LogIterator, error)
}

// LogIterator walks batches recovered from the log.
// Next returns false when EOF is reached.
type LogIterator interface {
	Next() (*batch.WriteBatch, bool, error)
	Close() error
}
