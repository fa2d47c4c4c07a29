package db

import "widekv/internal/journal"

type Options struct {
	// Dir is the pebble data directory. Ignored when InMemory is set.
	Dir          string
	InMemory     bool
	CacheSize    int64
	MemTableSize uint64
	// Sync makes every group commit durable before Write returns.
	Sync bool
	// MaxBatchSize caps how many pending writes one group commit absorbs.
	MaxBatchSize int
	// Journal, if set, receives every committed batch stamped with its
	// sequence number.
	Journal journal.Writer
}

var DefaultOptions = Options{
	Dir:          "widekv-data",
	CacheSize:    64 << 20,
	MemTableSize: 32 << 20,
	Sync:         true,
	MaxBatchSize: 50,
}

type Option func(*Options)

func WithDir(dir string) Option {
	return func(o *Options) {
		o.Dir = dir
	}
}

func WithInMemory() Option {
	return func(o *Options) {
		o.InMemory = true
	}
}

func WithCacheSize(n int64) Option {
	return func(o *Options) {
		o.CacheSize = n
	}
}

func WithMemTableSize(n uint64) Option {
	return func(o *Options) {
		o.MemTableSize = n
	}
}

func WithSync(sync bool) Option {
	return func(o *Options) {
		o.Sync = sync
	}
}

func WithMaxBatchSize(n int) Option {
	return func(o *Options) {
		o.MaxBatchSize = n
	}
}

func WithJournal(w journal.Writer) Option {
	return func(o *Options) {
		o.Journal = w
	}
}
