// Package db is the storage engine behind the batch and column layers: a
// pebble database with column families, atomic batch application and
// wide-column point lookups.
package db

import (
	"bytes"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"widekv/internal/batch"
	"widekv/internal/common"
	"widekv/internal/widecolumn"
)

// ErrNotFound is returned by lookups of absent keys.
var ErrNotFound = common.ErrNotFound

type DB struct {
	mu       sync.RWMutex
	closed   bool
	pdb      *pebble.DB
	families map[string]*ColumnFamilyHandle
	byID     map[uint32]*ColumnFamilyHandle
	nextCFID uint32

	// lastSeq is only advanced by the group commit loop.
	lastSeq atomic.Uint64

	Opts      Options
	writeOpts *pebble.WriteOptions
	writeChan chan *writeRequest
	quit      chan struct{}
	stopped   chan struct{}
}

func Open(optFns ...Option) (*DB, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	start := time.Now()

	cache := pebble.NewCache(opts.CacheSize)
	defer cache.Unref()

	popts := &pebble.Options{
		Cache:        cache,
		MemTableSize: opts.MemTableSize,
		Logger:       pebbleLogger{common.Engine},
	}
	dir := opts.Dir
	if opts.InMemory {
		popts.FS = vfs.NewMem()
		dir = ""
	}

	pdb, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, common.EngineFailure(err, "open")
	}

	d := &DB{
		pdb:       pdb,
		families:  map[string]*ColumnFamilyHandle{},
		byID:      map[uint32]*ColumnFamilyHandle{},
		nextCFID:  1,
		Opts:      opts,
		writeOpts: pebble.NoSync,
		writeChan: make(chan *writeRequest, 100),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	if opts.Sync {
		d.writeOpts = pebble.Sync
	}
	if d.Opts.MaxBatchSize < 1 {
		d.Opts.MaxBatchSize = 1
	}

	if err := d.load(); err != nil {
		_ = pdb.Close()
		return nil, err
	}

	// Start background group commit loop
	go d.groupCommitLoop()

	common.LogDuration(common.Engine, start, "opened dir=%q families=%d seq=%d", dir, len(d.families), d.lastSeq.Load())
	return d, nil
}

// load restores column families and the last sequence number.
func (d *DB) load() error {
	def := &ColumnFamilyHandle{id: batch.DefaultColumnFamilyID, name: DefaultColumnFamilyName}
	d.families[def.name] = def
	d.byID[def.id] = def

	if err := d.readMeta(metaLastSequence, func(v []byte) error {
		if len(v) != 8 {
			return errors.Wrap(common.ErrCorrupt, "meta: last sequence")
		}
		d.lastSeq.Store(binary.LittleEndian.Uint64(v))
		return nil
	}); err != nil {
		return err
	}
	if err := d.readMeta(metaNextFamilyID, func(v []byte) error {
		if len(v) != 4 {
			return errors.Wrap(common.ErrCorrupt, "meta: next family id")
		}
		d.nextCFID = binary.BigEndian.Uint32(v)
		return nil
	}); err != nil {
		return err
	}

	iter, err := d.pdb.NewIter(&pebble.IterOptions{
		LowerBound: metaFamilyPrefix,
		UpperBound: prefixUpperBound(metaFamilyPrefix),
	})
	if err != nil {
		return common.EngineFailure(err, "load families")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		v := iter.Value()
		if len(v) != 4 {
			return errors.Wrap(common.ErrCorrupt, "meta: family id")
		}
		h := &ColumnFamilyHandle{
			id:   binary.BigEndian.Uint32(v),
			name: string(iter.Key()[len(metaFamilyPrefix):]),
		}
		d.families[h.name] = h
		d.byID[h.id] = h
	}
	return common.EngineFailure(iter.Error(), "load families")
}

func (d *DB) readMeta(key []byte, fn func([]byte) error) error {
	v, closer, err := d.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return common.EngineFailure(err, "read meta")
	}
	defer closer.Close()
	return fn(v)
}

// Write applies b atomically: either every operation lands or none does.
// b itself is not modified and may be reused after Write returns.
func (d *DB) Write(b *batch.WriteBatch) error {
	if b == nil {
		return common.InvalidArgumentf("db: nil batch")
	}
	if d.isClosed() {
		return common.ErrClosed
	}

	req := &writeRequest{
		batch:    b,
		resultCh: make(chan error, 1),
	}

	select {
	case d.writeChan <- req:
	case <-d.quit:
		return common.ErrClosed
	}

	select {
	case err := <-req.resultCh:
		return err
	case <-d.stopped:
		// The loop sends every result before it stops.
		select {
		case err := <-req.resultCh:
			return err
		default:
			return common.ErrClosed
		}
	}
}

// Put writes key=value to cf. A nil cf is the default family.
func (d *DB) Put(cf *ColumnFamilyHandle, key, value []byte) error {
	b := batch.New()
	b.PutCF(familyToken(cf), key, value)
	return d.Write(b)
}

// Delete removes key from cf.
func (d *DB) Delete(cf *ColumnFamilyHandle, key []byte) error {
	b := batch.New()
	b.DeleteCF(familyToken(cf), key)
	return d.Write(b)
}

// PutEntity writes a wide-column entity. names[i] pairs with values[i].
func (d *DB) PutEntity(cf *ColumnFamilyHandle, key []byte, names, values [][]byte) error {
	b := batch.New()
	if err := b.PutEntityCF(familyToken(cf), key, names, values); err != nil {
		return err
	}
	return d.Write(b)
}

// Get returns a copy of the value at key. For an entity that is the value
// of its default (empty-named) column, or empty if it has none.
func (d *DB) Get(cf *ColumnFamilyHandle, key []byte) ([]byte, error) {
	set, err := d.GetEntity(cf, key)
	if err != nil {
		return nil, err
	}
	defer set.Close()

	for col := range set.All() {
		if len(col.Name) == 0 {
			return bytes.Clone(col.Value), nil
		}
	}
	return []byte{}, nil
}

// GetEntity looks up key and returns its columns pinned in engine memory.
// A plain value comes back as a single column named DefaultColumnName. The
// caller must Close the set; its views are invalid afterwards.
func (d *DB) GetEntity(cf *ColumnFamilyHandle, key []byte) (*widecolumn.Set, error) {
	if d.isClosed() {
		return nil, common.ErrClosed
	}
	id, err := d.resolve(cf)
	if err != nil {
		return nil, err
	}

	value, closer, err := d.pdb.Get(dataKey(id, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, common.EngineFailure(err, "get")
	}

	cols, err := decodeValue(value)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	return widecolumn.NewPinned(cols, closer.Close), nil
}

// WithEntity lends the columns of key to fn and unpins them afterwards.
func (d *DB) WithEntity(cf *ColumnFamilyHandle, key []byte, fn func(widecolumn.Iterable) error) error {
	set, err := d.GetEntity(cf, key)
	if err != nil {
		return err
	}
	return widecolumn.WithColumns(set, fn)
}

func decodeValue(v []byte) (widecolumn.Columns, error) {
	if len(v) == 0 {
		return nil, errors.Wrap(common.ErrCorrupt, "db: empty stored value")
	}
	switch v[0] {
	case valueTagPlain:
		return widecolumn.Columns{{Name: widecolumn.DefaultColumnName, Value: v[1:]}}, nil
	case valueTagEntity:
		return widecolumn.Decode(v[1:])
	default:
		return nil, errors.Wrapf(common.ErrCorrupt, "db: unknown value tag %#x", v[0])
	}
}

// LastSequence returns the sequence number of the most recent committed
// operation.
func (d *DB) LastSequence() uint64 {
	return d.lastSeq.Load()
}

func (d *DB) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Close stops the commit loop, failing writes still queued, and closes
// pebble. Calling Close again is a no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.quit)
	<-d.stopped

	common.Engine.Debug().Uint64("seq", d.lastSeq.Load()).Msg("closing")
	return common.EngineFailure(d.pdb.Close(), "close")
}
