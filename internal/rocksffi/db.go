//go:build darwin || linux

package rocksffi

import (
	"bytes"
	"runtime"
	"sort"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"

	"widekv/internal/batch"
	"widekv/internal/common"
	"widekv/internal/widecolumn"
)

const DefaultColumnFamilyName = "default"

// ColumnFamily is a RocksDB column family handle. Its ID is the one RocksDB
// records in batch blobs, so it can be passed straight to the batch encoder.
type ColumnFamily struct {
	h    uintptr
	id   uint32
	name string
}

var _ batch.ColumnFamily = (*ColumnFamily)(nil)

func (cf *ColumnFamily) ID() uint32 {
	if cf == nil {
		return batch.DefaultColumnFamilyID
	}
	return cf.id
}

func (cf *ColumnFamily) Name() string {
	if cf == nil {
		return DefaultColumnFamilyName
	}
	return cf.name
}

// DB is an open RocksDB instance.
type DB struct {
	lib *Library
	dir string

	mu       sync.Mutex
	db       uintptr
	opts     uintptr
	wopts    uintptr
	ropts    uintptr
	families map[string]*ColumnFamily
}

// Open opens or creates the database in dir with every existing column
// family.
func (l *Library) Open(dir string) (*DB, error) {
	opts := l.fn.optionsCreate()
	l.fn.optionsSetCreateIfMissing(opts, 1)
	l.fn.optionsSetCreateMissingColumnFamilies(opts, 1)

	names := l.listFamilies(opts, dir)

	cnames := make([][]byte, len(names))
	namePtrs := make([]uintptr, len(names))
	cfOpts := make([]uintptr, len(names))
	handles := make([]uintptr, len(names))
	for i, name := range names {
		cnames[i] = append([]byte(name), 0)
		namePtrs[i] = slicePtr(cnames[i])
		cfOpts[i] = opts
	}

	var db uintptr
	err := l.call("open "+dir, func(errptr uintptr) {
		db = l.fn.openColumnFamilies(opts, dir, int32(len(names)),
			ptrsPtr(namePtrs), ptrsPtr(cfOpts), ptrsPtr(handles), errptr)
	})
	// Keep slices alive until after the FFI call completes
	runtime.KeepAlive(cnames)
	runtime.KeepAlive(namePtrs)
	runtime.KeepAlive(cfOpts)
	if err != nil {
		l.fn.optionsDestroy(opts)
		return nil, err
	}

	d := &DB{
		lib:      l,
		dir:      dir,
		db:       db,
		opts:     opts,
		wopts:    l.fn.writeOptionsCreate(),
		ropts:    l.fn.readOptionsCreate(),
		families: make(map[string]*ColumnFamily, len(names)),
	}
	for i, name := range names {
		d.families[name] = &ColumnFamily{h: handles[i], id: l.fn.columnFamilyID(handles[i]), name: name}
	}
	common.FFI.Info().Str("dir", dir).Strs("families", names).Msg("opened rocksdb")
	return d, nil
}

// listFamilies returns the families recorded in dir, or just the default one
// when the database does not exist yet.
func (l *Library) listFamilies(opts uintptr, dir string) []string {
	var n uintptr
	var list uintptr
	err := l.call("list column families", func(errptr uintptr) {
		list = l.fn.listColumnFamilies(opts, dir, uintptr(unsafe.Pointer(&n)), errptr)
	})
	if err != nil || list == 0 {
		common.FFI.Debug().Err(err).Str("dir", dir).Msg("no existing column families")
		return []string{DefaultColumnFamilyName}
	}
	defer l.fn.listColumnFamiliesDestroy(list, n)

	names := make([]string, 0, n)
	for i := uintptr(0); i < n; i++ {
		p := *(*uintptr)(unsafe.Add(unsafe.Pointer(list), i*unsafe.Sizeof(uintptr(0))))
		names = append(names, cString(p))
	}
	return names
}

func (d *DB) Dir() string { return d.dir }

// Close releases every handle. Sets obtained from GetEntity must be closed
// before this.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == 0 {
		return nil
	}
	for _, cf := range d.families {
		d.lib.fn.columnFamilyDestroy(cf.h)
	}
	d.lib.fn.close(d.db)
	d.lib.fn.writeOptionsDestroy(d.wopts)
	d.lib.fn.readOptionsDestroy(d.ropts)
	d.lib.fn.optionsDestroy(d.opts)
	d.db = 0
	d.families = nil
	return nil
}

func (d *DB) handle() (uintptr, error) {
	if d.db == 0 {
		return 0, common.ErrClosed
	}
	return d.db, nil
}

func (d *DB) CreateColumnFamily(name string) (*ColumnFamily, error) {
	if name == "" {
		return nil, common.InvalidArgumentf("rocksffi: empty column family name")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	if _, ok := d.families[name]; ok {
		return nil, common.InvalidArgumentf("rocksffi: column family %q already exists", name)
	}

	var h uintptr
	if err := d.lib.call("create column family", func(errptr uintptr) {
		h = d.lib.fn.createColumnFamily(db, d.opts, name, errptr)
	}); err != nil {
		return nil, err
	}
	cf := &ColumnFamily{h: h, id: d.lib.fn.columnFamilyID(h), name: name}
	d.families[name] = cf
	return cf, nil
}

func (d *DB) ColumnFamily(name string) (*ColumnFamily, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cf, ok := d.families[name]
	if !ok {
		return nil, errors.Wrapf(common.ErrNotFound, "column family %q", name)
	}
	return cf, nil
}

func (d *DB) ColumnFamilies() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.families))
	for name := range d.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// family maps nil to the default family.
func (d *DB) family(cf *ColumnFamily) (*ColumnFamily, error) {
	if cf != nil {
		return cf, nil
	}
	def, ok := d.families[DefaultColumnFamilyName]
	if !ok {
		return nil, common.ErrClosed
	}
	return def, nil
}

// Write hands the encoded batch to rocksdb_write unchanged.
func (d *DB) Write(b *batch.WriteBatch) error {
	if b == nil {
		return common.InvalidArgumentf("rocksffi: nil batch")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	db, err := d.handle()
	if err != nil {
		return err
	}

	data := b.Data()
	wb := d.lib.fn.writeBatchCreateFrom(slicePtr(data), uintptr(len(data)))
	runtime.KeepAlive(data)
	defer d.lib.fn.writeBatchDestroy(wb)

	return d.lib.call("write", func(errptr uintptr) {
		d.lib.fn.write(db, d.wopts, wb, errptr)
	})
}

// Reencode loads b into a native write batch and returns the bytes RocksDB
// holds for it.
func (l *Library) Reencode(b *batch.WriteBatch) []byte {
	data := b.Data()
	wb := l.fn.writeBatchCreateFrom(slicePtr(data), uintptr(len(data)))
	runtime.KeepAlive(data)
	defer l.fn.writeBatchDestroy(wb)

	var n uintptr
	p := l.fn.writeBatchData(wb, uintptr(unsafe.Pointer(&n)))
	return bytes.Clone(view(p, n))
}

// GetEntity looks up key and returns its columns pinned by RocksDB. The
// caller must Close the set.
func (d *DB) GetEntity(cf *ColumnFamily, key []byte) (*widecolumn.Set, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	fam, err := d.family(cf)
	if err != nil {
		return nil, err
	}

	var h uintptr
	err = d.lib.call("get entity", func(errptr uintptr) {
		h = d.lib.fn.getEntityCF(db, d.ropts, fam.h, slicePtr(key), uintptr(len(key)), errptr)
	})
	runtime.KeepAlive(key)
	if err != nil {
		if h != 0 {
			d.lib.fn.pinnableDestroy(h)
		}
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return d.lib.pinnedSet(h), nil
}

// Iterator walks one column family from the first key.
type Iterator struct {
	lib *Library
	it  uintptr
	cur *widecolumn.Set
}

func (d *DB) NewIterator(cf *ColumnFamily) (*Iterator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	fam, err := d.family(cf)
	if err != nil {
		return nil, err
	}
	it := d.lib.fn.iterCreateCF(db, d.ropts, fam.h)
	d.lib.fn.iterSeekToFirst(it)
	return &Iterator{lib: d.lib, it: it}, nil
}

func (i *Iterator) Valid() bool {
	return i.lib.fn.iterValid(i.it) != 0
}

func (i *Iterator) Next() {
	i.release()
	i.lib.fn.iterNext(i.it)
}

// Key returns the current key. Valid until the iterator moves.
func (i *Iterator) Key() []byte {
	var n uintptr
	p := i.lib.fn.iterKey(i.it, uintptr(unsafe.Pointer(&n)))
	return view(p, n)
}

// Columns returns the current entry as a plain set. It is released when the
// iterator moves or closes.
func (i *Iterator) Columns() (*widecolumn.Set, error) {
	if !i.Valid() {
		return nil, common.InvalidArgumentf("rocksffi: iterator not positioned")
	}
	i.release()
	i.cur = i.lib.plainSet(i.lib.fn.iterColumns(i.it))
	return i.cur, nil
}

func (i *Iterator) Error() error {
	return i.lib.call("iterate", func(errptr uintptr) {
		i.lib.fn.iterGetError(i.it, errptr)
	})
}

func (i *Iterator) Close() error {
	i.release()
	if i.it != 0 {
		i.lib.fn.iterDestroy(i.it)
		i.it = 0
	}
	return nil
}

func (i *Iterator) release() {
	if i.cur != nil {
		_ = i.cur.Close()
		i.cur = nil
	}
}

// ptrsPtr returns a pointer to the first element of a pointer array.
func ptrsPtr(s []uintptr) uintptr {
	if len(s) == 0 {
		return uintptr(unsafe.Pointer(&struct{}{}))
	}
	return uintptr(unsafe.Pointer(&s[0]))
}
