package db

import (
	"github.com/cockroachdb/pebble"

	"widekv/internal/common"
	"widekv/internal/widecolumn"
)

// Iterator walks one column family in key order.
type Iterator struct {
	it  *pebble.Iterator
	cf  uint32
	cur *widecolumn.Set
	err error
}

// NewIterator returns an unpositioned iterator over cf. Call First or SeekGE
// before reading.
func (d *DB) NewIterator(cf *ColumnFamilyHandle) (*Iterator, error) {
	if d.isClosed() {
		return nil, common.ErrClosed
	}
	id, err := d.resolve(cf)
	if err != nil {
		return nil, err
	}
	lower, upper := familyBounds(id)
	it, err := d.pdb.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, common.EngineFailure(err, "new iterator")
	}
	return &Iterator{it: it, cf: id}, nil
}

func (i *Iterator) First() bool {
	i.releaseCurrent()
	return i.it.First()
}

func (i *Iterator) SeekGE(key []byte) bool {
	i.releaseCurrent()
	return i.it.SeekGE(dataKey(i.cf, key))
}

func (i *Iterator) Next() bool {
	i.releaseCurrent()
	return i.it.Next()
}

func (i *Iterator) Valid() bool {
	return i.it.Valid()
}

// Key returns the user key at the current position. Valid until the
// iterator moves.
func (i *Iterator) Key() []byte {
	return userKey(i.it.Key())
}

// Value returns the plain value at the current position, or the default
// column of an entity.
func (i *Iterator) Value() ([]byte, error) {
	cols, err := decodeValue(i.it.Value())
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if len(c.Name) == 0 {
			return c.Value, nil
		}
	}
	return []byte{}, nil
}

// Columns returns the columns at the current position as a plain set. The
// set is released when the iterator moves or closes.
func (i *Iterator) Columns() (*widecolumn.Set, error) {
	if !i.it.Valid() {
		return nil, common.InvalidArgumentf("db: iterator not positioned")
	}
	i.releaseCurrent()
	cols, err := decodeValue(i.it.Value())
	if err != nil {
		return nil, err
	}
	i.cur = widecolumn.NewPlain(cols, nil)
	return i.cur, nil
}

func (i *Iterator) Error() error {
	if i.err != nil {
		return i.err
	}
	return common.EngineFailure(i.it.Error(), "iterate")
}

func (i *Iterator) Close() error {
	i.releaseCurrent()
	return common.EngineFailure(i.it.Close(), "close iterator")
}

func (i *Iterator) releaseCurrent() {
	if i.cur != nil {
		if err := i.cur.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.cur = nil
	}
}
