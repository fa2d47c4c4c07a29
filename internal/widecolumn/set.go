package widecolumn

import (
	"iter"

	"github.com/cockroachdb/errors"

	"widekv/internal/common"
)

// Source is the engine-side column array a Set indexes into. Name and Value
// are only called with 0 <= idx < Len().
type Source interface {
	Len() int
	Name(idx int) []byte
	Value(idx int) []byte
}

// Kind records which engine routine produced a Set and therefore which one
// releases it.
type Kind uint8

const (
	// KindPlain sets hold a column array the engine materialized for the
	// caller, e.g. the current entry of an iterator.
	KindPlain Kind = iota
	// KindPinned sets additionally pin the storage pages backing a point
	// lookup until released.
	KindPinned
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// ReleaseFunc frees the engine allocation behind a Set. It is called at most
// once.
type ReleaseFunc func() error

// Set owns one engine column allocation. The zero value is not usable.
//
// A Set is not safe for concurrent use. Every slice it hands out becomes
// invalid once Close returns.
type Set struct {
	src      Source
	size     int
	kind     Kind
	release  ReleaseFunc
	released bool
}

var _ Iterable = (*Set)(nil)

// NewPlain wraps a plain engine column array. release may be nil.
func NewPlain(src Source, release ReleaseFunc) *Set {
	return newSet(src, KindPlain, release)
}

// NewPinned wraps a pinned lookup result. release may be nil.
func NewPinned(src Source, release ReleaseFunc) *Set {
	return newSet(src, KindPinned, release)
}

func newSet(src Source, kind Kind, release ReleaseFunc) *Set {
	size := 0
	if src != nil {
		size = src.Len()
	}
	return &Set{
		src:     src,
		size:    size,
		kind:    kind,
		release: release,
	}
}

// Kind reports the allocation flavor.
func (s *Set) Kind() Kind { return s.kind }

// Len returns the column count captured when the set was created.
func (s *Set) Len() int { return s.size }

func (s *Set) IsEmpty() bool { return s.size == 0 }

// Released reports whether Close has been called.
func (s *Set) Released() bool { return s.released }

func (s *Set) check(idx int) error {
	if s.released {
		return common.ErrReleased
	}
	if idx < 0 || idx >= s.size {
		return errors.Wrapf(common.ErrOutOfRange, "column %d of %d", idx, s.size)
	}
	return nil
}

// ColumnName returns a borrowed view of the name of column idx.
func (s *Set) ColumnName(idx int) ([]byte, error) {
	if err := s.check(idx); err != nil {
		return nil, err
	}
	return s.src.Name(idx), nil
}

// ColumnValue returns a borrowed view of the value of column idx.
func (s *Set) ColumnValue(idx int) ([]byte, error) {
	if err := s.check(idx); err != nil {
		return nil, err
	}
	return s.src.Value(idx), nil
}

// Column returns a borrowed view of column idx.
func (s *Set) Column(idx int) (WideColumn, error) {
	if err := s.check(idx); err != nil {
		return WideColumn{}, err
	}
	return s.column(idx), nil
}

func (s *Set) column(idx int) WideColumn {
	return WideColumn{Name: s.src.Name(idx), Value: s.src.Value(idx)}
}

// All yields every column in storage order. A released set yields nothing.
// Stopping early is allowed; the next call to All starts over.
func (s *Set) All() iter.Seq[WideColumn] {
	return func(yield func(WideColumn) bool) {
		for i := 0; i < s.size; i++ {
			if s.released || !yield(s.column(i)) {
				return
			}
		}
	}
}

// Iter returns a cursor positioned before the first column.
func (s *Set) Iter() *Iterator {
	return &Iterator{set: s}
}

// Close releases the engine allocation. Only the first call has an effect.
func (s *Set) Close() error {
	if s.released {
		return nil
	}
	s.released = true
	s.src = nil
	if s.release == nil {
		return nil
	}
	return s.release()
}

// Iterator steps through a Set one column at a time.
type Iterator struct {
	set *Set
	idx int
}

// Next returns the next column, or false once every column has been
// produced or the set was released.
func (it *Iterator) Next() (WideColumn, bool) {
	if it.set.released || it.idx >= it.set.size {
		return WideColumn{}, false
	}
	col := it.set.column(it.idx)
	it.idx++
	return col, true
}

// WithColumns lends set to fn and closes it when fn returns, panics
// included. Views obtained inside fn must not be used after it returns.
func WithColumns(set *Set, fn func(Iterable) error) (err error) {
	defer func() {
		err = errors.CombineErrors(err, set.Close())
	}()
	return fn(set)
}
