// Package widecolumn exposes the columns of a wide-column entity as borrowed
// views over engine-owned memory.
//
// Views returned by a Set alias the set's underlying allocation and are valid
// only until the set is closed. Use WithColumns to scope a borrow to a call,
// and WideColumn.Clone to keep a column past it.
package widecolumn

import (
	"bytes"
	"iter"
)

// DefaultColumnName is the name of the single anonymous column a plain
// (non-entity) value is exposed as.
var DefaultColumnName = []byte{}

// WideColumn is a name/value pair. When obtained from a Set both slices are
// borrowed.
type WideColumn struct {
	Name  []byte
	Value []byte
}

// Clone returns a deep copy that does not alias the source allocation.
func (c WideColumn) Clone() WideColumn {
	return WideColumn{
		Name:  bytes.Clone(c.Name),
		Value: bytes.Clone(c.Value),
	}
}

// Equal compares two columns using slice content.
func (c WideColumn) Equal(other WideColumn) bool {
	return bytes.Equal(c.Name, other.Name) && bytes.Equal(c.Value, other.Value)
}

// Iterable is a finite collection of columns that can be walked any number
// of times. Each call to All starts a fresh pass at index 0 and yields the
// columns in storage order.
type Iterable interface {
	Len() int
	All() iter.Seq[WideColumn]
}

// Columns is an in-memory column list, typically the result of Decode. Its
// slices alias whatever buffer it was decoded from.
type Columns []WideColumn

var (
	_ Iterable = Columns(nil)
	_ Source   = Columns(nil)
)

func (c Columns) Len() int { return len(c) }

func (c Columns) Name(idx int) []byte { return c[idx].Name }

func (c Columns) Value(idx int) []byte { return c[idx].Value }

func (c Columns) All() iter.Seq[WideColumn] {
	return func(yield func(WideColumn) bool) {
		for _, col := range c {
			if !yield(col) {
				return
			}
		}
	}
}

// Clone deep-copies every column.
func (c Columns) Clone() Columns {
	out := make(Columns, len(c))
	for i, col := range c {
		out[i] = col.Clone()
	}
	return out
}

// Collect deep-copies the columns of any Iterable.
func Collect(it Iterable) Columns {
	out := make(Columns, 0, it.Len())
	for col := range it.All() {
		out = append(out, col.Clone())
	}
	return out
}
