//go:build darwin || linux

package rocksffi

import (
	"unsafe"

	"widekv/internal/widecolumn"
)

// pinnedColumns reads a rocksdb_pinnablewidecolumns_t in place.
type pinnedColumns struct {
	lib *Library
	h   uintptr
}

func (c pinnedColumns) Len() int {
	return int(c.lib.fn.pinnableSize(c.h))
}

func (c pinnedColumns) Name(idx int) []byte {
	var n uintptr
	p := c.lib.fn.pinnableName(c.h, uintptr(idx), uintptr(unsafe.Pointer(&n)))
	return view(p, n)
}

func (c pinnedColumns) Value(idx int) []byte {
	var n uintptr
	p := c.lib.fn.pinnableValue(c.h, uintptr(idx), uintptr(unsafe.Pointer(&n)))
	return view(p, n)
}

// plainColumns reads a rocksdb_widecolumns_t in place.
type plainColumns struct {
	lib *Library
	h   uintptr
}

func (c plainColumns) Len() int {
	return int(c.lib.fn.columnsSize(c.h))
}

func (c plainColumns) Name(idx int) []byte {
	var n uintptr
	p := c.lib.fn.columnsName(c.h, uintptr(idx), uintptr(unsafe.Pointer(&n)))
	return view(p, n)
}

func (c plainColumns) Value(idx int) []byte {
	var n uintptr
	p := c.lib.fn.columnsValue(c.h, uintptr(idx), uintptr(unsafe.Pointer(&n)))
	return view(p, n)
}

func (l *Library) pinnedSet(h uintptr) *widecolumn.Set {
	return widecolumn.NewPinned(pinnedColumns{lib: l, h: h}, func() error {
		l.fn.pinnableDestroy(h)
		return nil
	})
}

func (l *Library) plainSet(h uintptr) *widecolumn.Set {
	return widecolumn.NewPlain(plainColumns{lib: l, h: h}, func() error {
		l.fn.columnsDestroy(h)
		return nil
	})
}
