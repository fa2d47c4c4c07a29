package widecolumn

import (
	"bytes"
	"math"
	"sort"

	"github.com/cockroachdb/errors"

	"widekv/internal/common"
)

const (
	entityVersion = 1

	// MaxNameLen is the longest column name the engine accepts. Names, like
	// values, carry a 32-bit length.
	MaxNameLen = math.MaxUint32
)

// Encode serializes an entity from positionally paired names and values.
//
// Format:
//
//	version(varint) + count(varint) +
//	count * (nameLen(varint) + name + valueLen(varint)) +
//	values concatenated
//
// Columns are stored sorted by name, which is the order every read returns.
// Duplicate names are rejected.
func Encode(names, values [][]byte) ([]byte, error) {
	if len(names) != len(values) {
		return nil, common.InvalidArgumentf("entity has %d names but %d values", len(names), len(values))
	}

	order := make([]int, len(names))
	size := 2 * 5
	for i := range names {
		if uint64(len(names[i])) > MaxNameLen {
			return nil, common.InvalidArgumentf("column name %d is %d bytes, limit %d", i, len(names[i]), uint64(MaxNameLen))
		}
		if uint64(len(values[i])) > math.MaxUint32 {
			return nil, common.InvalidArgumentf("column value %d is %d bytes", i, len(values[i]))
		}
		order[i] = i
		size += len(names[i]) + len(values[i]) + 2*5
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bytes.Compare(names[order[a]], names[order[b]]) < 0
	})
	for i := 1; i < len(order); i++ {
		if bytes.Equal(names[order[i-1]], names[order[i]]) {
			return nil, common.InvalidArgumentf("duplicate column name %q", names[order[i]])
		}
	}

	out := make([]byte, 0, size)
	out = common.AppendUvarint(out, entityVersion)
	out = common.AppendUvarint(out, uint64(len(order)))
	for _, i := range order {
		out = common.AppendLengthPrefixed(out, names[i])
		out = common.AppendUvarint(out, uint64(len(values[i])))
	}
	for _, i := range order {
		out = append(out, values[i]...)
	}
	return out, nil
}

// EncodeColumns is Encode over a column list.
func EncodeColumns(cols Columns) ([]byte, error) {
	names := make([][]byte, len(cols))
	values := make([][]byte, len(cols))
	for i, col := range cols {
		names[i] = col.Name
		values[i] = col.Value
	}
	return Encode(names, values)
}

// Decode parses an entity without copying: every returned slice aliases data.
func Decode(data []byte) (Columns, error) {
	version, p, ok := common.DecodeUvarint32(data)
	if !ok {
		return nil, corruptEntity("version")
	}
	if version != entityVersion {
		return nil, errors.Wrapf(common.ErrCorrupt, "entity: unsupported version %d", version)
	}
	n, p, ok := common.DecodeUvarint32(p)
	if !ok {
		return nil, corruptEntity("column count")
	}
	// Every column takes at least two bytes of index.
	if uint64(n)*2 > uint64(len(p)) {
		return nil, corruptEntity("column count")
	}

	cols := make(Columns, n)
	sizes := make([]uint32, n)
	for i := range cols {
		var name []byte
		if name, p, ok = common.DecodeLengthPrefixed(p); !ok {
			return nil, corruptEntity("column name")
		}
		if i > 0 && bytes.Compare(cols[i-1].Name, name) >= 0 {
			return nil, corruptEntity("column order")
		}
		cols[i].Name = name
		if sizes[i], p, ok = common.DecodeUvarint32(p); !ok {
			return nil, corruptEntity("value size")
		}
	}
	for i := range cols {
		if uint64(sizes[i]) > uint64(len(p)) {
			return nil, corruptEntity("value")
		}
		cols[i].Value, p = p[:sizes[i]:sizes[i]], p[sizes[i]:]
	}
	if len(p) != 0 {
		return nil, corruptEntity("trailing bytes")
	}
	return cols, nil
}

func corruptEntity(what string) error {
	return errors.Wrapf(common.ErrCorrupt, "entity: bad %s", what)
}
