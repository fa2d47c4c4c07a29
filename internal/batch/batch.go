// Package batch records mutations in the engine's write-batch log format and
// replays them.
//
// The log is a 12-byte header followed by records:
//
//	sequence(8, little-endian) + count(4, little-endian) +
//	count * (tag(1) + [cf(varint)] + key(varint-prefixed) + [value(varint-prefixed)])
//
// Log data records sit between counted records and are not included in the
// count. Encoding is deterministic, so a batch rebuilt from its own bytes
// re-encodes identically.
package batch

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"widekv/internal/common"
	"widekv/internal/widecolumn"
)

// HeaderLen is the size of the sequence and count header.
const HeaderLen = 12

// DefaultColumnFamilyID identifies the default column family. Records for it
// are written without a family id.
const DefaultColumnFamilyID uint32 = 0

// ColumnFamily is the opaque family token handed out by the engine. The
// batch only ever reads its id.
type ColumnFamily interface {
	ID() uint32
}

// WriteBatch is an append-only log of pending mutations. It is not safe for
// concurrent use; hand a copy of Data to other goroutines instead.
type WriteBatch struct {
	rep []byte
}

// New returns an empty batch.
func New() *WriteBatch {
	b := &WriteBatch{}
	b.init(0)
	return b
}

// FromData rebuilds a batch from bytes previously returned by Data. data is
// copied. Only the header is validated here; records are checked on replay.
func FromData(data []byte) (*WriteBatch, error) {
	if len(data) < HeaderLen {
		return nil, errors.Wrapf(common.ErrCorrupt, "batch: %d bytes is shorter than the header", len(data))
	}
	return &WriteBatch{rep: bytes.Clone(data)}, nil
}

func (b *WriteBatch) init(capacity int) {
	n := 256
	for n < capacity+HeaderLen {
		n *= 2
	}
	b.rep = make([]byte, HeaderLen, n)
}

// Put records an upsert of key in the default column family.
func (b *WriteBatch) Put(key, value []byte) {
	b.PutCF(nil, key, value)
}

// PutCF records an upsert of key in cf. A nil cf means the default family.
func (b *WriteBatch) PutCF(cf ColumnFamily, key, value []byte) {
	id := familyID(cf)
	if id == DefaultColumnFamilyID {
		b.appendRecord(KindValue, id, key, value)
	} else {
		b.appendRecord(KindCFValue, id, key, value)
	}
	b.incrementCount()
}

// Delete records a deletion of key in the default column family.
func (b *WriteBatch) Delete(key []byte) {
	b.DeleteCF(nil, key)
}

// DeleteCF records a deletion of key in cf.
func (b *WriteBatch) DeleteCF(cf ColumnFamily, key []byte) {
	id := familyID(cf)
	if id == DefaultColumnFamilyID {
		b.appendRecord(KindDeletion, id, key, nil)
	} else {
		b.appendRecord(KindCFDeletion, id, key, nil)
	}
	b.incrementCount()
}

// DeleteRange records a deletion of every key in [begin, end) of the default
// column family.
func (b *WriteBatch) DeleteRange(begin, end []byte) {
	b.DeleteRangeCF(nil, begin, end)
}

// DeleteRangeCF records a deletion of every key in [begin, end) of cf.
func (b *WriteBatch) DeleteRangeCF(cf ColumnFamily, begin, end []byte) {
	id := familyID(cf)
	if id == DefaultColumnFamilyID {
		b.appendRecord(KindRangeDeletion, id, begin, end)
	} else {
		b.appendRecord(KindCFRangeDeletion, id, begin, end)
	}
	b.incrementCount()
}

// PutEntity is PutEntityCF on the default column family.
func (b *WriteBatch) PutEntity(key []byte, names, values [][]byte) error {
	return b.PutEntityCF(nil, key, names, values)
}

// PutEntityCF records a wide-column upsert. names[i] is paired with
// values[i]. Nothing is appended when the columns are rejected.
func (b *WriteBatch) PutEntityCF(cf ColumnFamily, key []byte, names, values [][]byte) error {
	entity, err := widecolumn.Encode(names, values)
	if err != nil {
		return err
	}
	id := familyID(cf)
	if id == DefaultColumnFamilyID {
		b.appendRecord(KindWideColumnEntity, id, key, entity)
	} else {
		b.appendRecord(KindCFWideColumnEntity, id, key, entity)
	}
	b.incrementCount()
	return nil
}

// PutLogData appends a blob that travels with the batch but is never
// applied to storage and does not count as an operation.
func (b *WriteBatch) PutLogData(blob []byte) {
	b.rep = append(b.rep, byte(KindLogData))
	b.rep = common.AppendLengthPrefixed(b.rep, blob)
}

func (b *WriteBatch) appendRecord(kind Kind, cf uint32, key, value []byte) {
	b.rep = append(b.rep, byte(kind))
	if kind.hasCF() {
		b.rep = common.AppendUvarint(b.rep, uint64(cf))
	}
	b.rep = common.AppendLengthPrefixed(b.rep, key)
	if kind.hasValue() {
		b.rep = common.AppendLengthPrefixed(b.rep, value)
	}
}

func familyID(cf ColumnFamily) uint32 {
	if cf == nil {
		return DefaultColumnFamilyID
	}
	return cf.ID()
}

func (b *WriteBatch) countData() []byte {
	return b.rep[8:12]
}

func (b *WriteBatch) incrementCount() {
	binary.LittleEndian.PutUint32(b.countData(), binary.LittleEndian.Uint32(b.countData())+1)
}

// Len returns the number of recorded operations.
func (b *WriteBatch) Len() int {
	return int(binary.LittleEndian.Uint32(b.countData()))
}

func (b *WriteBatch) IsEmpty() bool {
	return b.Len() == 0
}

// Size returns the encoded size in bytes.
func (b *WriteBatch) Size() int {
	return len(b.rep)
}

// Sequence returns the sequence number in the header. Zero means the batch
// has not been stamped by the engine.
func (b *WriteBatch) Sequence() uint64 {
	return binary.LittleEndian.Uint64(b.rep[:8])
}

func (b *WriteBatch) SetSequence(seq uint64) {
	binary.LittleEndian.PutUint64(b.rep[:8], seq)
}

// Clear drops every record. Slices previously returned by Data are not
// affected.
func (b *WriteBatch) Clear() {
	b.rep = b.rep[:HeaderLen]
	clear(b.rep)
}

// Data returns a copy of the encoded log.
func (b *WriteBatch) Data() []byte {
	return bytes.Clone(b.rep)
}

// Reader decodes the log without copying. The batch must not be modified
// while the reader is in use.
func (b *WriteBatch) Reader() *Reader {
	return NewReader(b.rep)
}
