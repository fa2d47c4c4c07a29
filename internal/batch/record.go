package batch

import (
	"fmt"

	"widekv/internal/common"
)

// Kind tags each record in the batch log. Values match the engine's
// on-disk record types.
type Kind uint8

const (
	KindDeletion           Kind = 0x00
	KindValue              Kind = 0x01
	KindLogData            Kind = 0x03
	KindCFDeletion         Kind = 0x04
	KindCFValue            Kind = 0x05
	KindCFRangeDeletion    Kind = 0x0E
	KindRangeDeletion      Kind = 0x0F
	KindWideColumnEntity   Kind = 0x16
	KindCFWideColumnEntity Kind = 0x17
)

func (k Kind) String() string {
	switch k {
	case KindDeletion, KindCFDeletion:
		return "DEL"
	case KindValue, KindCFValue:
		return "PUT"
	case KindLogData:
		return "LOG"
	case KindRangeDeletion, KindCFRangeDeletion:
		return "DELRANGE"
	case KindWideColumnEntity, KindCFWideColumnEntity:
		return "ENTITY"
	default:
		return fmt.Sprintf("KIND(%#x)", uint8(k))
	}
}

// hasCF reports whether records of this kind carry a column family id.
func (k Kind) hasCF() bool {
	switch k {
	case KindCFDeletion, KindCFValue, KindCFRangeDeletion, KindCFWideColumnEntity:
		return true
	}
	return false
}

// hasValue reports whether records of this kind carry a second string after
// the key.
func (k Kind) hasValue() bool {
	switch k {
	case KindValue, KindCFValue, KindRangeDeletion, KindCFRangeDeletion,
		KindWideColumnEntity, KindCFWideColumnEntity:
		return true
	}
	return false
}

// Record is one decoded batch entry. Key and Value alias the batch log and
// are only valid until the batch is next modified.
//
// For range deletions Key is the inclusive start and Value the exclusive end.
// For entities Value is the serialized entity. For log data Value holds the
// blob and Key is nil.
type Record struct {
	Kind         Kind
	ColumnFamily uint32
	Key          []byte
	Value        []byte
	// Offset is the position of the record's tag byte within the log.
	Offset int
}

// CorruptionError reports where replay stopped.
type CorruptionError struct {
	Offset int
	Record int
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("batch: corrupt record %d at offset %d: %s", e.Record, e.Offset, e.Reason)
}

func (e *CorruptionError) Unwrap() error {
	return common.ErrCorrupt
}

// Reader decodes records front to back.
type Reader struct {
	data   []byte
	offset int
	index  int
	err    error
}

// NewReader reads records from a full batch log, header included.
func NewReader(rep []byte) *Reader {
	if len(rep) < HeaderLen {
		return &Reader{err: &CorruptionError{Reason: "log shorter than header"}}
	}
	return &Reader{data: rep, offset: HeaderLen}
}

// Count returns how many counted records (everything except log data) have
// been decoded so far.
func (r *Reader) Count() int { return r.index }

// Offset returns the byte position of the next record.
func (r *Reader) Offset() int { return r.offset }

// Next returns the next record. ok is false at the end of the log or after an
// error, which is sticky.
func (r *Reader) Next() (rec Record, ok bool, err error) {
	if r.err != nil {
		return Record{}, false, r.err
	}
	if r.offset >= len(r.data) {
		return Record{}, false, nil
	}

	p := r.data[r.offset:]
	rec = Record{Kind: Kind(p[0]), Offset: r.offset}
	p = p[1:]

	switch rec.Kind {
	case KindDeletion, KindValue, KindLogData, KindCFDeletion, KindCFValue,
		KindCFRangeDeletion, KindRangeDeletion, KindWideColumnEntity, KindCFWideColumnEntity:
	default:
		return r.fail(rec.Offset, fmt.Sprintf("unknown record tag %#x", uint8(rec.Kind)))
	}

	if rec.Kind.hasCF() {
		if rec.ColumnFamily, p, ok = common.DecodeUvarint32(p); !ok {
			return r.fail(rec.Offset, "bad column family id")
		}
	}
	if rec.Kind == KindLogData {
		if rec.Value, p, ok = common.DecodeLengthPrefixed(p); !ok {
			return r.fail(rec.Offset, "bad log data")
		}
	} else {
		if rec.Key, p, ok = common.DecodeLengthPrefixed(p); !ok {
			return r.fail(rec.Offset, "bad key")
		}
		if rec.Kind.hasValue() {
			if rec.Value, p, ok = common.DecodeLengthPrefixed(p); !ok {
				return r.fail(rec.Offset, "bad value")
			}
		}
		r.index++
	}

	r.offset = len(r.data) - len(p)
	return rec, true, nil
}

func (r *Reader) fail(offset int, reason string) (Record, bool, error) {
	r.err = &CorruptionError{Offset: offset, Record: r.index, Reason: reason}
	return Record{}, false, r.err
}
