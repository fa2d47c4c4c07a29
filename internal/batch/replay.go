package batch

import (
	"widekv/internal/common"
	"widekv/internal/widecolumn"
)

// Visitor receives replayed operations. Slices are only valid for the
// duration of the call.
//
// Family-scoped records reach a plain Visitor with the family dropped, and
// entities arrive as Put with the serialized entity as the value, unless the
// visitor also implements CFVisitor or EntityVisitor.
type Visitor interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// CFVisitor receives the column family id of every put and delete.
type CFVisitor interface {
	PutCF(cf uint32, key, value []byte) error
	DeleteCF(cf uint32, key []byte) error
}

// EntityVisitor receives decoded wide-column entities.
type EntityVisitor interface {
	PutEntityCF(cf uint32, key []byte, columns widecolumn.Columns) error
}

// RangeDeleteVisitor receives range deletions. Replay fails with
// ErrInvalidArgument if a batch holding one is replayed into a visitor
// without this method.
type RangeDeleteVisitor interface {
	DeleteRangeCF(cf uint32, begin, end []byte) error
}

// LogDataVisitor receives log data blobs, which are skipped otherwise.
type LogDataVisitor interface {
	LogData(blob []byte) error
}

// Iterate replays the log in order. Replay stops at the first corrupt record
// with a *CorruptionError, or at the first error returned by v. The batch is
// not modified.
func (b *WriteBatch) Iterate(v Visitor) error {
	r := b.Reader()
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := dispatch(v, rec, r.Count()-1); err != nil {
			return err
		}
	}
	if r.Count() != b.Len() {
		return &CorruptionError{
			Offset: r.Offset(),
			Record: r.Count(),
			Reason: "header count does not match records",
		}
	}
	return nil
}

func dispatch(v Visitor, rec Record, index int) error {
	cfv, hasCF := v.(CFVisitor)

	switch rec.Kind {
	case KindValue, KindCFValue:
		if hasCF {
			return cfv.PutCF(rec.ColumnFamily, rec.Key, rec.Value)
		}
		return v.Put(rec.Key, rec.Value)

	case KindDeletion, KindCFDeletion:
		if hasCF {
			return cfv.DeleteCF(rec.ColumnFamily, rec.Key)
		}
		return v.Delete(rec.Key)

	case KindWideColumnEntity, KindCFWideColumnEntity:
		ev, ok := v.(EntityVisitor)
		if !ok {
			if hasCF {
				return cfv.PutCF(rec.ColumnFamily, rec.Key, rec.Value)
			}
			return v.Put(rec.Key, rec.Value)
		}
		cols, err := widecolumn.Decode(rec.Value)
		if err != nil {
			return &CorruptionError{Offset: rec.Offset, Record: index, Reason: err.Error()}
		}
		return ev.PutEntityCF(rec.ColumnFamily, rec.Key, cols)

	case KindRangeDeletion, KindCFRangeDeletion:
		rv, ok := v.(RangeDeleteVisitor)
		if !ok {
			return common.InvalidArgumentf("batch: visitor %T cannot replay range deletions", v)
		}
		return rv.DeleteRangeCF(rec.ColumnFamily, rec.Key, rec.Value)

	case KindLogData:
		if lv, ok := v.(LogDataVisitor); ok {
			return lv.LogData(rec.Value)
		}
		return nil
	}
	return nil
}
