package batch_test

import (
	"bytes"
	"fmt"

	"widekv/internal/widecolumn"
)

type family uint32

func (f family) ID() uint32 { return uint32(f) }

// op is a replayed operation, with every slice copied out of the batch.
type op struct {
	Kind   string
	CF     uint32
	Key    []byte
	Value  []byte
	Column widecolumn.Columns
}

func (o op) String() string {
	return fmt.Sprintf("%s cf=%d %q=%q %v", o.Kind, o.CF, o.Key, o.Value, o.Column)
}

// plainRecorder implements only the base Visitor.
type plainRecorder struct {
	ops []op
}

func (r *plainRecorder) Put(key, value []byte) error {
	r.ops = append(r.ops, op{Kind: "put", Key: bytes.Clone(key), Value: bytes.Clone(value)})
	return nil
}

func (r *plainRecorder) Delete(key []byte) error {
	r.ops = append(r.ops, op{Kind: "delete", Key: bytes.Clone(key)})
	return nil
}

// fullRecorder implements every optional visitor extension.
type fullRecorder struct {
	plainRecorder
}

func (r *fullRecorder) PutCF(cf uint32, key, value []byte) error {
	r.ops = append(r.ops, op{Kind: "put", CF: cf, Key: bytes.Clone(key), Value: bytes.Clone(value)})
	return nil
}

func (r *fullRecorder) DeleteCF(cf uint32, key []byte) error {
	r.ops = append(r.ops, op{Kind: "delete", CF: cf, Key: bytes.Clone(key)})
	return nil
}

func (r *fullRecorder) PutEntityCF(cf uint32, key []byte, cols widecolumn.Columns) error {
	r.ops = append(r.ops, op{Kind: "entity", CF: cf, Key: bytes.Clone(key), Column: cols.Clone()})
	return nil
}

func (r *fullRecorder) DeleteRangeCF(cf uint32, begin, end []byte) error {
	r.ops = append(r.ops, op{Kind: "delete-range", CF: cf, Key: bytes.Clone(begin), Value: bytes.Clone(end)})
	return nil
}

func (r *fullRecorder) LogData(blob []byte) error {
	r.ops = append(r.ops, op{Kind: "log", Value: bytes.Clone(blob)})
	return nil
}
