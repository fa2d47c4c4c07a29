package batch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"widekv/internal/batch"
	"widekv/internal/common"
)

func TestFromDataTooShort(t *testing.T) {
	for _, data := range [][]byte{nil, {}, make([]byte, batch.HeaderLen-1)} {
		_, err := batch.FromData(data)
		require.ErrorIs(t, err, common.ErrCorrupt)
	}
}

func TestFromDataCopies(t *testing.T) {
	src := batch.New()
	src.Put([]byte("k"), []byte("v"))
	data := src.Data()

	b, err := batch.FromData(data)
	require.NoError(t, err)
	data[len(data)-1] = 'x'

	rec := &plainRecorder{}
	require.NoError(t, b.Iterate(rec))
	require.Equal(t, []byte("v"), rec.ops[0].Value)
}

func goodLog() []byte {
	b := batch.New()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	b.Put([]byte("c"), []byte("3"))
	return b.Data()
}

func TestReplayStopsAtCorruption(t *testing.T) {
	// Each put is 5 bytes: tag, keylen, key, vallen, val.
	second := batch.HeaderLen + 5

	tests := []struct {
		name    string
		corrupt func(data []byte) []byte
		visited int
		offset  int
		record  int
	}{
		{
			name:    "UnknownTag",
			corrupt: func(d []byte) []byte { d[second] = 0x7F; return d },
			visited: 1, offset: second, record: 1,
		},
		{
			name:    "KeyLengthPastEnd",
			corrupt: func(d []byte) []byte { d[second+1] = 100; return d },
			visited: 1, offset: second, record: 1,
		},
		{
			name:    "TruncatedLastValue",
			corrupt: func(d []byte) []byte { return d[:len(d)-1] },
			visited: 2, offset: second + 5, record: 2,
		},
		{
			name:    "FirstRecordBad",
			corrupt: func(d []byte) []byte { d[batch.HeaderLen] = 0x40; return d },
			visited: 0, offset: batch.HeaderLen, record: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := batch.FromData(tt.corrupt(goodLog()))
			require.NoError(t, err)

			rec := &plainRecorder{}
			err = b.Iterate(rec)
			require.ErrorIs(t, err, common.ErrCorrupt)
			require.Len(t, rec.ops, tt.visited)

			var cerr *batch.CorruptionError
			require.True(t, errors.As(err, &cerr))
			require.Equal(t, tt.offset, cerr.Offset)
			require.Equal(t, tt.record, cerr.Record)
		})
	}
}

func TestReplayCountMismatch(t *testing.T) {
	data := goodLog()
	data[8] = 5

	b, err := batch.FromData(data)
	require.NoError(t, err)
	require.Equal(t, 5, b.Len())

	err = b.Iterate(&plainRecorder{})
	require.ErrorIs(t, err, common.ErrCorrupt)
	require.Contains(t, err.Error(), "count")
}

func TestReplayCorruptEntity(t *testing.T) {
	b := batch.New()
	b.Put([]byte("a"), []byte("1"))
	require.NoError(t, b.PutEntity([]byte("e"), bs("n"), bs("v")))
	b.Put([]byte("z"), []byte("9"))

	data := b.Data()
	// Entity version byte follows tag, key and the entity length.
	versionAt := batch.HeaderLen + 5 + 4
	require.Equal(t, byte(1), data[versionAt])
	data[versionAt] = 9

	corrupt, err := batch.FromData(data)
	require.NoError(t, err)

	// Entity-aware visitors decode and fail at the entity.
	full := &fullRecorder{}
	err = corrupt.Iterate(full)
	require.ErrorIs(t, err, common.ErrCorrupt)
	require.Len(t, full.ops, 1)

	// Plain visitors see the raw bytes and carry on.
	plain := &plainRecorder{}
	require.NoError(t, corrupt.Iterate(plain))
	require.Len(t, plain.ops, 3)
}

type failingVisitor struct {
	plainRecorder
	failAt int
}

func (f *failingVisitor) Put(key, value []byte) error {
	if len(f.ops) == f.failAt {
		return errors.New("visitor refused")
	}
	return f.plainRecorder.Put(key, value)
}

func TestVisitorErrorStopsReplay(t *testing.T) {
	b, err := batch.FromData(goodLog())
	require.NoError(t, err)

	v := &failingVisitor{failAt: 1}
	err = b.Iterate(v)
	require.EqualError(t, err, "visitor refused")
	require.Len(t, v.ops, 1)
}

func TestReaderRecords(t *testing.T) {
	b := batch.New()
	b.PutLogData([]byte("hdr"))
	b.PutCF(family(4), []byte("k"), []byte("v"))
	b.DeleteRangeCF(family(4), []byte("a"), []byte("b"))

	r := b.Reader()
	var kinds []batch.Kind
	for {
		rec, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		kinds = append(kinds, rec.Kind)
		if rec.Kind != batch.KindLogData {
			require.Equal(t, uint32(4), rec.ColumnFamily)
		}
	}
	require.Equal(t, []batch.Kind{batch.KindLogData, batch.KindCFValue, batch.KindCFRangeDeletion}, kinds)
	require.Equal(t, 2, r.Count())
	require.Equal(t, b.Size(), r.Offset())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "PUT", batch.KindCFValue.String())
	require.Equal(t, "DEL", batch.KindDeletion.String())
	require.Equal(t, "ENTITY", batch.KindWideColumnEntity.String())
	require.Equal(t, "DELRANGE", batch.KindRangeDeletion.String())
	require.Equal(t, "LOG", batch.KindLogData.String())
	require.Equal(t, "KIND(0x7f)", batch.Kind(0x7F).String())
}
