package batch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widekv/internal/batch"
	"widekv/internal/common"
	"widekv/internal/widecolumn"
)

func bs(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestEmptyBatch(t *testing.T) {
	b := batch.New()
	require.Equal(t, 0, b.Len())
	require.True(t, b.IsEmpty())
	require.Equal(t, make([]byte, batch.HeaderLen), b.Data())
	require.Equal(t, uint64(0), b.Sequence())

	rec := &plainRecorder{}
	require.NoError(t, b.Iterate(rec))
	require.Empty(t, rec.ops)
}

func TestClearResets(t *testing.T) {
	b := batch.New()
	b.Put([]byte("1"), []byte("2"))
	b.Delete([]byte("3"))
	b.SetSequence(99)
	require.Equal(t, 2, b.Len())

	exported := b.Data()

	b.Clear()
	require.Equal(t, 0, b.Len())
	require.True(t, b.IsEmpty())
	require.Equal(t, batch.New().Data(), b.Data())

	// Exported bytes are an independent snapshot.
	again, err := batch.FromData(exported)
	require.NoError(t, err)
	require.Equal(t, 2, again.Len())
	require.Equal(t, uint64(99), again.Sequence())

	// The batch is reusable after Clear.
	b.Put([]byte("k"), []byte("v"))
	require.Equal(t, 1, b.Len())
}

func TestWireFormat(t *testing.T) {
	b := batch.New()
	b.Put([]byte("a"), []byte("bc"))
	b.Delete([]byte("d"))
	b.PutCF(family(3), []byte("e"), nil)
	b.DeleteCF(family(3), []byte("f"))

	want := []byte{
		0, 0, 0, 0, 0, 0, 0, 0, // sequence
		4, 0, 0, 0, // count
		0x01, 1, 'a', 2, 'b', 'c',
		0x00, 1, 'd',
		0x05, 3, 1, 'e', 0,
		0x04, 3, 1, 'f',
	}
	require.Equal(t, want, b.Data())
	require.Equal(t, len(want), b.Size())
}

func TestDefaultFamilyHandleUsesPlainRecords(t *testing.T) {
	a := batch.New()
	a.PutCF(family(batch.DefaultColumnFamilyID), []byte("k"), []byte("v"))
	a.DeleteCF(family(0), []byte("k"))

	b := batch.New()
	b.Put([]byte("k"), []byte("v"))
	b.Delete([]byte("k"))

	require.Equal(t, b.Data(), a.Data())
}

func TestEntityWireFormat(t *testing.T) {
	b := batch.New()
	require.NoError(t, b.PutEntityCF(family(2), []byte("k"), bs("n"), bs("v")))

	entity, err := widecolumn.Encode(bs("n"), bs("v"))
	require.NoError(t, err)

	want := append([]byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0x17, 2, 1, 'k', byte(len(entity))}, entity...)
	require.Equal(t, want, b.Data())

	b.Clear()
	require.NoError(t, b.PutEntity([]byte("k"), bs("n"), bs("v")))
	require.Equal(t, byte(batch.KindWideColumnEntity), b.Data()[batch.HeaderLen])
}

func TestRoundTripBytes(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *batch.WriteBatch)
	}{
		{"Empty", func(b *batch.WriteBatch) {}},
		{"Puts", func(b *batch.WriteBatch) {
			b.Put([]byte{1}, []byte{2})
			b.Put([]byte{2}, []byte{3})
			b.Put([]byte{1, 2, 3, 4, 5}, []byte{4})
		}},
		{"Mixed", func(b *batch.WriteBatch) {
			b.Put([]byte("a"), []byte("1"))
			b.Delete([]byte("a"))
			b.PutCF(family(7), []byte(""), []byte(""))
			b.DeleteRangeCF(family(7), []byte("a"), []byte("z"))
			b.PutLogData([]byte("blob"))
			require.NoError(t, b.PutEntityCF(family(7), []byte("e"), bs("x", "y"), bs("1", "2")))
		}},
		{"Stamped", func(b *batch.WriteBatch) {
			b.Put([]byte("a"), []byte("1"))
			b.SetSequence(1 << 40)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := batch.New()
			tt.build(b)

			reloaded, err := batch.FromData(b.Data())
			require.NoError(t, err)
			require.Equal(t, b.Data(), reloaded.Data())
			require.Equal(t, b.Len(), reloaded.Len())

			want, got := &fullRecorder{}, &fullRecorder{}
			require.NoError(t, b.Iterate(want))
			require.NoError(t, reloaded.Iterate(got))
			require.Equal(t, want.ops, got.ops)
		})
	}
}

func TestSerializedDataReplay(t *testing.T) {
	kvs := map[string][]byte{
		string([]byte{1}):             {2},
		string([]byte{2}):             {3},
		string([]byte{1, 2, 3, 4, 5}): {4},
	}
	order := [][]byte{{1}, {2}, {1, 2, 3, 4, 5}}

	b1 := batch.New()
	for _, k := range order {
		b1.Put(k, kvs[string(k)])
	}

	b2, err := batch.FromData(b1.Data())
	require.NoError(t, err)

	rec := &plainRecorder{}
	require.NoError(t, b2.Iterate(rec))
	require.Len(t, rec.ops, 3)
	for i, o := range rec.ops {
		assert.Equal(t, "put", o.Kind)
		assert.Equal(t, order[i], o.Key)
		assert.Equal(t, kvs[string(order[i])], o.Value)
	}
}

func TestReplayFidelity(t *testing.T) {
	b := batch.New()
	b.Put([]byte("k1"), []byte("v1"))
	b.Delete([]byte("k2"))
	b.PutCF(family(5), []byte("k3"), []byte("v3"))
	b.PutLogData([]byte("meta"))
	b.DeleteCF(family(5), []byte("k4"))
	require.NoError(t, b.PutEntityCF(family(5), []byte("k5"), bs("567", "1234"), bs("123f4", "43d2100")))
	b.DeleteRange([]byte("a"), []byte("b"))
	require.Equal(t, 6, b.Len())

	rec := &fullRecorder{}
	require.NoError(t, b.Iterate(rec))

	want := []op{
		{Kind: "put", Key: []byte("k1"), Value: []byte("v1")},
		{Kind: "delete", Key: []byte("k2")},
		{Kind: "put", CF: 5, Key: []byte("k3"), Value: []byte("v3")},
		{Kind: "log", Value: []byte("meta")},
		{Kind: "delete", CF: 5, Key: []byte("k4")},
		{Kind: "entity", CF: 5, Key: []byte("k5"), Column: widecolumn.Columns{
			{Name: []byte("1234"), Value: []byte("43d2100")},
			{Name: []byte("567"), Value: []byte("123f4")},
		}},
		{Kind: "delete-range", Key: []byte("a"), Value: []byte("b")},
	}
	require.Equal(t, want, rec.ops)
}

func TestPlainVisitorDecomposesEntities(t *testing.T) {
	b := batch.New()
	require.NoError(t, b.PutEntityCF(family(1), []byte("e"), bs("a"), bs("1")))
	b.PutLogData([]byte("skipped"))
	b.DeleteCF(family(1), []byte("d"))

	rec := &plainRecorder{}
	require.NoError(t, b.Iterate(rec))
	require.Len(t, rec.ops, 2)

	require.Equal(t, "put", rec.ops[0].Kind)
	require.Equal(t, []byte("e"), rec.ops[0].Key)
	cols, err := widecolumn.Decode(rec.ops[0].Value)
	require.NoError(t, err)
	require.Equal(t, widecolumn.Columns{{Name: []byte("a"), Value: []byte("1")}}, cols)

	require.Equal(t, op{Kind: "delete", Key: []byte("d")}, rec.ops[1])
}

func TestPlainVisitorRejectsRangeDeletion(t *testing.T) {
	b := batch.New()
	b.Put([]byte("a"), []byte("1"))
	b.DeleteRange([]byte("a"), []byte("z"))

	rec := &plainRecorder{}
	err := b.Iterate(rec)
	require.ErrorIs(t, err, common.ErrInvalidArgument)
	require.Len(t, rec.ops, 1)
}

func TestPutEntityMismatchLeavesBatchUnchanged(t *testing.T) {
	b := batch.New()
	b.Put([]byte("k"), []byte("v"))
	before := b.Data()

	err := b.PutEntityCF(family(1), []byte("v1111"), bs("a", "b", "c"), bs("1", "2"))
	require.ErrorIs(t, err, common.ErrInvalidArgument)
	require.Equal(t, 1, b.Len())
	require.Equal(t, before, b.Data())

	err = b.PutEntity([]byte("v1111"), bs("a", "a"), bs("1", "2"))
	require.ErrorIs(t, err, common.ErrInvalidArgument)
	require.Equal(t, before, b.Data())
}

func TestIterateDoesNotMutate(t *testing.T) {
	b := batch.New()
	b.Put([]byte("k"), []byte("v"))
	before := b.Data()

	require.NoError(t, b.Iterate(&plainRecorder{}))
	require.Equal(t, before, b.Data())
}
