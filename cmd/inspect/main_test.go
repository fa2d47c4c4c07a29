package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"widekv/internal/batch"
	"widekv/internal/common"
	"widekv/internal/journal"
)

func TestInspectBatchFile(t *testing.T) {
	b := batch.New()
	b.Put([]byte("k"), []byte("v"))
	require.NoError(t, b.PutEntity([]byte("e"), [][]byte{[]byte("a")}, [][]byte{[]byte("1")}))

	path := filepath.Join(t.TempDir(), "one.batch")
	require.NoError(t, os.WriteFile(path, b.Data(), 0o644))

	var out bytes.Buffer
	require.NoError(t, inspect(context.Background(), &out, path, true))
	require.Contains(t, out.String(), "header: seq=0 count=2")
	require.Contains(t, out.String(), "      12  PUT")
	require.Contains(t, out.String(), "ENTITY")
}

func TestInspectJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.journal")
	jl, err := journal.Open(path)
	require.NoError(t, err)

	b := batch.New()
	b.Delete([]byte("x"))
	b.SetSequence(7)
	require.NoError(t, jl.Append(context.Background(), b, b))
	require.NoError(t, jl.Close())

	var out bytes.Buffer
	require.NoError(t, inspect(context.Background(), &out, path, false))
	require.Contains(t, out.String(), "seq=7 count=1")
	require.Contains(t, out.String(), "Total batches: 2")
}

func TestInspectReportsCorruption(t *testing.T) {
	b := batch.New()
	b.Put([]byte("k"), []byte("v"))
	data := b.Data()

	path := filepath.Join(t.TempDir(), "bad.batch")
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0o644))

	var out bytes.Buffer
	err := inspect(context.Background(), &out, path, false)
	require.ErrorIs(t, err, common.ErrCorrupt)
}
