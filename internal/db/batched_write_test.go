package db_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"widekv/internal/batch"
	"widekv/internal/common"
	"widekv/internal/db"
)

func TestConcurrentWrites(t *testing.T) {
	d := openMem(t, db.WithMaxBatchSize(8))

	numWriters := 10
	writesPerWriter := 100

	var g errgroup.Group
	for w := 0; w < numWriters; w++ {
		writerID := w
		g.Go(func() error {
			for i := 0; i < writesPerWriter; i++ {
				key := []byte(fmt.Sprintf("writer%d_key%d", writerID, i))
				value := []byte(fmt.Sprintf("value%d", i))
				if err := d.Put(nil, key, value); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for w := 0; w < numWriters; w++ {
		for i := 0; i < writesPerWriter; i++ {
			key := []byte(fmt.Sprintf("writer%d_key%d", w, i))
			value, err := d.Get(nil, key)
			require.NoError(t, err, "Should find key %s", string(key))
			require.Equal(t, []byte(fmt.Sprintf("value%d", i)), value)
		}
	}
	require.Equal(t, uint64(numWriters*writesPerWriter), d.LastSequence())
}

// A bad batch in a group must not take its neighbours down with it.
func TestConcurrentWritesIsolateFailures(t *testing.T) {
	d := openMem(t)

	var wg sync.WaitGroup
	results := make([]error, 40)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := batch.New()
			b.Put([]byte(fmt.Sprintf("k%02d", i)), []byte("v"))
			if i%4 == 0 {
				b.PutCF(unknownFamily(99), []byte("x"), []byte("y"))
			}
			results[i] = d.Write(b)
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		key := []byte(fmt.Sprintf("k%02d", i))
		_, getErr := d.Get(nil, key)
		if i%4 == 0 {
			require.ErrorIs(t, err, common.ErrInvalidArgument)
			require.ErrorIs(t, getErr, db.ErrNotFound)
		} else {
			require.NoError(t, err)
			require.NoError(t, getErr)
		}
	}
	require.Equal(t, uint64(30), d.LastSequence())
}

func TestCloseWithConcurrentWriters(t *testing.T) {
	d, err := db.Open(db.WithInMemory(), db.WithSync(false))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				err := d.Put(nil, []byte(fmt.Sprintf("w%d_%d", w, i)), []byte("v"))
				if err != nil {
					require.ErrorIs(t, err, common.ErrClosed)
					return
				}
			}
		}(w)
	}
	require.NoError(t, d.Close())
	wg.Wait()
}
