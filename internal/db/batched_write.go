package db

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cockroachdb/pebble"

	"widekv/internal/batch"
	"widekv/internal/common"
	"widekv/internal/widecolumn"
)

// writeRequest represents a pending write operation waiting for group commit.
type writeRequest struct {
	batch    *batch.WriteBatch
	resultCh chan error
}

// collectBatch blocks for the first request, then greedily collects
// additional requests that are immediately available (up to MaxBatchSize).
// It reports false once the DB is closing.
func (d *DB) collectBatch() ([]*writeRequest, bool) {
	group := make([]*writeRequest, 0, d.Opts.MaxBatchSize)

	select {
	case first := <-d.writeChan:
		group = append(group, first)
	case <-d.quit:
		return nil, false
	}

	for len(group) < d.Opts.MaxBatchSize {
		select {
		case req := <-d.writeChan:
			group = append(group, req)
		default:
			return group, true
		}
	}
	return group, true
}

// processBatch stages each request into its own pebble batch so a malformed
// request fails alone, journals the group, then commits every staged request
// with a single sync. A journal failure fails the group before anything is
// committed.
// Each request receives exactly one result.
func (d *DB) processBatch(reqs []*writeRequest) {
	start := time.Now()

	group := d.pdb.NewBatch()
	defer group.Close()

	seq := d.lastSeq.Load()
	applied := make([]*writeRequest, 0, len(reqs))
	stamped := make([]*batch.WriteBatch, 0, len(reqs))

	for _, req := range reqs {
		staged, err := d.stage(req.batch)
		if err != nil {
			req.resultCh <- err
			continue
		}
		var cp *batch.WriteBatch
		if d.Opts.Journal != nil {
			if cp, err = batch.FromData(req.batch.Data()); err != nil {
				_ = staged.Close()
				req.resultCh <- err
				continue
			}
			cp.SetSequence(seq + 1)
		}
		err = group.Apply(staged, nil)
		_ = staged.Close()
		if err != nil {
			req.resultCh <- common.EngineFailure(err, "apply batch")
			continue
		}

		if cp != nil {
			stamped = append(stamped, cp)
		}
		seq += uint64(req.batch.Len())
		applied = append(applied, req)
	}

	if len(applied) == 0 {
		return
	}

	if d.Opts.Journal != nil {
		if err := d.Opts.Journal.Append(context.Background(), stamped...); err != nil {
			err = common.EngineFailure(err, "journal append")
			common.Journal.Error().Err(err).Uint64("seq", seq).Msg("journal append failed")
			for _, req := range applied {
				req.resultCh <- err
			}
			return
		}
	}

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], seq)
	err := group.Set(metaLastSequence, seqBuf[:], nil)
	if err == nil {
		err = group.Commit(d.writeOpts)
	}
	if err != nil {
		err = common.EngineFailure(err, "commit")
		common.Engine.Error().Err(err).Int("requests", len(applied)).Msg("group commit failed")
		for _, req := range applied {
			req.resultCh <- err
		}
		return
	}
	d.lastSeq.Store(seq)

	for _, req := range applied {
		req.resultCh <- err
	}
	common.LogDuration(common.Engine, start, "group commit requests=%d seq=%d", len(applied), seq)
}

// stage decodes b into a fresh pebble batch.
func (d *DB) stage(b *batch.WriteBatch) (*pebble.Batch, error) {
	staged := d.pdb.NewBatch()
	if err := b.Iterate(&applier{d: d, b: staged}); err != nil {
		_ = staged.Close()
		return nil, err
	}
	return staged, nil
}

// groupCommitLoop is the main batching coordinator. It runs in a background
// goroutine until Close, then fails whatever is still queued.
func (d *DB) groupCommitLoop() {
	defer close(d.stopped)

	for {
		reqs, ok := d.collectBatch()
		if !ok {
			break
		}
		d.processBatch(reqs)
	}

	for {
		select {
		case req := <-d.writeChan:
			req.resultCh <- common.ErrClosed
		default:
			return
		}
	}
}

// applier replays a WriteBatch into a pebble batch.
type applier struct {
	d *DB
	b *pebble.Batch
}

var (
	_ batch.Visitor            = (*applier)(nil)
	_ batch.CFVisitor          = (*applier)(nil)
	_ batch.EntityVisitor      = (*applier)(nil)
	_ batch.RangeDeleteVisitor = (*applier)(nil)
)

func (a *applier) family(cf uint32) error {
	if !a.d.hasFamily(cf) {
		return common.InvalidArgumentf("db: unknown column family %d", cf)
	}
	return nil
}

func (a *applier) Put(key, value []byte) error {
	return a.PutCF(batch.DefaultColumnFamilyID, key, value)
}

func (a *applier) Delete(key []byte) error {
	return a.DeleteCF(batch.DefaultColumnFamilyID, key)
}

func (a *applier) PutCF(cf uint32, key, value []byte) error {
	if err := a.family(cf); err != nil {
		return err
	}
	return common.EngineFailure(a.b.Set(dataKey(cf, key), tagValue(valueTagPlain, value), nil), "stage put")
}

func (a *applier) DeleteCF(cf uint32, key []byte) error {
	if err := a.family(cf); err != nil {
		return err
	}
	return common.EngineFailure(a.b.Delete(dataKey(cf, key), nil), "stage delete")
}

func (a *applier) PutEntityCF(cf uint32, key []byte, columns widecolumn.Columns) error {
	if err := a.family(cf); err != nil {
		return err
	}
	enc, err := widecolumn.EncodeColumns(columns)
	if err != nil {
		return err
	}
	return common.EngineFailure(a.b.Set(dataKey(cf, key), tagValue(valueTagEntity, enc), nil), "stage entity")
}

func (a *applier) DeleteRangeCF(cf uint32, begin, end []byte) error {
	if err := a.family(cf); err != nil {
		return err
	}
	return common.EngineFailure(a.b.DeleteRange(dataKey(cf, begin), dataKey(cf, end), nil), "stage range delete")
}
