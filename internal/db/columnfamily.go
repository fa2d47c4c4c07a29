package db

import (
	"encoding/binary"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"widekv/internal/batch"
	"widekv/internal/common"
)

const DefaultColumnFamilyName = "default"

// ColumnFamilyHandle is an opaque token for one column family. It satisfies
// batch.ColumnFamily. A nil handle means the default family.
type ColumnFamilyHandle struct {
	id   uint32
	name string
}

var _ batch.ColumnFamily = (*ColumnFamilyHandle)(nil)

func (h *ColumnFamilyHandle) ID() uint32 {
	if h == nil {
		return batch.DefaultColumnFamilyID
	}
	return h.id
}

func (h *ColumnFamilyHandle) Name() string {
	if h == nil {
		return DefaultColumnFamilyName
	}
	return h.name
}

// familyToken keeps a nil handle from turning into a non-nil interface.
func familyToken(cf *ColumnFamilyHandle) batch.ColumnFamily {
	if cf == nil {
		return nil
	}
	return cf
}

// CreateColumnFamily registers a new family and persists it.
func (d *DB) CreateColumnFamily(name string) (*ColumnFamilyHandle, error) {
	if name == "" {
		return nil, common.InvalidArgumentf("db: empty column family name")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, common.ErrClosed
	}
	if _, ok := d.families[name]; ok {
		return nil, common.InvalidArgumentf("db: column family %q already exists", name)
	}

	h := &ColumnFamilyHandle{id: d.nextCFID, name: name}

	var idBuf, nextBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], h.id)
	binary.BigEndian.PutUint32(nextBuf[:], h.id+1)

	b := d.pdb.NewBatch()
	defer b.Close()
	if err := b.Set(familyMetaKey(name), idBuf[:], nil); err != nil {
		return nil, common.EngineFailure(err, "create column family")
	}
	if err := b.Set(metaNextFamilyID, nextBuf[:], nil); err != nil {
		return nil, common.EngineFailure(err, "create column family")
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return nil, common.EngineFailure(err, "create column family")
	}

	d.nextCFID++
	d.families[name] = h
	d.byID[h.id] = h
	common.Engine.Info().Str("cf", name).Uint32("id", h.id).Msg("created column family")
	return h, nil
}

// ColumnFamily returns the handle for an existing family.
func (d *DB) ColumnFamily(name string) (*ColumnFamilyHandle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h, ok := d.families[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "column family %q", name)
	}
	return h, nil
}

func (d *DB) DefaultColumnFamily() *ColumnFamilyHandle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byID[batch.DefaultColumnFamilyID]
}

// ColumnFamilies lists family names in sorted order.
func (d *DB) ColumnFamilies() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.families))
	for name := range d.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve maps a handle to its id, rejecting handles this DB never issued.
func (d *DB) resolve(cf *ColumnFamilyHandle) (uint32, error) {
	id := cf.ID()
	if !d.hasFamily(id) {
		return 0, common.InvalidArgumentf("db: unknown column family %d", id)
	}
	return id, nil
}

func (d *DB) hasFamily(id uint32) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byID[id]
	return ok
}
