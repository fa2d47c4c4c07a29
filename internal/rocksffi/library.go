//go:build darwin || linux

// Package rocksffi applies WriteBatch blobs to a real RocksDB and reads
// wide-column entities back, by loading librocksdb at runtime through purego.
// No cgo toolchain is needed; the library must export the wide-column C API
// (rocksdb_get_entity_cf and the rocksdb_*widecolumns_* accessors).
package rocksffi

import (
	"os"
	"runtime"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/ebitengine/purego"

	"widekv/internal/common"
)

// EnvLibrary names the environment variable consulted by DefaultLibraryPath.
const EnvLibrary = "ROCKSDB_LIB"

// Note: all pointer parameters use uintptr because purego on ARM64 doesn't
// support slices.
type functions struct {
	free func(p uintptr)

	optionsCreate                         func() uintptr
	optionsDestroy                        func(opts uintptr)
	optionsSetCreateIfMissing             func(opts uintptr, v uint8)
	optionsSetCreateMissingColumnFamilies func(opts uintptr, v uint8)

	writeOptionsCreate  func() uintptr
	writeOptionsDestroy func(opts uintptr)
	readOptionsCreate   func() uintptr
	readOptionsDestroy  func(opts uintptr)

	openColumnFamilies        func(opts uintptr, name string, n int32, names, cfOpts, handles, errptr uintptr) uintptr
	listColumnFamilies        func(opts uintptr, name string, n, errptr uintptr) uintptr
	listColumnFamiliesDestroy func(list, n uintptr)
	close                     func(db uintptr)

	createColumnFamily  func(db, opts uintptr, name string, errptr uintptr) uintptr
	columnFamilyDestroy func(cf uintptr)
	columnFamilyID      func(cf uintptr) uint32

	writeBatchCreateFrom func(rep, size uintptr) uintptr
	writeBatchData       func(b, size uintptr) uintptr
	writeBatchDestroy    func(b uintptr)
	write                func(db, opts, b, errptr uintptr)

	getEntityCF func(db, opts, cf, key, keyLen, errptr uintptr) uintptr

	pinnableDestroy func(v uintptr)
	pinnableSize    func(v uintptr) uintptr
	pinnableName    func(v, n, size uintptr) uintptr
	pinnableValue   func(v, n, size uintptr) uintptr

	columnsDestroy func(v uintptr)
	columnsSize    func(v uintptr) uintptr
	columnsName    func(v, n, size uintptr) uintptr
	columnsValue   func(v, n, size uintptr) uintptr

	iterCreateCF    func(db, opts, cf uintptr) uintptr
	iterDestroy     func(it uintptr)
	iterSeekToFirst func(it uintptr)
	iterValid       func(it uintptr) uint8
	iterNext        func(it uintptr)
	iterKey         func(it, size uintptr) uintptr
	iterColumns     func(it uintptr) uintptr
	iterGetError    func(it, errptr uintptr)
}

// Library is a loaded librocksdb.
type Library struct {
	path   string
	handle uintptr
	fn     functions
}

// DefaultLibraryPath returns $ROCKSDB_LIB, or the platform's conventional
// shared library name.
func DefaultLibraryPath() string {
	if p := os.Getenv(EnvLibrary); p != "" {
		return p
	}
	if runtime.GOOS == "darwin" {
		return "librocksdb.dylib"
	}
	return "librocksdb.so"
}

// Load opens the shared library at path and resolves every symbol the
// package uses. A missing symbol is reported as an error instead of a panic.
func Load(path string) (lib *Library, err error) {
	if path == "" {
		path = DefaultLibraryPath()
	}
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, common.EngineFailure(err, "dlopen "+path)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = purego.Dlclose(handle)
			lib, err = nil, common.EngineFailure(errors.Newf("%v", r), "load "+path)
		}
	}()

	lib = &Library{path: path, handle: handle}
	f := &lib.fn
	for _, s := range []struct {
		ptr  any
		name string
	}{
		{&f.free, "rocksdb_free"},
		{&f.optionsCreate, "rocksdb_options_create"},
		{&f.optionsDestroy, "rocksdb_options_destroy"},
		{&f.optionsSetCreateIfMissing, "rocksdb_options_set_create_if_missing"},
		{&f.optionsSetCreateMissingColumnFamilies, "rocksdb_options_set_create_missing_column_families"},
		{&f.writeOptionsCreate, "rocksdb_writeoptions_create"},
		{&f.writeOptionsDestroy, "rocksdb_writeoptions_destroy"},
		{&f.readOptionsCreate, "rocksdb_readoptions_create"},
		{&f.readOptionsDestroy, "rocksdb_readoptions_destroy"},
		{&f.openColumnFamilies, "rocksdb_open_column_families"},
		{&f.listColumnFamilies, "rocksdb_list_column_families"},
		{&f.listColumnFamiliesDestroy, "rocksdb_list_column_families_destroy"},
		{&f.close, "rocksdb_close"},
		{&f.createColumnFamily, "rocksdb_create_column_family"},
		{&f.columnFamilyDestroy, "rocksdb_column_family_handle_destroy"},
		{&f.columnFamilyID, "rocksdb_column_family_handle_get_id"},
		{&f.writeBatchCreateFrom, "rocksdb_writebatch_create_from"},
		{&f.writeBatchData, "rocksdb_writebatch_data"},
		{&f.writeBatchDestroy, "rocksdb_writebatch_destroy"},
		{&f.write, "rocksdb_write"},
		{&f.getEntityCF, "rocksdb_get_entity_cf"},
		{&f.pinnableDestroy, "rocksdb_pinnablewidecolumns_destroy"},
		{&f.pinnableSize, "rocksdb_pinnablewidecolumns_size"},
		{&f.pinnableName, "rocksdb_pinnablewidecolumns_name"},
		{&f.pinnableValue, "rocksdb_pinnablewidecolumns_value"},
		{&f.columnsDestroy, "rocksdb_widecolumns_destroy"},
		{&f.columnsSize, "rocksdb_widecolumns_size"},
		{&f.columnsName, "rocksdb_widecolumns_name"},
		{&f.columnsValue, "rocksdb_widecolumns_value"},
		{&f.iterCreateCF, "rocksdb_create_iterator_cf"},
		{&f.iterDestroy, "rocksdb_iter_destroy"},
		{&f.iterSeekToFirst, "rocksdb_iter_seek_to_first"},
		{&f.iterValid, "rocksdb_iter_valid"},
		{&f.iterNext, "rocksdb_iter_next"},
		{&f.iterKey, "rocksdb_iter_key"},
		{&f.iterColumns, "rocksdb_iter_columns"},
		{&f.iterGetError, "rocksdb_iter_get_error"},
	} {
		purego.RegisterLibFunc(s.ptr, handle, s.name)
	}

	common.FFI.Info().Str("path", path).Msg("loaded rocksdb")
	return lib, nil
}

// Close unloads the library. Databases opened from it must be closed first.
func (l *Library) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return common.EngineFailure(err, "dlclose")
}

func (l *Library) Path() string { return l.path }

// call runs fn with a fresh errptr and converts a reported message into an
// engine failure.
func (l *Library) call(op string, fn func(errptr uintptr)) error {
	var msg uintptr
	fn(uintptr(unsafe.Pointer(&msg)))
	if msg == 0 {
		return nil
	}
	text := cString(msg)
	l.fn.free(msg)
	if isNotFoundStatus(text) {
		return errors.Wrapf(common.ErrNotFound, "%s: %s", op, text)
	}
	return common.EngineFailure(errors.New(text), op)
}

// isNotFoundStatus reports whether msg is the ToString form of a NotFound
// status.
func isNotFoundStatus(msg string) bool {
	return strings.HasPrefix(msg, "NotFound: ")
}

// cString copies a NUL-terminated C string.
func cString(p uintptr) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

// view borrows n bytes of engine memory without copying.
func view(p, n uintptr) []byte {
	if p == 0 || n == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

// slicePtr returns a pointer to the first element of a byte slice, or a
// dummy non-null pointer for an empty one.
func slicePtr(s []byte) uintptr {
	if len(s) == 0 {
		return uintptr(unsafe.Pointer(&struct{}{}))
	}
	return uintptr(unsafe.Pointer(&s[0]))
}
