package db

import "encoding/binary"

// Key layout inside pebble:
//
//	meta:  0x00 + name
//	data:  0x01 + cfID(4, big-endian) + user key
//
// Data values carry a one byte tag so plain values and entities can share a
// family.
const (
	prefixMeta byte = iota
	prefixData
)

const (
	valueTagPlain  byte = 0x01
	valueTagEntity byte = 0x02
)

var (
	metaLastSequence = metaKey("last-sequence")
	metaNextFamilyID = metaKey("next-cf-id")
	metaFamilyPrefix = metaKey("cf/")
)

func metaKey(name string) []byte {
	return append([]byte{prefixMeta}, name...)
}

func familyMetaKey(name string) []byte {
	return append(append([]byte{}, metaFamilyPrefix...), name...)
}

func familyPrefix(cf uint32) []byte {
	var p [5]byte
	p[0] = prefixData
	binary.BigEndian.PutUint32(p[1:], cf)
	return p[:]
}

// familyBounds returns the [lower, upper) pebble key range of a family.
func familyBounds(cf uint32) (lower, upper []byte) {
	lower = familyPrefix(cf)
	if cf == ^uint32(0) {
		return lower, []byte{prefixData + 1}
	}
	return lower, familyPrefix(cf + 1)
}

// prefixUpperBound returns the smallest key greater than every key with
// prefix p. p must not end in 0xff.
func prefixUpperBound(p []byte) []byte {
	out := append([]byte{}, p...)
	out[len(out)-1]++
	return out
}

func dataKey(cf uint32, key []byte) []byte {
	out := make([]byte, 0, 5+len(key))
	out = append(out, familyPrefix(cf)...)
	return append(out, key...)
}

func userKey(k []byte) []byte {
	return k[5:]
}

func tagValue(tag byte, payload []byte) []byte {
	out := make([]byte, 0, 1+len(payload))
	out = append(out, tag)
	return append(out, payload...)
}
