package common

import (
	"encoding/binary"
	"io"
	"math"
)

func WriteUint64(w io.Writer, v uint64) (int, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.Write(buf[:])
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func ReadBytes(r io.Reader, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// AppendUvarint appends v in LEB128 varint form.
func AppendUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// AppendLengthPrefixed appends len(s) as a varint followed by s.
func AppendLengthPrefixed(dst, s []byte) []byte {
	dst = AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// DecodeUvarint32 reads a varint that must fit in 32 bits.
// ok is false on truncation or overflow.
func DecodeUvarint32(src []byte) (v uint32, rest []byte, ok bool) {
	u, n := binary.Uvarint(src)
	if n <= 0 || u > math.MaxUint32 {
		return 0, nil, false
	}
	return uint32(u), src[n:], true
}

// DecodeLengthPrefixed is the inverse of AppendLengthPrefixed. The returned
// slice aliases src.
func DecodeLengthPrefixed(src []byte) (s, rest []byte, ok bool) {
	u, n := binary.Uvarint(src)
	if n <= 0 {
		return nil, nil, false
	}
	src = src[n:]
	if u > uint64(len(src)) {
		return nil, nil, false
	}
	return src[:u:u], src[u:], true
}
