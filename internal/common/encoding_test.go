package common

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadUint64(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
	}{
		{"Zero", 0},
		{"One", 1},
		{"Max", math.MaxUint64},
		{"Large", 1234567890123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := WriteUint64(&buf, tt.value)
			require.NoError(t, err)
			require.Equal(t, 8, n)

			result, err := ReadUint64(&buf)
			require.NoError(t, err)
			require.Equal(t, tt.value, result)
		})
	}
}

func TestReadUint64Error(t *testing.T) {
	_, err := ReadUint64(bytes.NewBuffer([]byte{1, 2, 3}))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadUint64(bytes.NewBuffer(nil))
	require.Equal(t, io.EOF, err)
}

func TestReadBytesZeroLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})
	result, err := ReadBytes(buf, 0)
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, 3, buf.Len())
}

func TestReadBytesError(t *testing.T) {
	_, err := ReadBytes(bytes.NewBuffer([]byte{1, 2, 3}), 10)
	require.Error(t, err)
}

func TestLengthPrefixed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"SingleByte", []byte{0x42}},
		{"SmallData", []byte("hello")},
		{"LongerThanOneVarintByte", bytes.Repeat([]byte("x"), 300)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := AppendLengthPrefixed([]byte{0xAA}, tt.data)
			require.Equal(t, byte(0xAA), enc[0])

			s, rest, ok := DecodeLengthPrefixed(enc[1:])
			require.True(t, ok)
			require.Empty(t, rest)
			require.Equal(t, len(tt.data), len(s))
			require.True(t, bytes.Equal(tt.data, s))
		})
	}
}

func TestDecodeLengthPrefixedTruncated(t *testing.T) {
	enc := AppendLengthPrefixed(nil, []byte("hello"))

	_, _, ok := DecodeLengthPrefixed(enc[:3])
	require.False(t, ok)

	_, _, ok = DecodeLengthPrefixed(nil)
	require.False(t, ok)

	// Continuation bit set on the only byte.
	_, _, ok = DecodeLengthPrefixed([]byte{0x80})
	require.False(t, ok)
}

func TestDecodeUvarint32(t *testing.T) {
	enc := AppendUvarint(nil, 300)
	v, rest, ok := DecodeUvarint32(append(enc, 7))
	require.True(t, ok)
	require.Equal(t, uint32(300), v)
	require.Equal(t, []byte{7}, rest)

	_, _, ok = DecodeUvarint32(AppendUvarint(nil, math.MaxUint32+1))
	require.False(t, ok)
}

func TestVarintMatchesLittleEndianGroups(t *testing.T) {
	// 300 = 0b1_0010_1100 -> 0xAC 0x02
	require.Equal(t, []byte{0xAC, 0x02}, AppendUvarint(nil, 300))
}
