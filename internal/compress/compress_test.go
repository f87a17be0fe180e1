package compress

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	compressible := bytes.Repeat([]byte("segment postings "), 512)
	random := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	tests := []struct {
		name string
		typ  Type
		data []byte
		want Type
	}{
		{name: "none", typ: TypeNone, data: compressible, want: TypeNone},
		{name: "lz4", typ: TypeLZ4, data: compressible, want: TypeLZ4},
		{name: "zstd", typ: TypeZSTD, data: compressible, want: TypeZSTD},
		{name: "lz4 incompressible", typ: TypeLZ4, data: random, want: TypeNone},
		{name: "zstd incompressible", typ: TypeZSTD, data: random, want: TypeNone},
		{name: "empty", typ: TypeZSTD, data: []byte{}, want: TypeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encode(tt.data, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Type(enc[0]))

			size, err := SizeOf(enc)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.data)), size)

			dec, err := Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, tt.data, dec)
		})
	}
}

func TestEncode_Shrinks(t *testing.T) {
	data := bytes.Repeat([]byte{'a'}, 64*1024)
	for _, typ := range []Type{TypeLZ4, TypeZSTD} {
		enc, err := Encode(data, typ)
		require.NoError(t, err)
		assert.Less(t, len(enc), len(data)/4, typ.String())
	}
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)

	enc, err := Encode(bytes.Repeat([]byte("x"), 1024), TypeLZ4)
	require.NoError(t, err)
	enc[0] = 9
	_, err = Decode(enc)
	assert.ErrorIs(t, err, ErrCorrupt)

	raw, err := Encode([]byte("abc"), TypeNone)
	require.NoError(t, err)
	_, err = Decode(raw[:len(raw)-1])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecode_OversizedHeader(t *testing.T) {
	for _, typ := range []Type{TypeNone, TypeLZ4, TypeZSTD} {
		for _, size := range []uint64{1 << 63, 1 << 40} {
			data := make([]byte, headerSize+4)
			data[0] = byte(typ)
			binary.LittleEndian.PutUint64(data[1:], size)

			var err error
			require.NotPanics(t, func() { _, err = Decode(data) }, "%s size=%d", typ, size)
			assert.ErrorIs(t, err, ErrCorrupt, "%s size=%d", typ, size)
		}
	}
}

func TestParseType(t *testing.T) {
	for name, want := range map[string]Type{"": TypeNone, "none": TypeNone, "LZ4": TypeLZ4, "zstd": TypeZSTD} {
		got, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseType("brotli")
	assert.Error(t, err)
}
