// Package compress encodes blob content with an optional LZ4 or ZSTD pass.
//
// Every encoded value carries a 9-byte header, so decoding never needs to know
// which algorithm the writer was configured with:
//
//	[Type uint8][UncompressedSize uint64 LE][payload...]
//
// Values that do not shrink by at least 10% are stored with TypeNone.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies the compression algorithm of an encoded value.
type Type uint8

const (
	// TypeNone stores the payload verbatim.
	TypeNone Type = 0
	// TypeLZ4 uses LZ4 block compression (fast).
	TypeLZ4 Type = 1
	// TypeZSTD uses ZSTD (better ratio).
	TypeZSTD Type = 2
)

const headerSize = 9

// lz4MaxRatio is the largest expansion an LZ4 block can encode: one
// literal/match token byte covers at most 255 output bytes.
const lz4MaxRatio = 255

// zstdPrealloc caps the output buffer reserved up front from the header size.
// DecodeAll grows the buffer past it when the frame really is larger.
const zstdPrealloc = 64 << 20

// ErrCorrupt is returned when an encoded value cannot be decoded.
var ErrCorrupt = errors.New("compress: corrupt value")

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeLZ4:
		return "lz4"
	case TypeZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ParseType maps a configuration name to a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "off":
		return TypeNone, nil
	case "lz4":
		return TypeLZ4, nil
	case "zstd":
		return TypeZSTD, nil
	default:
		return TypeNone, fmt.Errorf("compress: unknown type %q", name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Encode compresses data with t and prepends the header.
func Encode(data []byte, t Type) ([]byte, error) {
	var payload []byte
	switch t {
	case TypeNone:
	case TypeLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		// n == 0 means incompressible.
		payload = buf[:n]
	case TypeZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		payload = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown type %d", uint8(t))
	}

	if t == TypeNone || len(payload) == 0 || float64(len(payload)) > float64(len(data))*0.9 {
		t = TypeNone
		payload = data
	}

	out := make([]byte, headerSize+len(payload))
	out[0] = byte(t)
	binary.LittleEndian.PutUint64(out[1:], uint64(len(data)))
	copy(out[headerSize:], payload)
	return out, nil
}

// Decode reverses Encode.
func Decode(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	t := Type(data[0])
	size := binary.LittleEndian.Uint64(data[1:])
	payload := data[headerSize:]
	if size > math.MaxInt {
		return nil, fmt.Errorf("%w: size %d out of range", ErrCorrupt, size)
	}

	switch t {
	case TypeNone:
		if uint64(len(payload)) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		out := make([]byte, size)
		copy(out, payload)
		return out, nil

	case TypeLZ4:
		if size > uint64(len(payload))*lz4MaxRatio {
			return nil, fmt.Errorf("%w: size %d exceeds lz4 bound for %d bytes", ErrCorrupt, size, len(payload))
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint64(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil

	case TypeZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(payload, make([]byte, 0, min(size, zstdPrealloc)))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint64(len(out)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrCorrupt, uint8(t))
	}
}

// SizeOf returns the uncompressed size recorded in an encoded value's header.
func SizeOf(data []byte) (int64, error) {
	if len(data) < headerSize {
		return 0, ErrCorrupt
	}
	return int64(binary.LittleEndian.Uint64(data[1:])), nil
}
