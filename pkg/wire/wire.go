// Package wire holds the small little-endian payload encode/decode
// helpers shared by the dispatcher and the worker, so both sides of
// the command queue agree on one encoding without importing each
// other.
package wire

import (
	"encoding/binary"
	"math"
)

// DecodeF32s reads consecutive little-endian float32 values from b.
func DecodeF32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return out
}

// EncodeF32s writes fs as consecutive little-endian float32 values.
func EncodeF32s(fs []float32) []byte {
	b := make([]byte, len(fs)*4)
	for i, f := range fs {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], math.Float32bits(f))
	}
	return b
}

// EncodeF32 writes a single little-endian float32.
func EncodeF32(f float32) []byte {
	return EncodeF32s([]float32{f})
}

// DecodeF32 reads a single little-endian float32 from the first 4
// bytes of b.
func DecodeF32(b []byte) float32 {
	return DecodeF32s(b[:4])[0]
}

// EncodeFilenames builds the length-prefixed filename list spec.md §6
// names for AI_LIST/MODEL_LIST: [len:u8][name bytes]... terminated by
// a zero length byte.
func EncodeFilenames(names []string) []byte {
	out := make([]byte, 0, 32)
	for _, n := range names {
		out = append(out, byte(len(n)))
		out = append(out, n...)
	}
	out = append(out, 0x00)
	return out
}

// DecodeFilenames parses the [len:u8][name bytes]...0x00 encoding
// EncodeFilenames produces, for host tooling reading an AI_LIST or
// MODEL_LIST response.
func DecodeFilenames(b []byte) []string {
	var names []string
	i := 0
	for i < len(b) {
		n := int(b[i])
		i++
		if n == 0 {
			break
		}
		if i+n > len(b) {
			break
		}
		names = append(names, string(b[i:i+n]))
		i += n
	}
	return names
}
