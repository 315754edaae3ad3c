package model

import (
	"encoding/binary"
	"hash/crc32"
	"math"
)

// Magic is the .aif32 V3 magic number, 0x54525053, which reads as the
// ASCII bytes "SPRT" little-endian (spec.md §3, §6).
const Magic uint32 = 0x54525053

// SupportedVersion is the only .aif32 version this interpreter loads.
const SupportedVersion uint8 = 3

const (
	headerSize     = 32
	descriptorSize = 16
	nameSize       = 16
)

// Header is the parsed 32-byte .aif32 header.
type Header struct {
	Magic             uint32
	Version           uint8
	LayerCount        uint16
	TotalWeightsSize  uint32
	WeightsCRC32      uint32
	Name              [nameSize]byte
}

// NameString returns Name trimmed at the first NUL byte.
func (h Header) NameString() string {
	for i, b := range h.Name {
		if b == 0 {
			return string(h.Name[:i])
		}
	}
	return string(h.Name[:])
}

func parseHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, &ModelError{Op: "parse header", Err: ErrTruncated}
	}
	var h Header
	h.Magic = binary.LittleEndian.Uint32(b[0:4])
	h.Version = b[4]
	// b[5] reserved
	h.LayerCount = binary.LittleEndian.Uint16(b[6:8])
	h.TotalWeightsSize = binary.LittleEndian.Uint32(b[8:12])
	h.WeightsCRC32 = binary.LittleEndian.Uint32(b[12:16])
	copy(h.Name[:], b[16:32])

	if h.Magic != Magic {
		return Header{}, &ModelError{Op: "parse header", Err: ErrBadMagic}
	}
	if h.Version != SupportedVersion {
		return Header{}, &ModelError{Op: "parse header", Err: ErrBadVersion}
	}
	return h, nil
}

func parseDescriptor(b []byte) descriptor {
	var d descriptor
	d.Kind = LayerKind(b[0])
	d.Flags = b[1]
	for i := 0; i < 6; i++ {
		d.Params[i] = binary.LittleEndian.Uint16(b[2+i*2 : 4+i*2])
	}
	return d
}

// weightsCRC32 computes the CRC32 used to validate the weight blob,
// per spec.md: "the standard reversed polynomial 0xEDB88320, initial
// value 0xFFFFFFFF, final XOR 0xFFFFFFFF" — exactly hash/crc32.IEEE.
func weightsCRC32(blob []byte) uint32 {
	return crc32.ChecksumIEEE(blob)
}

// --- encoding helpers, used by the host-side model builder/tests ---

// EncodeHeader serializes h into the canonical 32-byte on-disk layout.
func EncodeHeader(h Header) []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	b[4] = h.Version
	binary.LittleEndian.PutUint16(b[6:8], h.LayerCount)
	binary.LittleEndian.PutUint32(b[8:12], h.TotalWeightsSize)
	binary.LittleEndian.PutUint32(b[12:16], h.WeightsCRC32)
	copy(b[16:32], h.Name[:])
	return b
}

// LayerDescriptorInput describes one layer for EncodeFile.
type LayerDescriptorInput struct {
	Kind   LayerKind
	Flags  uint8
	Params [6]uint16
}

// EncodeDescriptor serializes one 16-byte layer descriptor.
func EncodeDescriptor(d LayerDescriptorInput) []byte {
	b := make([]byte, descriptorSize)
	b[0] = byte(d.Kind)
	b[1] = d.Flags
	for i := 0; i < 6; i++ {
		binary.LittleEndian.PutUint16(b[2+i*2:4+i*2], d.Params[i])
	}
	return b
}

// EncodeFile assembles a complete .aif32 V3 byte stream from a layer
// list and a flat weight blob, computing the header's size and CRC
// fields. It is the host-side counterpart of Load and is used by
// Snapshot and by tests to build models without hand-packing bytes.
func EncodeFile(name string, layers []LayerDescriptorInput, weights []float32) []byte {
	var nameBuf [nameSize]byte
	copy(nameBuf[:], name)

	weightBytes := float32sToBytes(weights)

	h := Header{
		Magic:            Magic,
		Version:          SupportedVersion,
		LayerCount:       uint16(len(layers)),
		TotalWeightsSize: uint32(len(weightBytes)),
		WeightsCRC32:     weightsCRC32(weightBytes),
		Name:             nameBuf,
	}

	out := make([]byte, 0, headerSize+len(layers)*descriptorSize+len(weightBytes))
	out = append(out, EncodeHeader(h)...)
	for _, l := range layers {
		out = append(out, EncodeDescriptor(l)...)
	}
	out = append(out, weightBytes...)
	return out
}

// decodeFloat32s reads n little-endian float32 values from b into dst.
func decodeFloat32s(b []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
}

func float32sToBytes(fs []float32) []byte {
	b := make([]byte, len(fs)*4)
	for i, f := range fs {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], math.Float32bits(f))
	}
	return b
}
