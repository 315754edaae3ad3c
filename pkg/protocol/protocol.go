// Package protocol implements the Sprite One wire framing: a stateful
// byte-oriented decoder, a pure-function encoder, and CRC32 validation.
package protocol

import (
	"errors"
	"hash/crc32"
)

const (
	// SyncByte begins every frame on the wire.
	SyncByte byte = 0xAA

	// MaxPayload is the largest payload a single frame can carry; the
	// LEN byte is 8 bits wide.
	MaxPayload = 255

	// minScratchBuffer is the smallest caller-owned payload buffer the
	// decoder will accept.
	minScratchBuffer = 256
)

// Status is the response STATUS byte (spec.md §6).
type Status byte

const (
	StatusOK       Status = 0x00
	StatusError    Status = 0x01
	StatusNotFound Status = 0x02
)

// Frame is a decoded request or response.
type Frame struct {
	Cmd     byte
	Status  Status // only meaningful when IsResponse is true
	Payload []byte // points into the decoder's scratch buffer; copy before reuse
	IsResponse bool
}

// Errors returned by the decoder. Protocol errors reset the decoder to
// AwaitSync and never carry a partial frame.
var (
	ErrCRC           = errors.New("protocol: crc mismatch")
	ErrTimeout       = errors.New("protocol: mid-frame timeout")
	ErrPayloadTooBig = errors.New("protocol: payload exceeds scratch buffer")
)

// crcTable is the standard reversed-polynomial CRC32 table (0xEDB88320),
// which is exactly crc32.IEEETable.
var crcTable = crc32.IEEETable

// state is the decoder's internal state machine position.
type state int

const (
	stateAwaitSync state = iota
	stateReadCmd
	stateReadStatus
	stateReadLen
	stateReadPayload
	stateReadCRC
)

// Decoder is a stateful, non-allocating streaming frame decoder. One
// Decoder handles one direction of one stream; a device speaking both
// request and response framing on the same bytes (a host, in tests)
// runs two independent Decoders.
//
// Feed is not safe for concurrent use — it owns the full state of one
// byte stream, matching the single-reader-goroutine ownership the
// dispatcher and worker assume.
type Decoder struct {
	expectStatus bool // true when decoding responses (STATUS byte present)
	st           state

	cmd    byte
	status Status
	length int
	crcBuf [4]byte
	crcPos int

	scratch []byte // caller-owned, len >= minScratchBuffer
	payLen  int

	running uint32 // incremental CRC32 over CMD..last payload byte
}

// NewDecoder builds a decoder that writes payload bytes into scratch.
// scratch must be at least 256 bytes and is reused across frames; its
// contents are only valid until the next call to Feed that completes
// or aborts a frame. Set expectStatus to true when decoding response
// frames (which carry a STATUS byte after CMD).
func NewDecoder(scratch []byte, expectStatus bool) (*Decoder, error) {
	if len(scratch) < minScratchBuffer {
		return nil, errors.New("protocol: scratch buffer must be >= 256 bytes")
	}
	return &Decoder{scratch: scratch, expectStatus: expectStatus, st: stateAwaitSync}, nil
}

// Feed advances the decoder by one byte. It returns a Frame with ok
// true when a complete, CRC-valid frame has just been emitted. It
// returns a non-nil error (and ok false) on a CRC mismatch; the
// decoder has already reset to AwaitSync in that case. Any other call
// returns ok false, err nil — the decoder is still mid-frame.
func (d *Decoder) Feed(b byte) (frame Frame, ok bool, err error) {
	switch d.st {
	case stateAwaitSync:
		if b == SyncByte {
			d.st = stateReadCmd
			d.running = crc32.Update(0xFFFFFFFF, crcTable, nil)
		}
		// any other byte outside a frame is discarded silently

	case stateReadCmd:
		d.cmd = b
		d.running = crc32.Update(d.running, crcTable, []byte{b})
		if d.expectStatus {
			d.st = stateReadStatus
		} else {
			d.st = stateReadLen
		}

	case stateReadStatus:
		d.status = Status(b)
		d.running = crc32.Update(d.running, crcTable, []byte{b})
		d.st = stateReadLen

	case stateReadLen:
		d.length = int(b)
		d.running = crc32.Update(d.running, crcTable, []byte{b})
		d.payLen = 0
		if d.length == 0 {
			d.st = stateReadCRC
			d.crcPos = 0
		} else if d.length > len(d.scratch) {
			d.reset()
			return Frame{}, false, ErrPayloadTooBig
		} else {
			d.st = stateReadPayload
		}

	case stateReadPayload:
		d.scratch[d.payLen] = b
		d.payLen++
		d.running = crc32.Update(d.running, crcTable, []byte{b})
		if d.payLen >= d.length {
			d.st = stateReadCRC
			d.crcPos = 0
		}

	case stateReadCRC:
		d.crcBuf[d.crcPos] = b
		d.crcPos++
		if d.crcPos == 4 {
			want := uint32(d.crcBuf[0]) | uint32(d.crcBuf[1])<<8 |
				uint32(d.crcBuf[2])<<16 | uint32(d.crcBuf[3])<<24
			got := d.running ^ 0xFFFFFFFF
			payLen := d.payLen
			d.reset()
			if got != want {
				return Frame{}, false, ErrCRC
			}
			return Frame{
				Cmd:        d.cmd,
				Status:     d.status,
				Payload:    d.scratch[:payLen],
				IsResponse: d.expectStatus,
			}, true, nil
		}
	}
	return Frame{}, false, nil
}

// Timeout resets the decoder as if a mid-frame inactivity timeout
// fired. Callers are responsible for measuring the >500ms window
// (spec.md §4.1); the decoder itself tracks no wall-clock time so it
// stays allocation-free and deterministic in tests.
func (d *Decoder) Timeout() error {
	if d.st == stateAwaitSync {
		return nil
	}
	d.reset()
	return ErrTimeout
}

// InFrame reports whether the decoder is mid-frame (for timeout logic).
func (d *Decoder) InFrame() bool { return d.st != stateAwaitSync }

func (d *Decoder) reset() {
	d.st = stateAwaitSync
	d.payLen = 0
	d.crcPos = 0
}

// EncodeRequest writes a request frame (no STATUS byte) to sink.
func EncodeRequest(sink ByteSink, cmd byte, payload []byte) error {
	return encode(sink, cmd, 0, payload, false)
}

// EncodeResponse writes a response frame (with STATUS byte) to sink.
func EncodeResponse(sink ByteSink, cmd byte, status Status, payload []byte) error {
	return encode(sink, cmd, status, payload, true)
}

// ByteSink is the minimal write surface the encoder needs; satisfied
// by io.Writer via WriterSink, or by anything a test wants to spy on.
type ByteSink interface {
	WriteByte(b byte) error
}

func encode(sink ByteSink, cmd byte, status Status, payload []byte, withStatus bool) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooBig
	}

	running := crc32.Update(0xFFFFFFFF, crcTable, nil)
	write := func(b byte) error {
		if err := sink.WriteByte(b); err != nil {
			return err
		}
		running = crc32.Update(running, crcTable, []byte{b})
		return nil
	}

	if err := sink.WriteByte(SyncByte); err != nil {
		return err
	}
	if err := write(cmd); err != nil {
		return err
	}
	if withStatus {
		if err := write(byte(status)); err != nil {
			return err
		}
	}
	if err := write(byte(len(payload))); err != nil {
		return err
	}
	for _, b := range payload {
		if err := write(b); err != nil {
			return err
		}
	}

	crc := running ^ 0xFFFFFFFF
	for i := 0; i < 4; i++ {
		if err := sink.WriteByte(byte(crc >> (8 * uint(i)))); err != nil {
			return err
		}
	}
	return nil
}
