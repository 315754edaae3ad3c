// Package arena implements the fixed-size bump allocator that backs
// the model graph, weights, inference scratch, and training state
// (spec.md §4.3). Unlike the growable chunked allocator it is
// grounded on (a bump allocator over appended chunks), this one is a
// single fixed-size region: the spec requires a hard ceiling on model
// memory, not unbounded growth.
package arena

import "errors"

// Align is the alignment every allocation is rounded up to.
const Align = 4

// ErrOverflow is returned when an allocation would exceed the arena's
// capacity. It is recoverable: the arena's prior allocations remain
// intact and valid.
var ErrOverflow = errors.New("arena: out of memory")

// Arena is a bump allocator over a single pre-sized byte region. It is
// single-threaded by contract (spec.md §4.3): the worker owns it, and
// the dispatcher must never call into it while an inference or
// training step is in flight.
type Arena struct {
	buf    []byte
	offset int
}

// New creates an Arena backed by a freshly allocated region of size
// bytes.
func New(size int) *Arena {
	return &Arena{buf: make([]byte, size)}
}

// Size returns the arena's total capacity in bytes.
func (a *Arena) Size() int { return len(a.buf) }

// Used returns the current bump offset.
func (a *Arena) Used() int { return a.offset }

// Remaining returns the number of bytes still available.
func (a *Arena) Remaining() int { return len(a.buf) - a.offset }

// Alloc bump-allocates size bytes, 4-byte aligned, and returns a slice
// viewing that region of the arena's backing array. The slice is only
// valid until the arena is Reset or ResetTo'd past its offset.
func (a *Arena) Alloc(size int) ([]byte, error) {
	aligned := (a.offset + Align - 1) &^ (Align - 1)
	if aligned+size > len(a.buf) {
		return nil, ErrOverflow
	}
	out := a.buf[aligned : aligned+size]
	end := aligned + ((size + Align - 1) &^ (Align - 1))
	if end > len(a.buf) {
		end = len(a.buf)
	}
	a.offset = end
	return out, nil
}

// AllocFloat32s bump-allocates a []float32 of n elements backed by the
// arena, for weight/gradient/activation buffers.
func (a *Arena) AllocFloat32s(n int) ([]float32, error) {
	raw, err := a.Alloc(n * 4)
	if err != nil {
		return nil, err
	}
	return bytesToFloat32Slice(raw), nil
}

// Mark captures the current bump offset so the caller can later
// ResetTo it, releasing everything allocated since. Used by inference
// to pop its scratch buffer after producing output (spec.md §4.4.2).
func (a *Arena) Mark() int { return a.offset }

// ResetTo rewinds the bump offset to a previously captured mark. It
// never shrinks below 0 and never validates that mark was actually
// produced by this arena's Mark — callers are trusted, as in the
// teacher's bulk-deallocation pattern.
func (a *Arena) ResetTo(mark int) {
	if mark < 0 {
		mark = 0
	}
	if mark > len(a.buf) {
		mark = len(a.buf)
	}
	a.offset = mark
}

// Reset rewinds the bump offset to zero, releasing the entire arena.
// Called before loading a new model.
func (a *Arena) Reset() {
	a.offset = 0
}
