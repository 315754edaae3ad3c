// Package industrial implements the signal-processing primitives of
// spec.md §3/§6 (commands 0xA0-0xA7): a fixed-capacity circular FIFO of
// samples plus baseline/delta/correlate helpers.
package industrial

import (
	"errors"
	"math"
)

// Capacity is the fixed depth of the industrial buffer (spec.md §3).
const Capacity = 60

// ErrNoBaseline is returned by Delta when CaptureBaseline has not run.
var ErrNoBaseline = errors.New("industrial: no baseline captured")

// ErrEmptyInput is returned by Correlate when either series is empty.
var ErrEmptyInput = errors.New("industrial: empty reference or buffer")

// Buffer is a circular FIFO of IEEE-754 samples with an optional
// captured baseline mean.
type Buffer struct {
	samples [Capacity]float32
	head    int // index of the oldest sample
	count   int

	haveBaseline bool
	baseline     float32
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Write appends one sample, evicting the oldest on overflow.
func (b *Buffer) Write(sample float32) {
	if b.count < Capacity {
		idx := (b.head + b.count) % Capacity
		b.samples[idx] = sample
		b.count++
		return
	}
	b.samples[b.head] = sample
	b.head = (b.head + 1) % Capacity
}

// Len reports the number of samples currently buffered (<= Capacity).
func (b *Buffer) Len() int { return b.count }

// Snapshot returns a copy of the buffered samples, oldest first.
func (b *Buffer) Snapshot() []float32 {
	out := make([]float32, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.samples[(b.head+i)%Capacity]
	}
	return out
}

// Reset clears the buffer and any captured baseline.
func (b *Buffer) Reset() {
	b.head = 0
	b.count = 0
	b.haveBaseline = false
	b.baseline = 0
}

func (b *Buffer) mean() float32 {
	if b.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < b.count; i++ {
		sum += float64(b.samples[(b.head+i)%Capacity])
	}
	return float32(sum / float64(b.count))
}

// CaptureBaseline records the buffer's current mean as the baseline.
func (b *Buffer) CaptureBaseline() {
	b.baseline = b.mean()
	b.haveBaseline = true
}

// Delta returns the current mean minus the captured baseline.
func (b *Buffer) Delta() (float32, error) {
	if !b.haveBaseline {
		return 0, ErrNoBaseline
	}
	return b.mean() - b.baseline, nil
}

// Correlate computes the Pearson correlation coefficient between the
// buffered samples and reference, using min(len(reference), buffered
// count) samples from each, most-recent-aligned. Per spec.md §8, a
// reference shorter than the buffer uses the minimum length, and
// either series being empty is an error.
func (b *Buffer) Correlate(reference []float32) (float32, error) {
	if len(reference) == 0 || b.count == 0 {
		return 0, ErrEmptyInput
	}
	n := len(reference)
	if b.count < n {
		n = b.count
	}

	buffered := b.Snapshot()
	bufTail := buffered[len(buffered)-n:]
	refTail := reference[len(reference)-n:]

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += float64(bufTail[i])
		sumY += float64(refTail[i])
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := float64(bufTail[i]) - meanX
		dy := float64(refTail[i]) - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, nil
	}
	return float32(cov / math.Sqrt(varX*varY)), nil
}
