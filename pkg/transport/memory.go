package transport

import "io"

// Memory is an in-process full-duplex Stream backed by two io.Pipes,
// used by dispatcher tests in place of a real serial link.
type Memory struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// Pipe returns two connected Memory streams: writes to one arrive as
// reads on the other.
func Pipe() (a, b *Memory) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	a = &Memory{r: r1, w: w2}
	b = &Memory{r: r2, w: w1}
	return a, b
}

func (m *Memory) Read(p []byte) (int, error)  { return m.r.Read(p) }
func (m *Memory) Write(p []byte) (int, error) { return m.w.Write(p) }

func (m *Memory) Close() error {
	m.w.Close()
	return m.r.Close()
}
