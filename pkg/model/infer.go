package model

import (
	"math"

	"github.com/sprite-one/coprocessor/pkg/arena"
)

// maxOutputs bounds the static output buffer mentioned in spec.md
// §4.4.2 ("a static output buffer sized for up to 128 outputs").
const maxOutputs = 128

// Infer runs the forward pass over the loaded graph. It marks the
// arena, allocates each layer's output buffer from it in turn, and
// always rewinds the arena back to the pre-inference mark before
// returning — inference never grows the arena's steady-state usage
// (spec.md §4.4.2).
func (m *Model) Infer(inputs []float32) ([]float32, error) {
	if m.state == StateEmpty {
		return nil, &InferenceError{Err: ErrNoModelLoaded}
	}
	if len(m.layers) == 0 {
		return nil, &InferenceError{Err: ErrShapeMismatch}
	}
	switch {
	case len(inputs) == m.InputDim():
		// exact match, nothing to do
	case len(inputs) < m.InputDim():
		// legacy callers built for a narrower input layer send a short
		// vector; pad the missing tail with zeros rather than reject it.
		padded := make([]float32, m.InputDim())
		copy(padded, inputs)
		inputs = padded
	default:
		return nil, &InferenceError{Err: ErrShapeMismatch}
	}

	mark := m.arena.Mark()
	defer m.arena.ResetTo(mark)

	cur := inputs
	for _, l := range m.layers {
		if l.Kind == LayerInput {
			continue
		}
		out, err := m.forward(l, cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}

	if len(cur) > maxOutputs {
		return nil, &InferenceError{Err: ErrShapeMismatch}
	}
	result := make([]float32, len(cur))
	copy(result, cur)
	return result, nil
}

// forward computes one layer's output given its input, scratch for
// the result coming from the arena (released by the caller's mark).
func (m *Model) forward(l layerRecord, x []float32) ([]float32, error) {
	switch l.Kind {
	case LayerDense:
		return m.forwardDense(l, x)
	case LayerReLU:
		return forwardReLU(m.arena, x)
	case LayerSigmoid:
		return forwardSigmoid(m.arena, x)
	case LayerSoftmax:
		return forwardSoftmax(m.arena, x)
	case LayerConv2D:
		return m.forwardConv2D(l, x)
	case LayerMaxPool:
		return forwardMaxPool(m.arena, l, x)
	case LayerFlatten:
		return x, nil // row-major layout is unchanged; no-op
	default:
		return nil, &InferenceError{Err: ErrUnknownLayer}
	}
}

func (m *Model) forwardDense(l layerRecord, x []float32) ([]float32, error) {
	in := l.InShape.Size()
	if len(x) != in {
		return nil, &InferenceError{Err: ErrShapeMismatch}
	}
	neurons := l.OutShape.Size()
	w := l.Weights.slice(m.Weights)
	b := l.Bias.slice(m.Weights)

	y, err := m.arena.AllocFloat32s(neurons)
	if err != nil {
		return nil, &ModelError{Op: "infer", Err: ErrArenaOverflow}
	}
	for o := 0; o < neurons; o++ {
		sum := b[o]
		base := o * in
		for i := 0; i < in; i++ {
			sum += x[i] * w[base+i]
		}
		y[o] = sum
	}
	return y, nil
}

func forwardReLU(a *arena.Arena, x []float32) ([]float32, error) {
	y, err := a.AllocFloat32s(len(x))
	if err != nil {
		return nil, &ModelError{Op: "infer", Err: ErrArenaOverflow}
	}
	for i, v := range x {
		if v > 0 {
			y[i] = v
		}
	}
	return y, nil
}

func forwardSigmoid(a *arena.Arena, x []float32) ([]float32, error) {
	y, err := a.AllocFloat32s(len(x))
	if err != nil {
		return nil, &ModelError{Op: "infer", Err: ErrArenaOverflow}
	}
	for i, v := range x {
		y[i] = sigmoid(v)
	}
	return y, nil
}

func sigmoid(v float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(v))))
}

func forwardSoftmax(a *arena.Arena, x []float32) ([]float32, error) {
	y, err := a.AllocFloat32s(len(x))
	if err != nil {
		return nil, &ModelError{Op: "infer", Err: ErrArenaOverflow}
	}
	if len(x) == 0 {
		return y, nil
	}
	maxV := x[0]
	for _, v := range x[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - maxV))
		y[i] = float32(e)
		sum += e
	}
	if sum == 0 {
		return y, nil
	}
	for i := range y {
		y[i] = float32(float64(y[i]) / sum)
	}
	return y, nil
}

func (m *Model) forwardConv2D(l layerRecord, x []float32) ([]float32, error) {
	inC, inH, inW := l.InShape.CHW()
	outC, outH, outW := l.OutShape.CHW()
	p := l.Desc.conv2D()
	w := l.Weights.slice(m.Weights)
	b := l.Bias.slice(m.Weights)

	y, err := m.arena.AllocFloat32s(outC * outH * outW)
	if err != nil {
		return nil, &ModelError{Op: "infer", Err: ErrArenaOverflow}
	}

	for f := 0; f < outC; f++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				sum := b[f]
				for c := 0; c < inC; c++ {
					for ky := 0; ky < p.KH; ky++ {
						iy := oy*p.SH + ky - p.Pad
						if iy < 0 || iy >= inH {
							continue
						}
						for kx := 0; kx < p.KW; kx++ {
							ix := ox*p.SW + kx - p.Pad
							if ix < 0 || ix >= inW {
								continue
							}
							xv := x[(c*inH+iy)*inW+ix]
							wv := w[((f*inC+c)*p.KH+ky)*p.KW+kx]
							sum += xv * wv
						}
					}
				}
				y[(f*outH+oy)*outW+ox] = sum
			}
		}
	}
	return y, nil
}

func forwardMaxPool(a *arena.Arena, l layerRecord, x []float32) ([]float32, error) {
	inC, inH, inW := l.InShape.CHW()
	_, outH, outW := l.OutShape.CHW()
	p := l.Desc.maxPool()

	y, err := a.AllocFloat32s(inC * outH * outW)
	if err != nil {
		return nil, &ModelError{Op: "infer", Err: ErrArenaOverflow}
	}

	for c := 0; c < inC; c++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				var best float32
				found := false
				for ky := 0; ky < p.KH; ky++ {
					iy := oy*p.SH + ky - p.Pad
					if iy < 0 || iy >= inH {
						continue
					}
					for kx := 0; kx < p.KW; kx++ {
						ix := ox*p.SW + kx - p.Pad
						if ix < 0 || ix >= inW {
							continue
						}
						v := x[(c*inH+iy)*inW+ix]
						if !found || v > best {
							best = v
							found = true
						}
					}
				}
				if !found {
					best = 0
				}
				y[(c*outH+oy)*outW+ox] = best
			}
		}
	}
	return y, nil
}
