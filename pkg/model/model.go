// Package model implements the dynamic model interpreter and trainer
// (C4, spec.md §4.4): parsing a self-describing .aif32 V3 file into an
// executable layer graph, running inference, and performing one-step
// Adam training over a subset of layer types.
package model

import (
	"github.com/sprite-one/coprocessor/pkg/arena"
)

// LifecycleState is the per-model state machine of spec.md §4.4.4:
// empty -> loaded(type) -> trainable -> training.
type LifecycleState int

const (
	StateEmpty LifecycleState = iota
	StateLoaded
	StateTrainable
	StateTraining
)

func (s LifecycleState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateTrainable:
		return "trainable"
	case StateTraining:
		return "training"
	default:
		return "unknown"
	}
}

// Type distinguishes legacy static models from dynamic .aif32 ones,
// per the model manager state in spec.md §3. This interpreter only
// ever produces TypeDynamicV3; TypeLegacyStatic is carried so the
// dispatcher's AI_STATUS response can still report a slot for a
// legacy model type without this package knowing how to parse one.
type Type int

const (
	TypeNone Type = iota
	TypeLegacyStatic
	TypeDynamicV3
)

// Model is the runtime graph plus arena-backed weights for one loaded
// .aif32 file, and the optional training session layered on top of
// it. It is the single-model state named in spec.md §3 ("At most one
// active model at a time"); the worker owns exactly one Model.
type Model struct {
	arena *arena.Arena

	state    LifecycleState
	kind     Type
	filename string
	header   Header

	layers  []layerRecord
	Weights []float32 // flat blob; layer weight/bias ranges index into this

	trainer *trainer // nil until prepare_training succeeds

	epoch     int
	lastLoss  float32
}

// New creates a Model backed by a. The arena is reset on every Load.
func New(a *arena.Arena) *Model {
	return &Model{arena: a}
}

// State returns the current lifecycle state.
func (m *Model) State() LifecycleState { return m.state }

// Kind returns the loaded model's type, or TypeNone.
func (m *Model) Kind() Type { return m.kind }

// Filename returns the currently loaded model's source filename.
func (m *Model) Filename() string { return m.filename }

// Header returns the last successfully parsed header, for MODEL_INFO.
func (m *Model) Header() Header { return m.header }

// InputDim and OutputDim report the first layer's input size and the
// last layer's output size (spec.md §3 invariant).
func (m *Model) InputDim() int {
	if len(m.layers) == 0 {
		return 0
	}
	return m.layers[0].InShape.Size()
}

func (m *Model) OutputDim() int {
	if len(m.layers) == 0 {
		return 0
	}
	return m.layers[len(m.layers)-1].OutShape.Size()
}

// Epoch and LastLoss report training progress for AI_STATUS.
func (m *Model) Epoch() int        { return m.epoch }
func (m *Model) LastLoss() float32 { return m.lastLoss }

// ArenaRemaining reports free bytes in the backing arena, for
// BUFFER_STATUS.
func (m *Model) ArenaRemaining() int { return m.arena.Remaining() }

// Reset returns the model to the empty state and frees all arena
// memory the model and any training session held (spec.md §4.4.4).
func (m *Model) Reset() {
	m.arena.Reset()
	m.state = StateEmpty
	m.kind = TypeNone
	m.filename = ""
	m.header = Header{}
	m.layers = nil
	m.Weights = nil
	m.trainer = nil
	m.epoch = 0
	m.lastLoss = 0
}

// Load parses raw as an .aif32 V3 file, builds the runtime layer
// graph, and copies its weights into the arena. On any failure the
// model is left in (or returned to) the empty state, per spec.md
// §4.4.5. filename is recorded for MODEL_INFO/MODEL_SELECT bookkeeping
// only; Load does not touch the filesystem.
func (m *Model) Load(filename string, raw []byte) error {
	h, err := parseHeader(raw)
	if err != nil {
		m.Reset()
		return err
	}

	layersEnd := headerSize + int(h.LayerCount)*descriptorSize
	weightsEnd := layersEnd + int(h.TotalWeightsSize)
	if weightsEnd > len(raw) {
		m.Reset()
		return &ModelError{Op: "load", Err: ErrTruncated}
	}

	weightBlob := raw[layersEnd:weightsEnd]
	if weightsCRC32(weightBlob) != h.WeightsCRC32 {
		m.Reset()
		return &ModelError{Op: "load", Err: ErrWeightsCRC}
	}

	descs := make([]descriptor, h.LayerCount)
	for i := 0; i < int(h.LayerCount); i++ {
		off := headerSize + i*descriptorSize
		descs[i] = parseDescriptor(raw[off : off+descriptorSize])
	}

	m.arena.Reset()

	weights, err := m.arena.AllocFloat32s(len(weightBlob) / 4)
	if err != nil {
		m.Reset()
		return &ModelError{Op: "load", Err: ErrArenaOverflow}
	}
	decodeFloat32s(weightBlob, weights)

	layers, err := buildGraph(descs, len(weights))
	if err != nil {
		m.Reset()
		return err
	}

	m.header = h
	m.filename = filename
	m.layers = layers
	m.Weights = weights
	m.kind = TypeDynamicV3
	m.state = StateLoaded
	m.trainer = nil
	m.epoch = 0
	m.lastLoss = 0
	return nil
}

// buildGraph walks descriptors in order, tracking a shape cursor
// starting at the Input layer's declared shape (spec.md §4.4.1), and
// slicing weightCount total float32 weights across parametric layers
// in declaration order.
func buildGraph(descs []descriptor, weightCount int) ([]layerRecord, error) {
	layers := make([]layerRecord, 0, len(descs))
	var cursor Shape
	weightCursor := 0

	for i, d := range descs {
		if i == 0 && d.Kind != LayerInput {
			return nil, &ModelError{Op: "build graph", Err: ErrShapeMismatch}
		}

		rec := layerRecord{Kind: d.Kind, Desc: d}

		switch d.Kind {
		case LayerInput:
			if d.Flags&flagInput3D != 0 {
				h, w, c := int(d.Params[0]), int(d.Params[1]), int(d.Params[2])
				cursor = shape3D(c, h, w)
			} else {
				cursor = shape1D(int(d.Params[0]))
			}
			rec.InShape, rec.OutShape = cursor, cursor

		case LayerDense:
			rec.InShape = cursor
			in := cursor.Size()
			neurons := int(d.Params[0])
			wn := in * neurons
			var err error
			weightCursor, rec.Weights, err = takeRange(weightCursor, wn, weightCount)
			if err != nil {
				return nil, err
			}
			weightCursor, rec.Bias, err = takeRange(weightCursor, neurons, weightCount)
			if err != nil {
				return nil, err
			}
			cursor = shape1D(neurons)
			rec.OutShape = cursor

		case LayerReLU, LayerSigmoid, LayerSoftmax:
			rec.InShape, rec.OutShape = cursor, cursor

		case LayerConv2D:
			if !cursor.Is3D() {
				return nil, &ModelError{Op: "build graph", Err: ErrShapeMismatch}
			}
			rec.InShape = cursor
			c, h, w := cursor.CHW()
			p := d.conv2D()
			oh := convOutDim(h, p.KH, p.SH, p.Pad)
			ow := convOutDim(w, p.KW, p.SW, p.Pad)
			wn := p.Filters * c * p.KH * p.KW
			var err error
			weightCursor, rec.Weights, err = takeRange(weightCursor, wn, weightCount)
			if err != nil {
				return nil, err
			}
			weightCursor, rec.Bias, err = takeRange(weightCursor, p.Filters, weightCount)
			if err != nil {
				return nil, err
			}
			cursor = shape3D(p.Filters, oh, ow)
			rec.OutShape = cursor

		case LayerMaxPool:
			if !cursor.Is3D() {
				return nil, &ModelError{Op: "build graph", Err: ErrShapeMismatch}
			}
			rec.InShape = cursor
			c, h, w := cursor.CHW()
			p := d.maxPool()
			oh := convOutDim(h, p.KH, p.SH, p.Pad)
			ow := convOutDim(w, p.KW, p.SW, p.Pad)
			cursor = shape3D(c, oh, ow)
			rec.OutShape = cursor

		case LayerFlatten:
			rec.InShape = cursor
			cursor = shape1D(cursor.Size())
			rec.OutShape = cursor

		default:
			return nil, &ModelError{Op: "build graph", Err: ErrUnknownLayer}
		}

		layers = append(layers, rec)
	}
	return layers, nil
}

// takeRange slices [cursor, cursor+n) out of the weight blob, failing
// with ErrTruncated if that would run past the blob's declared size
// (spec.md §4.4.1: "If any layer's declared slice exceeds the
// remaining weight blob, load fails with ModelError::Truncated").
func takeRange(cursor, n, total int) (int, weightRange, error) {
	if cursor+n > total {
		return cursor, weightRange{}, &ModelError{Op: "slice weights", Err: ErrTruncated}
	}
	return cursor + n, weightRange{Start: cursor, Len: n}, nil
}
