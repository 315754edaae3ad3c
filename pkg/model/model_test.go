package model

import (
	"errors"
	"math"
	"testing"

	"github.com/sprite-one/coprocessor/pkg/arena"
)

func denseDescriptor(neurons uint16) LayerDescriptorInput {
	return LayerDescriptorInput{Kind: LayerDense, Params: [6]uint16{neurons}}
}

func inputDescriptor1D(n uint16) LayerDescriptorInput {
	return LayerDescriptorInput{Kind: LayerInput, Params: [6]uint16{n}}
}

// buildXOR constructs a tiny 2-4-1 Dense/Sigmoid network with
// caller-chosen weights, mirroring the network spec.md §8 trains on.
func buildXOR(w1, b1, w2, b2 []float32) []byte {
	layers := []LayerDescriptorInput{
		inputDescriptor1D(2),
		denseDescriptor(4),
		{Kind: LayerSigmoid},
		denseDescriptor(1),
		{Kind: LayerSigmoid},
	}
	weights := append(append(append(append([]float32{}, w1...), b1...), w2...), b2...)
	return EncodeFile("xor.aif32", layers, weights)
}

func TestLoadValidFileThenInferMatchesReference(t *testing.T) {
	w1 := []float32{1, 1, 1, 1, 1, 1, 1, 1} // 2 inputs x 4 neurons
	b1 := []float32{0, 0, 0, 0}
	w2 := []float32{0.5, 0.5, 0.5, 0.5} // 4 inputs x 1 neuron
	b2 := []float32{-1}

	raw := buildXOR(w1, b1, w2, b2)
	m := New(arena.New(1 << 16))
	if err := m.Load("xor.aif32", raw); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.State() != StateLoaded {
		t.Fatalf("state = %v, want loaded", m.State())
	}
	if m.InputDim() != 2 || m.OutputDim() != 1 {
		t.Fatalf("dims = %d/%d, want 2/1", m.InputDim(), m.OutputDim())
	}

	out, err := m.Infer([]float32{1, 0})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}

	want := referenceXOR(w1, b1, w2, b2, 1, 0)
	if math.Abs(float64(out[0]-want)) > 1e-5 {
		t.Fatalf("Infer() = %v, want %v (max abs err 1e-5)", out[0], want)
	}
}

func TestInferZeroPadsShortLegacyInput(t *testing.T) {
	w1 := []float32{1, 1, 1, 1, 1, 1, 1, 1}
	b1 := []float32{0, 0, 0, 0}
	w2 := []float32{0.5, 0.5, 0.5, 0.5}
	b2 := []float32{-1}

	raw := buildXOR(w1, b1, w2, b2)
	m := New(arena.New(1 << 16))
	if err := m.Load("xor.aif32", raw); err != nil {
		t.Fatalf("Load: %v", err)
	}

	out, err := m.Infer([]float32{1})
	if err != nil {
		t.Fatalf("Infer with short input: %v", err)
	}

	want := referenceXOR(w1, b1, w2, b2, 1, 0)
	if math.Abs(float64(out[0]-want)) > 1e-5 {
		t.Fatalf("Infer([]float32{1}) = %v, want %v (zero-padded second input)", out[0], want)
	}

	if _, err := m.Infer([]float32{1, 0, 0}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Infer with over-long input: err = %v, want ErrShapeMismatch", err)
	}
}

func referenceXOR(w1, b1, w2, b2 []float32, x0, x1 float32) float32 {
	hidden := make([]float32, 4)
	for o := 0; o < 4; o++ {
		sum := b1[o] + x0*w1[o*2+0] + x1*w1[o*2+1]
		hidden[o] = float32(1 / (1 + math.Exp(-float64(sum))))
	}
	sum := b2[0]
	for i := 0; i < 4; i++ {
		sum += hidden[i] * w2[i]
	}
	return float32(1 / (1 + math.Exp(-float64(sum))))
}

func TestLoadRejectsBadMagic(t *testing.T) {
	raw := buildXOR(make([]float32, 8), make([]float32, 4), make([]float32, 4), make([]float32, 1))
	raw[0] ^= 0xFF

	m := New(arena.New(1 << 16))
	err := m.Load("xor.aif32", raw)
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
	if m.State() != StateEmpty {
		t.Fatalf("state after failed load = %v, want empty", m.State())
	}
}

func TestLoadRejectsWeightsCRCMismatch(t *testing.T) {
	raw := buildXOR(make([]float32, 8), make([]float32, 4), make([]float32, 4), make([]float32, 1))
	raw[len(raw)-1] ^= 0xFF // corrupt last weight byte without updating header crc

	m := New(arena.New(1 << 16))
	err := m.Load("xor.aif32", raw)
	if !errors.Is(err, ErrWeightsCRC) {
		t.Fatalf("expected ErrWeightsCRC, got %v", err)
	}
	if m.State() != StateEmpty {
		t.Fatal("expected model to remain empty after crc failure")
	}
}

func TestLoadRejectsTruncatedWeightSlice(t *testing.T) {
	// Declare a Dense layer needing more weights than the blob has.
	layers := []LayerDescriptorInput{
		inputDescriptor1D(2),
		denseDescriptor(100), // wants 2*100 weights + 100 biases
	}
	raw := EncodeFile("bad.aif32", layers, []float32{1, 2, 3, 4})
	m := New(arena.New(1 << 16))
	err := m.Load("bad.aif32", raw)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestLoadRejectsUnsupportedVersionAndLayerType(t *testing.T) {
	raw := buildXOR(make([]float32, 8), make([]float32, 4), make([]float32, 4), make([]float32, 1))
	raw[4] = 9 // corrupt version byte

	m := New(arena.New(1 << 16))
	if err := m.Load("xor.aif32", raw); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}

	unknown := EncodeFile("bad.aif32", []LayerDescriptorInput{
		inputDescriptor1D(2),
		{Kind: LayerKind(99)},
	}, nil)
	if err := m.Load("bad.aif32", unknown); !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("expected ErrUnknownLayer, got %v", err)
	}
	if m.State() != StateEmpty {
		t.Fatalf("state after unknown layer type = %v, want empty", m.State())
	}
}

func TestInferWithNoModelLoadedFails(t *testing.T) {
	m := New(arena.New(1 << 16))
	if _, err := m.Infer([]float32{0, 0}); !errors.Is(err, ErrNoModelLoaded) {
		t.Fatalf("expected ErrNoModelLoaded, got %v", err)
	}
}

func TestResetReturnsToEmptyAndFreesArena(t *testing.T) {
	raw := buildXOR(make([]float32, 8), make([]float32, 4), make([]float32, 4), make([]float32, 1))
	a := arena.New(1 << 16)
	m := New(a)
	if err := m.Load("xor.aif32", raw); err != nil {
		t.Fatal(err)
	}
	usedBefore := a.Used()
	if usedBefore == 0 {
		t.Fatal("expected load to consume arena space")
	}
	m.Reset()
	if m.State() != StateEmpty {
		t.Fatal("expected empty state after Reset")
	}
	if a.Used() != 0 {
		t.Fatalf("expected arena to be fully released, used=%d", a.Used())
	}
}

func TestConv2DAndMaxPoolShapeArithmetic(t *testing.T) {
	// 1x4x4 input -> Conv2D(filters=2,k=3,s=1,pad=0) -> 2x2x2 -> MaxPool(k=2,s=1,pad=0) -> 2x1x1
	layers := []LayerDescriptorInput{
		{Kind: LayerInput, Flags: flagInput3D, Params: [6]uint16{4, 4, 1}}, // H=4,W=4,C=1
		{Kind: LayerConv2D, Params: [6]uint16{2, 3, 3, 1, 1, 0}},
		{Kind: LayerMaxPool, Params: [6]uint16{0, 2, 2, 1, 1, 0}},
		{Kind: LayerFlatten},
	}
	// Conv2D needs filters*inC*kH*kW=2*1*3*3=18 weights + 2 biases.
	weights := make([]float32, 18+2)
	for i := range weights {
		weights[i] = 0.1
	}
	raw := EncodeFile("conv.aif32", layers, weights)

	m := New(arena.New(1 << 16))
	if err := m.Load("conv.aif32", raw); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.OutputDim() != 2 {
		t.Fatalf("OutputDim() = %d, want 2 (2 channels x 1x1 maxpool)", m.OutputDim())
	}

	input := make([]float32, 16)
	for i := range input {
		input[i] = 1.0
	}
	out, err := m.Infer(input)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestSnapshotRoundTripsIntoReload(t *testing.T) {
	w1 := []float32{1, 1, 1, 1, 1, 1, 1, 1}
	b1 := []float32{0, 0, 0, 0}
	w2 := []float32{0.5, 0.5, 0.5, 0.5}
	b2 := []float32{-1}
	raw := buildXOR(w1, b1, w2, b2)

	m := New(arena.New(1 << 16))
	if err := m.Load("xor.aif32", raw); err != nil {
		t.Fatalf("Load: %v", err)
	}
	before, err := m.Infer([]float32{1, 0})
	if err != nil {
		t.Fatalf("Infer before snapshot: %v", err)
	}

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	reloaded := New(arena.New(1 << 16))
	if err := reloaded.Load("xor.aif32", snap); err != nil {
		t.Fatalf("Load(snapshot): %v", err)
	}
	after, err := reloaded.Infer([]float32{1, 0})
	if err != nil {
		t.Fatalf("Infer after reload: %v", err)
	}
	if math.Abs(float64(before[0]-after[0])) > 1e-6 {
		t.Fatalf("snapshot round trip changed output: %v vs %v", before, after)
	}
}

func TestSnapshotWithNoModelLoadedFails(t *testing.T) {
	m := New(arena.New(1 << 16))
	if _, err := m.Snapshot(); !errors.Is(err, ErrNoModelLoaded) {
		t.Fatalf("expected ErrNoModelLoaded, got %v", err)
	}
}
