package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/sprite-one/coprocessor/pkg/arena"
)

// xorSamples is the dataset spec.md §8 trains on: {(0,0)->0, (0,1)->1,
// (1,0)->1, (1,1)->0}.
var xorSamples = []struct {
	in  []float32
	out []float32
}{
	{[]float32{0, 0}, []float32{0}},
	{[]float32{0, 1}, []float32{1}},
	{[]float32{1, 0}, []float32{1}},
	{[]float32{1, 1}, []float32{0}},
}

func newXORModel(t *testing.T) *Model {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	randWeights := func(n int) []float32 {
		w := make([]float32, n)
		for i := range w {
			w[i] = float32(rng.Float64()*2 - 1)
		}
		return w
	}

	layers := []LayerDescriptorInput{
		inputDescriptor1D(2),
		denseDescriptor(4),
		{Kind: LayerSigmoid},
		denseDescriptor(1),
		{Kind: LayerSigmoid},
	}
	weights := append(append(append(append([]float32{},
		randWeights(8)...), randWeights(4)...),
		randWeights(4)...), randWeights(1)...)

	raw := EncodeFile("xor.aif32", layers, weights)
	m := New(arena.New(1 << 20))
	if err := m.Load("xor.aif32", raw); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

// TestTrainingConvergesOnXOR mirrors spec.md §8's property: training on
// the XOR dataset with lr=0.5 for 500 steps per sample (2000 steps
// total over the 4-sample epoch) converges to max|y-target| < 0.2.
func TestTrainingConvergesOnXOR(t *testing.T) {
	m := newXORModel(t)
	if err := m.PrepareTraining(0.5); err != nil {
		t.Fatalf("PrepareTraining: %v", err)
	}
	if m.State() != StateTrainable {
		t.Fatalf("state = %v, want trainable", m.State())
	}

	const stepsPerSample = 500
	for step := 0; step < stepsPerSample; step++ {
		for _, s := range xorSamples {
			if _, err := m.TrainStep(s.in, s.out); err != nil {
				t.Fatalf("TrainStep: %v", err)
			}
		}
	}

	var maxErr float32
	for _, s := range xorSamples {
		out, err := m.Infer(s.in)
		if err != nil {
			t.Fatalf("Infer: %v", err)
		}
		diff := out[0] - s.out[0]
		if diff < 0 {
			diff = -diff
		}
		if diff > maxErr {
			maxErr = diff
		}
	}
	if maxErr >= 0.2 {
		t.Fatalf("max|y-target| = %v, want < 0.2 after %d total steps", maxErr, stepsPerSample*len(xorSamples))
	}
}

// TestTrainStepForwardMatchesInfer checks that a train_step's forward
// pass computes the same output as infer() on the same input and the
// same (pre-update) weights, and that infer() then runs against the
// updated weights.
func TestTrainStepForwardMatchesInfer(t *testing.T) {
	m := newXORModel(t)
	if err := m.PrepareTraining(0.1); err != nil {
		t.Fatalf("PrepareTraining: %v", err)
	}

	sample := xorSamples[1]
	pre, err := m.Infer(sample.in)
	if err != nil {
		t.Fatalf("Infer before step: %v", err)
	}
	loss, err := m.TrainStep(sample.in, sample.out)
	if err != nil {
		t.Fatalf("TrainStep: %v", err)
	}
	if loss < 0 {
		t.Fatalf("loss must be non-negative, got %v", loss)
	}
	fwd := m.trainer.activations[len(m.layers)-1]
	if math.Abs(float64(fwd[0]-pre[0])) > 1e-6 {
		t.Fatalf("train step forward output %v, want infer output %v", fwd[0], pre[0])
	}

	out, err := m.Infer(sample.in)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	want := sample.out[0]
	diff := math.Abs(float64(out[0] - want))
	// After one Adam step the weights have moved; this checks infer runs
	// successfully against the updated graph and stays within a sane range.
	if diff > 1.5 {
		t.Fatalf("unexpected infer output %v after one train step toward target %v", out[0], want)
	}
}

func TestTrainStepRejectsShapeMismatch(t *testing.T) {
	m := newXORModel(t)
	if err := m.PrepareTraining(0.1); err != nil {
		t.Fatalf("PrepareTraining: %v", err)
	}
	if _, err := m.TrainStep([]float32{0}, []float32{0}); err == nil {
		t.Fatal("expected error for wrong input shape")
	}
}

func TestTrainStepWithoutPrepareFails(t *testing.T) {
	m := newXORModel(t)
	if _, err := m.TrainStep(xorSamples[0].in, xorSamples[0].out); err == nil {
		t.Fatal("expected error when training without PrepareTraining")
	}
}

func TestStopTrainingReturnsToLoadedAndFreesOptimizer(t *testing.T) {
	m := newXORModel(t)
	if err := m.PrepareTraining(0.1); err != nil {
		t.Fatalf("PrepareTraining: %v", err)
	}
	m.StopTraining()
	if m.State() != StateLoaded {
		t.Fatalf("state = %v, want loaded after StopTraining", m.State())
	}
	if _, err := m.TrainStep(xorSamples[0].in, xorSamples[0].out); err == nil {
		t.Fatal("expected TrainStep to fail after StopTraining freed the optimizer")
	}
}

func TestPrepareTrainingRejectsWhileAlreadyTrainable(t *testing.T) {
	m := newXORModel(t)
	if err := m.PrepareTraining(0.1); err != nil {
		t.Fatalf("PrepareTraining: %v", err)
	}
	before := m.ArenaRemaining()
	if err := m.PrepareTraining(0.1); err == nil {
		t.Fatal("expected second PrepareTraining call to be rejected")
	}
	if after := m.ArenaRemaining(); after != before {
		t.Fatalf("arena remaining changed from %d to %d on a rejected PrepareTraining call", before, after)
	}
}

func TestBackpropRejectsUnsupportedLayer(t *testing.T) {
	layers := []LayerDescriptorInput{
		{Kind: LayerInput, Flags: flagInput3D, Params: [6]uint16{4, 4, 1}},
		{Kind: LayerConv2D, Params: [6]uint16{1, 3, 3, 1, 1, 0}},
	}
	weights := make([]float32, 1*1*3*3+1)
	raw := EncodeFile("conv.aif32", layers, weights)
	m := New(arena.New(1 << 16))
	if err := m.Load("conv.aif32", raw); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.PrepareTraining(0.1); err != nil {
		t.Fatalf("PrepareTraining: %v", err)
	}

	input := make([]float32, 16)
	target := make([]float32, 4)
	weightsBefore := append([]float32{}, m.Weights...)
	if _, err := m.TrainStep(input, target); err == nil {
		t.Fatal("expected ErrUnsupportedLayer for Conv2D backward")
	}
	for i := range weightsBefore {
		if m.Weights[i] != weightsBefore[i] {
			t.Fatalf("weights mutated despite unsupported-layer failure at index %d", i)
		}
	}
}
