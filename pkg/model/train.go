package model

// trainer holds the Adam optimizer state layered on top of a loaded
// model. Gradient, first-moment, and second-moment buffers parallel
// Model.Weights element-for-element — weights and biases already
// share one flat blob, so one triple of buffers covers every
// parametric layer (spec.md §4.4.3).
type trainer struct {
	lr float32

	grad []float32
	m    []float32
	v    []float32
	step int

	activations [][]float32 // cached post-forward output of each layer, index-aligned with Model.layers
	input       []float32   // the original network input for this step

	arenaMark int // arena offset before the optimizer buffers were allocated
}

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-7
)

// PrepareTraining allocates the optimizer buffers for every parametric
// tensor and transitions the model to trainable. Defaults: Adam with
// beta1=0.9, beta2=0.999, eps=1e-7; MSE loss (spec.md §4.4.3).
func (m *Model) PrepareTraining(lr float32) error {
	if m.state == StateEmpty {
		return &TrainingError{Err: ErrNoModelLoaded}
	}
	if m.state == StateTrainable || m.state == StateTraining {
		return &TrainingError{Err: ErrAlreadyTraining}
	}

	mark := m.arena.Mark()
	grad, err := m.arena.AllocFloat32s(len(m.Weights))
	if err != nil {
		return &ModelError{Op: "prepare training", Err: ErrArenaOverflow}
	}
	mom, err := m.arena.AllocFloat32s(len(m.Weights))
	if err != nil {
		return &ModelError{Op: "prepare training", Err: ErrArenaOverflow}
	}
	variance, err := m.arena.AllocFloat32s(len(m.Weights))
	if err != nil {
		return &ModelError{Op: "prepare training", Err: ErrArenaOverflow}
	}

	activations := make([][]float32, len(m.layers))
	for i, l := range m.layers {
		if l.Kind == LayerInput {
			continue
		}
		buf, err := m.arena.AllocFloat32s(l.OutShape.Size())
		if err != nil {
			return &ModelError{Op: "prepare training", Err: ErrArenaOverflow}
		}
		activations[i] = buf
	}

	m.trainer = &trainer{lr: lr, grad: grad, m: mom, v: variance, activations: activations, arenaMark: mark}
	m.state = StateTrainable
	return nil
}

// StopTraining frees the optimizer and activation buffers, per the
// spec.md §9 Open Questions decision below (DESIGN.md): FINETUNE_STOP
// frees optimizer state to bound arena usage, rather than being a
// no-op as in the legacy source.
func (m *Model) StopTraining() {
	if m.trainer != nil {
		m.arena.ResetTo(m.trainer.arenaMark)
	}
	m.trainer = nil
	if m.state == StateTrainable || m.state == StateTraining {
		m.state = StateLoaded
	}
}

// TrainStep performs one forward pass, computes MSE loss, backprops
// through the supported layer set, and applies one Adam update. It is
// atomic: trainable -> training -> trainable (spec.md §4.4.4). Weights
// are left unchanged if backprop hits an unsupported layer.
func (m *Model) TrainStep(inputs, targets []float32) (float32, error) {
	if m.trainer == nil {
		return 0, &TrainingError{Err: ErrOptimizerNotPrepared}
	}
	if len(inputs) != m.InputDim() || len(targets) != m.OutputDim() {
		return 0, &TrainingError{Err: ErrBadTrainingShape}
	}

	m.state = StateTraining
	loss, err := m.trainStepLocked(inputs, targets)
	m.state = StateTrainable
	if err != nil {
		return 0, err
	}
	m.lastLoss = loss
	m.epoch++
	return loss, nil
}

func (m *Model) trainStepLocked(inputs, targets []float32) (float32, error) {
	tr := m.trainer
	for i := range tr.grad {
		tr.grad[i] = 0
	}

	tr.input = inputs
	cur := inputs
	for i, l := range m.layers {
		if l.Kind == LayerInput {
			continue
		}
		out := tr.activations[i]
		if err := m.forwardInto(l, cur, out); err != nil {
			return 0, err
		}
		cur = out
	}

	output := cur
	outDim := len(output)
	var sumSq float64
	grad := make([]float32, outDim)
	for i := range output {
		diff := output[i] - targets[i]
		sumSq += float64(diff) * float64(diff)
		grad[i] = 2 * diff / float32(outDim)
	}
	loss := float32(sumSq / float64(outDim))

	for i := len(m.layers) - 1; i >= 0; i-- {
		l := m.layers[i]
		if l.Kind == LayerInput {
			continue
		}
		var layerInput []float32
		if i == 0 || m.layers[i-1].Kind == LayerInput {
			layerInput = tr.input
		} else {
			layerInput = tr.activations[i-1]
		}
		var err error
		grad, err = m.backward(l, layerInput, tr.activations[i], grad, tr)
		if err != nil {
			return 0, err
		}
	}

	tr.step++
	applyAdam(m.Weights, tr.grad, tr.m, tr.v, tr.lr, tr.step)

	return loss, nil
}

// forwardInto computes a layer's output directly into dst instead of
// allocating from the arena, so the training path reuses the
// activation buffers PrepareTraining set aside for the whole session.
func (m *Model) forwardInto(l layerRecord, x, dst []float32) error {
	switch l.Kind {
	case LayerDense:
		return m.denseInto(l, x, dst)
	case LayerReLU:
		for i, v := range x {
			if v > 0 {
				dst[i] = v
			} else {
				dst[i] = 0
			}
		}
		return nil
	case LayerSigmoid:
		for i, v := range x {
			dst[i] = sigmoid(v)
		}
		return nil
	case LayerFlatten:
		copy(dst, x)
		return nil
	case LayerSoftmax:
		y, err := forwardSoftmax(m.arena, x)
		if err != nil {
			return err
		}
		copy(dst, y)
		return nil
	default:
		return &TrainingError{Err: ErrUnsupportedLayer}
	}
}

func (m *Model) denseInto(l layerRecord, x, dst []float32) error {
	in := l.InShape.Size()
	if len(x) != in {
		return &TrainingError{Err: ErrBadTrainingShape}
	}
	w := l.Weights.slice(m.Weights)
	b := l.Bias.slice(m.Weights)
	for o := range dst {
		sum := b[o]
		base := o * in
		for i := 0; i < in; i++ {
			sum += x[i] * w[base+i]
		}
		dst[o] = sum
	}
	return nil
}

// backward computes dL/d(layer input) given dL/d(layer output) and,
// for parametric layers, accumulates into tr.grad. Per spec.md
// §4.4.3, only Dense/ReLU/Sigmoid (and, as permitted, Flatten) support
// backprop; everything else returns ErrUnsupportedLayer without
// mutating any weights.
func (m *Model) backward(l layerRecord, x, y, gradOut []float32, tr *trainer) ([]float32, error) {
	switch l.Kind {
	case LayerDense:
		return m.denseBackward(l, x, gradOut, tr)
	case LayerReLU:
		gradIn := make([]float32, len(x))
		for i := range gradIn {
			if x[i] > 0 {
				gradIn[i] = gradOut[i]
			}
		}
		return gradIn, nil
	case LayerSigmoid:
		gradIn := make([]float32, len(x))
		for i := range gradIn {
			gradIn[i] = gradOut[i] * y[i] * (1 - y[i])
		}
		return gradIn, nil
	case LayerFlatten:
		gradIn := make([]float32, len(x))
		copy(gradIn, gradOut)
		return gradIn, nil
	default:
		return nil, &TrainingError{Err: ErrUnsupportedLayer}
	}
}

func (m *Model) denseBackward(l layerRecord, x, gradOut []float32, tr *trainer) ([]float32, error) {
	in := l.InShape.Size()
	neurons := l.OutShape.Size()
	w := l.Weights.slice(m.Weights)
	gw := l.Weights.slice(tr.grad)
	gb := l.Bias.slice(tr.grad)

	gradIn := make([]float32, in)
	for o := 0; o < neurons; o++ {
		g := gradOut[o]
		gb[o] += g
		base := o * in
		for i := 0; i < in; i++ {
			gw[base+i] += g * x[i]
			gradIn[i] += g * w[base+i]
		}
	}
	return gradIn, nil
}

// applyAdam updates weights in place using the accumulated gradient
// and step count (spec.md §4.4.3).
func applyAdam(weights, grad, m, v []float32, lr float32, step int) {
	t := float32(step)
	bc1 := float32(1 - pow(adamBeta1, t))
	bc2 := float32(1 - pow(adamBeta2, t))
	for i := range weights {
		g := grad[i]
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
		mHat := m[i] / bc1
		vHat := v[i] / bc2
		weights[i] -= lr * mHat / (sqrt32(vHat) + adamEps)
	}
}
