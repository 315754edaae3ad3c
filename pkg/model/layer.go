package model

// LayerKind is the tagged-variant discriminant for a parsed layer,
// replacing the ad-hoc function-pointer polymorphism the source used
// (spec.md §9 DESIGN NOTES).
type LayerKind uint8

const (
	LayerInput LayerKind = iota + 1
	LayerDense
	LayerReLU
	LayerSigmoid
	LayerSoftmax
	LayerConv2D
	LayerFlatten
	LayerMaxPool
)

func (k LayerKind) String() string {
	switch k {
	case LayerInput:
		return "Input"
	case LayerDense:
		return "Dense"
	case LayerReLU:
		return "ReLU"
	case LayerSigmoid:
		return "Sigmoid"
	case LayerSoftmax:
		return "Softmax"
	case LayerConv2D:
		return "Conv2D"
	case LayerFlatten:
		return "Flatten"
	case LayerMaxPool:
		return "MaxPool"
	default:
		return "Unknown"
	}
}

// flagInput3D marks an Input descriptor as describing a [C,H,W] shape
// rather than a flat [N] one.
const flagInput3D = 0x01

// descriptor is the raw 16-byte on-disk layer record (spec.md §3):
// type:u8, flags:u8, param1..param6:u16, plus 2 bytes of reserved
// padding to round out the 16-byte record.
type descriptor struct {
	Kind   LayerKind
	Flags  uint8
	Params [6]uint16
}

// conv2DParams names the param slots used by Conv2D per spec.md
// §4.4.1's parameter map (channels-first).
type conv2DParams struct {
	Filters, KH, KW, SH, SW, Pad int
}

func (d descriptor) conv2D() conv2DParams {
	return conv2DParams{
		Filters: int(d.Params[0]),
		KH:      int(d.Params[1]),
		KW:      int(d.Params[2]),
		SH:      int(d.Params[3]),
		SW:      int(d.Params[4]),
		Pad:     int(d.Params[5]),
	}
}

// maxPoolParams names the param slots used by MaxPool; param1 is
// unused per the table in spec.md §4.4.1.
type maxPoolParams struct {
	KH, KW, SH, SW, Pad int
}

func (d descriptor) maxPool() maxPoolParams {
	return maxPoolParams{
		KH:  int(d.Params[1]),
		KW:  int(d.Params[2]),
		SH:  int(d.Params[3]),
		SW:  int(d.Params[4]),
		Pad: int(d.Params[5]),
	}
}

// convOutDim computes floor((in+2*pad-k)/s)+1, shared by Conv2D and
// MaxPool per spec.md §4.4.1.
func convOutDim(in, k, s, pad int) int {
	return (in+2*pad-k)/s + 1
}

// weightRange is an index range into Model.Weights, used instead of a
// raw pointer/slice so a layer record never outlives or aliases a
// rewound arena epoch without that being visible as a plain integer
// bounds check (spec.md §9 DESIGN NOTES: "prefer indices into the
// arena over raw pointers").
type weightRange struct {
	Start, Len int
}

func (r weightRange) slice(weights []float32) []float32 {
	if r.Len == 0 {
		return nil
	}
	return weights[r.Start : r.Start+r.Len]
}

// layerRecord is the runtime, tagged-variant representation of one
// parsed layer.
type layerRecord struct {
	Kind   LayerKind
	Desc   descriptor
	InShape  Shape
	OutShape Shape

	// Weight/bias views into Model.Weights; zero-length for
	// non-parametric layers.
	Weights weightRange
	Bias    weightRange
}

// isParametric reports whether the layer owns weights that training
// can update.
func (l layerRecord) isParametric() bool {
	return l.Kind == LayerDense || l.Kind == LayerConv2D
}
