package model

// Shape is a tensor shape of up to three dimensions, channels-first:
// Dims == []int{N} for a flat 1-D tensor, or []int{C, H, W} for a
// 3-D one (spec.md §3: "a 1-D shape is [N]").
type Shape struct {
	Dims []int
}

func shape1D(n int) Shape { return Shape{Dims: []int{n}} }

func shape3D(c, h, w int) Shape { return Shape{Dims: []int{c, h, w}} }

// Size returns the total element count of the shape.
func (s Shape) Size() int {
	n := 1
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// Is3D reports whether the shape has channel/height/width dimensions.
func (s Shape) Is3D() bool { return len(s.Dims) == 3 }

// CHW returns the channel, height, width dimensions of a 3-D shape.
// Callers must check Is3D first.
func (s Shape) CHW() (c, h, w int) { return s.Dims[0], s.Dims[1], s.Dims[2] }
