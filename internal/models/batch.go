package models

import "fmt"

// InputShape is the channel-first layout a single training example must have
// to be accepted by the slice predictor.
type InputShape struct {
	Channels int
	Rows     int
	Cols     int
}

// SliceShape is the fixed (1, 32, 32) layout of one resampled sagittal slice.
var SliceShape = InputShape{Channels: 1, Rows: 32, Cols: 32}

// Len returns the number of values in one example
func (s InputShape) Len() int {
	return s.Channels * s.Rows * s.Cols
}

// Dims returns the shape as a slice, channel first
func (s InputShape) Dims() []int {
	return []int{s.Channels, s.Rows, s.Cols}
}

func (s InputShape) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s.Channels, s.Rows, s.Cols)
}

// Batch is one training step worth of examples and their one-hot labels.
// Rows of X and Y correspond; every emitted batch is full.
type Batch struct {
	// Shape is the layout of each row of X
	Shape InputShape

	// Classes is the width of each row of Y
	Classes int

	// X holds one flattened example per row
	X [][]float64

	// Y holds one one-hot label vector per row
	Y [][]float64

	// Sources names the volume file each row was extracted from
	Sources []string
}

// NewBatch allocates an empty batch with room for size rows
func NewBatch(size, classes int, shape InputShape) *Batch {
	return &Batch{
		Shape:   shape,
		Classes: classes,
		X:       make([][]float64, 0, size),
		Y:       make([][]float64, 0, size),
		Sources: make([]string, 0, size),
	}
}

// Len returns the number of rows in the batch
func (b *Batch) Len() int {
	return len(b.X)
}

// Labels decodes the one-hot rows of Y back into class indices.
// Rows that are not one-hot decode to -1.
func (b *Batch) Labels() []int {
	labels := make([]int, len(b.Y))
	for i, row := range b.Y {
		labels[i] = -1
		ones := 0
		for j, v := range row {
			switch v {
			case 1:
				ones++
				labels[i] = j
			case 0:
			default:
				ones = 2
			}
		}
		if ones != 1 {
			labels[i] = -1
		}
	}
	return labels
}

// Tensor returns X flattened to (N, C, H, W) in row-major order
func (b *Batch) Tensor() []float64 {
	out := make([]float64, 0, len(b.X)*b.Shape.Len())
	for _, row := range b.X {
		out = append(out, row...)
	}
	return out
}
