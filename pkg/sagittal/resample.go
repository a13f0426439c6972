package sagittal

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"mrimodality/internal/models"
)

// SampleIndices returns the nearest source index for each of size evenly
// spaced positions i/size across an axis of length n.
//
// Positions that round up to n itself (n=16 gives 15.5 -> 16) are clamped to
// the last valid index.
func SampleIndices(size, n int) []int {
	idx := make([]int, size)
	for i := range idx {
		j := int(math.RoundToEven(float64(i) / float64(size) * float64(n)))
		if j > n-1 {
			j = n - 1
		}
		idx[i] = j
	}
	return idx
}

// Resample maps s onto a rows x cols grid by nearest-index selection,
// gathering rows first and then columns.
func Resample(s mat.Matrix, rows, cols int) *mat.Dense {
	ny, nz := s.Dims()
	ri := SampleIndices(rows, ny)
	ci := SampleIndices(cols, nz)

	out := mat.NewDense(rows, cols, nil)
	for i, r := range ri {
		for j, c := range ci {
			out.Set(i, j, s.At(r, c))
		}
	}
	return out
}

// ResampleToShape resamples onto the spatial grid of shape
func ResampleToShape(s mat.Matrix, shape models.InputShape) *mat.Dense {
	return Resample(s, shape.Rows, shape.Cols)
}
