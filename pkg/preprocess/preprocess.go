// Package preprocess holds the per-slice intensity normalization and the label
// encoding used when assembling training batches.
package preprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Normalize returns (s - mean(s)) / std(s) using the population standard
// deviation. A constant slice has zero deviation and yields NaN values; callers
// are expected to reject non-finite output.
func Normalize(s mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(s)
	data := out.RawMatrix().Data

	mean, std := stat.PopMeanStdDev(data, nil)
	floats.AddConst(-mean, data)
	for i := range data {
		data[i] /= std
	}
	return out
}

// AllFinite reports whether every value is neither NaN nor infinite
func AllFinite(values ...[]float64) bool {
	for _, vs := range values {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// OneHot encodes label as a vector of the given width with a single 1.
// The label must satisfy 0 <= label < width.
func OneHot(label, width int) []float64 {
	if label < 0 || label >= width {
		panic(fmt.Sprintf("preprocess: label %d out of range [0,%d)", label, width))
	}
	v := make([]float64, width)
	v[label] = 1
	return v
}

// Flatten copies a matrix into a row-major slice
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}
