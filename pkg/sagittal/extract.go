// Package sagittal selects sagittal cross-sections from a canonical volume and
// resamples them onto the fixed grid expected by the slice predictor.
package sagittal

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"mrimodality/internal/models"
)

// Window returns the centered run of n slices within an axis of the given
// extent. The count is reduced to the extent when the volume is too small, and
// the start is clamped so the window never leaves [0, extent).
func Window(extent, n int) (start, count int) {
	if extent <= 0 || n <= 0 {
		return 0, 0
	}
	count = n
	if count > extent {
		count = extent
	}

	mid := int(math.RoundToEven(float64(extent) / 2))
	start = mid - count/2
	if start < 0 {
		start = 0
	}
	if start > extent-count {
		start = extent - count
	}
	return start, count
}

// Extract returns up to n raw sagittal cross-sections (Ny x Nz) from the
// middle of the volume, in ascending sagittal order.
func Extract(v *models.Volume, n int) []*mat.Dense {
	start, count := Window(v.Nx, n)
	slices := make([]*mat.Dense, 0, count)
	for x := start; x < start+count; x++ {
		slices = append(slices, Section(v, x))
	}
	return slices
}

// Section copies the sagittal plane at position x
func Section(v *models.Volume, x int) *mat.Dense {
	plane := v.Ny * v.Nz
	data := make([]float64, plane)
	copy(data, v.Data[x*plane:(x+1)*plane])
	return mat.NewDense(v.Ny, v.Nz, data)
}
