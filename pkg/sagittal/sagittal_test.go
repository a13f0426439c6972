package sagittal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"mrimodality/internal/models"
)

func TestWindow(t *testing.T) {
	tests := []struct {
		extent, n    int
		start, count int
	}{
		{extent: 100, n: 30, start: 35, count: 30},
		{extent: 101, n: 30, start: 35, count: 30},
		{extent: 31, n: 30, start: 1, count: 30},
		{extent: 30, n: 30, start: 0, count: 30},
		{extent: 3, n: 3, start: 0, count: 3},
		{extent: 12, n: 30, start: 0, count: 12},
		{extent: 1, n: 30, start: 0, count: 1},
		{extent: 50, n: 3, start: 24, count: 3},
		{extent: 0, n: 30, start: 0, count: 0},
		{extent: 10, n: 0, start: 0, count: 0},
	}
	for _, tt := range tests {
		start, count := Window(tt.extent, tt.n)
		assert.Equal(t, tt.start, start, "start for extent=%d n=%d", tt.extent, tt.n)
		assert.Equal(t, tt.count, count, "count for extent=%d n=%d", tt.extent, tt.n)
	}
}

func TestWindowStaysInBounds(t *testing.T) {
	for extent := 1; extent <= 64; extent++ {
		for n := 1; n <= 70; n++ {
			start, count := Window(extent, n)
			require.GreaterOrEqual(t, start, 0)
			require.LessOrEqual(t, start+count, extent)
			require.LessOrEqual(t, count, n)
			require.LessOrEqual(t, count, extent)
		}
	}
}

func TestExtract(t *testing.T) {
	v := models.NewVolume(10, 2, 3)
	for x := 0; x < v.Nx; x++ {
		for y := 0; y < v.Ny; y++ {
			for z := 0; z < v.Nz; z++ {
				v.Set(x, y, z, float64(x))
			}
		}
	}

	slices := Extract(v, 4)
	require.Len(t, slices, 4)
	for i, s := range slices {
		r, c := s.Dims()
		assert.Equal(t, 2, r)
		assert.Equal(t, 3, c)
		assert.Equal(t, float64(3+i), s.At(1, 2))
	}

	// modifying a section leaves the volume alone
	slices[0].Set(0, 0, -1)
	assert.Equal(t, 3.0, v.At(3, 0, 0))
}

func TestExtractSmallVolume(t *testing.T) {
	v := models.NewVolume(7, 4, 4)
	assert.Len(t, Extract(v, 30), 7)
}

func TestSampleIndices(t *testing.T) {
	assert.Equal(t, []int{0, 2, 4, 6}, SampleIndices(4, 8))
	// 31/32*16 = 15.5 rounds to 16 and must clamp
	idx := SampleIndices(32, 16)
	assert.Equal(t, 15, idx[31])
	for _, i := range SampleIndices(32, 1) {
		assert.Equal(t, 0, i)
	}
}

func TestResampleShape(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {1, 200}, {16, 16}, {31, 33}, {32, 32}, {256, 170}} {
		src := mat.NewDense(dims[0], dims[1], nil)
		out := ResampleToShape(src, models.SliceShape)
		r, c := out.Dims()
		assert.Equal(t, 32, r, "rows for %v", dims)
		assert.Equal(t, 32, c, "cols for %v", dims)
	}
}

func TestResampleIdentity(t *testing.T) {
	data := make([]float64, 32*32)
	for i := range data {
		data[i] = float64(i)
	}
	src := mat.NewDense(32, 32, data)
	assert.True(t, mat.Equal(src, Resample(src, 32, 32)))
}

func TestResampleNearestIndex(t *testing.T) {
	src := mat.NewDense(4, 2, []float64{
		0, 1,
		10, 11,
		20, 21,
		30, 31,
	})
	out := Resample(src, 2, 4)
	want := mat.NewDense(2, 4, []float64{
		0, 0, 1, 1,
		20, 20, 21, 21,
	})
	assert.True(t, mat.Equal(want, out), "got %v", mat.Formatted(out))
}
