// Package volume loads MRI volumes from disk and presents them in the canonical
// frame used by the slice pipeline: sagittal axis first, with the first two
// axes reversed relative to the file's native orientation.
package volume

import "mrimodality/internal/models"

// Loader opens one volume file and returns it in canonical orientation
type Loader interface {
	Load(path string) (*models.Volume, error)
}

// FuncLoader adapts a function to the Loader interface
type FuncLoader func(path string) (*models.Volume, error)

// Load calls f(path)
func (f FuncLoader) Load(path string) (*models.Volume, error) {
	return f(path)
}

// NIfTILoader reads NIfTI-1 files (.nii and .nii.gz)
type NIfTILoader struct{}

// NewNIfTILoader returns the default file loader
func NewNIfTILoader() *NIfTILoader {
	return &NIfTILoader{}
}

// Load reads the file and canonicalizes its axes
func (NIfTILoader) Load(path string) (*models.Volume, error) {
	v, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Canonicalize(v), nil
}

// Canonicalize swaps the first and third axes and then reverses the (new)
// first two axes. A native (I, J, K) volume becomes (K, J, I) with
//
//	out[a, b, c] = in[c, J-1-b, K-1-a]
func Canonicalize(v *models.Volume) *models.Volume {
	ni, nj, nk := v.Nx, v.Ny, v.Nz
	out := models.NewVolume(nk, nj, ni)
	for a := 0; a < nk; a++ {
		for b := 0; b < nj; b++ {
			for c := 0; c < ni; c++ {
				out.Set(a, b, c, v.At(c, nj-1-b, nk-1-a))
			}
		}
	}
	return out
}
