package models

import "fmt"

// ManifestRecord pairs a modality label with the volume file it describes.
type ManifestRecord struct {
	// Modality is the integer contrast label read from the manifest
	Modality int

	// Path is the location of the volume file
	Path string
}

// Volume represents a 3D MRI volume held in memory
type Volume struct {
	// Data holds the intensities in row-major (C) order: (x*Ny+y)*Nz+z
	Data []float64

	// Nx, Ny, Nz are the extents along each axis. After canonicalization
	// Nx is the sagittal axis.
	Nx, Ny, Nz int
}

// NewVolume allocates a zeroed volume with the given extents
func NewVolume(nx, ny, nz int) *Volume {
	return &Volume{
		Data: make([]float64, nx*ny*nz),
		Nx:   nx,
		Ny:   ny,
		Nz:   nz,
	}
}

// Index returns the offset of (x, y, z) in Data
func (v *Volume) Index(x, y, z int) int {
	return (x*v.Ny+y)*v.Nz + z
}

// At returns the intensity at (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores an intensity at (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Shape returns the extents as a three element array
func (v *Volume) Shape() [3]int {
	return [3]int{v.Nx, v.Ny, v.Nz}
}

// Validate checks that the extents are positive and match the data length
func (v *Volume) Validate() error {
	if v.Nx <= 0 || v.Ny <= 0 || v.Nz <= 0 {
		return fmt.Errorf("volume has empty extent %dx%dx%d", v.Nx, v.Ny, v.Nz)
	}
	if len(v.Data) != v.Nx*v.Ny*v.Nz {
		return fmt.Errorf("volume data length %d does not match extent %dx%dx%d",
			len(v.Data), v.Nx, v.Ny, v.Nz)
	}
	return nil
}
