package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"mrimodality/internal/models"
)

// Viewer renders cross-sections of a canonical volume (sagittal axis first)
// so that the generator's input can be inspected by eye.
type Viewer struct {
	volume *models.Volume
}

// NewViewer creates a viewer over a volume
func NewViewer(v *models.Volume) *Viewer {
	return &Viewer{volume: v}
}

// ExtractSlice extracts a 2D section of the volume along the specified axis.
// Axis "x" is sagittal, "y" and "z" are the two remaining planes.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	vol := v.volume

	var rows, cols int
	var at func(r, c int) float64

	switch axis {
	case "x", "X":
		if position >= vol.Nx {
			return nil, fmt.Errorf("position %d exceeds sagittal extent %d", position, vol.Nx)
		}
		rows, cols = vol.Ny, vol.Nz
		at = func(r, c int) float64 { return vol.At(position, r, c) }

	case "y", "Y":
		if position >= vol.Ny {
			return nil, fmt.Errorf("position %d exceeds extent %d", position, vol.Ny)
		}
		rows, cols = vol.Nx, vol.Nz
		at = func(r, c int) float64 { return vol.At(r, position, c) }

	case "z", "Z":
		if position >= vol.Nz {
			return nil, fmt.Errorf("position %d exceeds extent %d", position, vol.Nz)
		}
		rows, cols = vol.Nx, vol.Ny
		at = func(r, c int) float64 { return vol.At(r, c, position) }

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	values := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			values[r*cols+c] = at(r, c)
		}
	}
	return GrayImage(values, rows, cols), nil
}

// GrayImage scales values (row-major, rows x cols) into a 16-bit image using
// the slice's own minimum and maximum. Non-finite values render black.
func GrayImage(values []float64, rows, cols int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	if len(values) == 0 {
		return img
	}

	finite := make([]float64, 0, len(values))
	for _, val := range values {
		if isFinite(val) {
			finite = append(finite, val)
		}
	}
	if len(finite) == 0 {
		return img
	}
	lo, hi := floats.Min(finite), floats.Max(finite)
	span := hi - lo

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			val := values[r*cols+c]
			var level uint16
			if span > 0 && isFinite(val) {
				level = uint16((val - lo) / span * 65535)
			}
			img.SetGray16(c, r, color.Gray16{Y: level})
		}
	}
	return img
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return saveJPEG(img, filename)
}

// SaveSliceSequence extracts and saves every section along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.volume.Nx
	case "y", "Y":
		maxPos = v.volume.Ny
	case "z", "Z":
		maxPos = v.volume.Nz
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveBatch writes each row of a batch as row_NNN_modM.jpg in outputDir and
// returns the written paths.
func SaveBatch(b *models.Batch, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	labels := b.Labels()
	plane := b.Shape.Rows * b.Shape.Cols
	paths := make([]string, 0, len(b.X))
	for i, row := range b.X {
		if len(row) < plane {
			return paths, fmt.Errorf("row %d has %d values, want at least %d", i, len(row), plane)
		}
		label := -1
		if i < len(labels) {
			label = labels[i]
		}
		img := GrayImage(row[:plane], b.Shape.Rows, b.Shape.Cols)
		filename := filepath.Join(outputDir, fmt.Sprintf("row_%03d_mod%d.jpg", i, label))
		if err := saveJPEG(img, filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func saveJPEG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		return err
	}
	return file.Close()
}
