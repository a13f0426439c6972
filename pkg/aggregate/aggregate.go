// Package aggregate turns per-slice modality predictions into inputs for the
// volume-level decision.
package aggregate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrShape reports predictions that do not form a slices x classes grid
var ErrShape = errors.New("prediction shape mismatch")

// Features concatenates the first slices rows of preds into the flat input
// vector of width slices*classes consumed by the volume network.
func Features(preds [][]float64, slices, classes int) ([]float64, error) {
	if slices <= 0 || classes <= 0 {
		return nil, fmt.Errorf("%w: %d slices of %d classes", ErrShape, slices, classes)
	}
	if len(preds) < slices {
		return nil, fmt.Errorf("%w: have %d slice predictions, need %d", ErrShape, len(preds), slices)
	}

	out := make([]float64, 0, slices*classes)
	for i, row := range preds[:slices] {
		if len(row) != classes {
			return nil, fmt.Errorf("%w: slice %d has %d outputs, want %d", ErrShape, i, len(row), classes)
		}
		out = append(out, row...)
	}
	return out, nil
}

// MeanDecision averages per-slice probabilities and returns the most likely
// label with its mean probability.
func MeanDecision(preds [][]float64) (label int, confidence float64, err error) {
	if len(preds) == 0 || len(preds[0]) == 0 {
		return -1, 0, fmt.Errorf("%w: no predictions", ErrShape)
	}

	sum := make([]float64, len(preds[0]))
	for i, row := range preds {
		if len(row) != len(sum) {
			return -1, 0, fmt.Errorf("%w: slice %d has %d outputs, want %d", ErrShape, i, len(row), len(sum))
		}
		floats.Add(sum, row)
	}
	floats.Scale(1/float64(len(preds)), sum)

	label = floats.MaxIdx(sum)
	return label, sum[label], nil
}
