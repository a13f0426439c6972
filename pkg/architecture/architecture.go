// Package architecture reads the serialized predictor descriptions that the
// generator's batches must match.
//
// Architecture files are Keras model JSON documents named
// "<network>_<classes>mod.json". They are usually stored double-encoded (the
// model JSON as a JSON string); both forms are accepted. Only the parts that
// form the contract with the generator are interpreted: the input shape of the
// first layer and the width of the last Dense layer.
package architecture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"mrimodality/internal/models"
)

// ErrContract reports a mismatch between an architecture and its consumer
var ErrContract = errors.New("architecture contract mismatch")

const modelSchema = `{
	"type": "object",
	"required": ["class_name", "config"],
	"properties": {
		"class_name": {"type": "string"},
		"config": {
			"oneOf": [
				{"$ref": "#/$defs/layers"},
				{
					"type": "object",
					"required": ["layers"],
					"properties": {"layers": {"$ref": "#/$defs/layers"}}
				}
			]
		}
	},
	"$defs": {
		"layers": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["class_name", "config"],
				"properties": {
					"class_name": {"type": "string"},
					"config": {"type": "object"}
				}
			}
		}
	}
}`

var schema = jsonschema.MustCompileString("model.json", modelSchema)

// Layer is the identifying part of one layer definition
type Layer struct {
	Class string
	Name  string
}

// Contract is what a predictor expects from and produces for its inputs
type Contract struct {
	// Class is the model container type, e.g. "Sequential"
	Class string

	// InputShape is the per-example input shape, without the batch dimension
	InputShape []int

	// OutputWidth is the number of units of the final Dense layer
	OutputWidth int

	Layers []Layer
}

type layerConfig struct {
	Name            string `json:"name"`
	BatchInputShape []*int `json:"batch_input_shape"`
	BatchShape      []*int `json:"batch_shape"`
	Units           *int   `json:"units"`
	OutputDim       *int   `json:"output_dim"`
}

type kerasLayer struct {
	ClassName string      `json:"class_name"`
	Config    layerConfig `json:"config"`
}

type kerasModel struct {
	ClassName string          `json:"class_name"`
	Config    json.RawMessage `json:"config"`
}

// FileName returns the conventional file name for a network and class count
func FileName(network string, classes int) string {
	return fmt.Sprintf("%s_%dmod.json", network, classes)
}

// Load reads <dir>/<network>_<classes>mod.json
func Load(dir, network string, classes int) (*Contract, error) {
	path := filepath.Join(dir, FileName(network, classes))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading architecture file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("architecture %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a (possibly string-wrapped) Keras model document
func Parse(data []byte) (*Contract, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	if s, ok := doc.(string); ok {
		data = []byte(s)
		if doc, err = decode(data); err != nil {
			return nil, err
		}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid model document: %w", err)
	}

	var model kerasModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}
	var layers []kerasLayer
	if err := json.Unmarshal(model.Config, &layers); err != nil {
		var wrapped struct {
			Layers []kerasLayer `json:"layers"`
		}
		if err := json.Unmarshal(model.Config, &wrapped); err != nil {
			return nil, err
		}
		layers = wrapped.Layers
	}

	c := &Contract{Class: model.ClassName}
	for _, l := range layers {
		c.Layers = append(c.Layers, Layer{Class: l.ClassName, Name: l.Config.Name})
	}

	first := layers[0].Config
	shape := first.BatchInputShape
	if shape == nil {
		shape = first.BatchShape
	}
	if len(shape) < 2 {
		return nil, errors.New("first layer declares no input shape")
	}
	for _, d := range shape[1:] {
		if d == nil {
			return nil, errors.New("input shape has an unknown dimension")
		}
		c.InputShape = append(c.InputShape, *d)
	}

	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].ClassName != "Dense" {
			continue
		}
		switch {
		case layers[i].Config.Units != nil:
			c.OutputWidth = *layers[i].Config.Units
		case layers[i].Config.OutputDim != nil:
			c.OutputWidth = *layers[i].Config.OutputDim
		}
		break
	}
	if c.OutputWidth <= 0 {
		return nil, errors.New("no Dense output layer found")
	}
	return c, nil
}

func decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("error parsing architecture JSON: %w", err)
	}
	return doc, nil
}

// CheckGenerator verifies that batches of the given example shape and label
// width can be fed to this predictor.
func (c *Contract) CheckGenerator(shape models.InputShape, classes int) error {
	if !equalDims(c.InputShape, shape.Dims()) {
		return fmt.Errorf("%w: model input %v, generator produces %s", ErrContract, c.InputShape, shape)
	}
	if c.OutputWidth != classes {
		return fmt.Errorf("%w: model outputs %d classes, generator encodes %d", ErrContract, c.OutputWidth, classes)
	}
	return nil
}

// CheckAggregator verifies a volume-level network that consumes the
// concatenated predictions of slices per-slice outputs of width classes.
func (c *Contract) CheckAggregator(slices, classes int) error {
	if !equalDims(c.InputShape, []int{slices * classes}) {
		return fmt.Errorf("%w: model input %v, expected [%d]", ErrContract, c.InputShape, slices*classes)
	}
	if c.OutputWidth != classes {
		return fmt.Errorf("%w: model outputs %d classes, expected %d", ErrContract, c.OutputWidth, classes)
	}
	return nil
}

func equalDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
