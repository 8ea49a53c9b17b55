package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// Channels is the number of color channels the model consumes (RGB).
const Channels = 3

// Metadata describes the tensors of an exported model. It is normally kept in a JSON
// file next to the model, and any field missing from that file keeps its default.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`  // [1, height, width, 3]
	OutputShape []int64  `json:"output_shape"` // [1, len(classes)]
	Classes     []string `json:"classes"`
}

// DefaultMetadata builds metadata for an NHWC model with a single input and output.
func DefaultMetadata(height, width int, classes []string) Metadata {
	return Metadata{
		InputName:   "input",
		OutputName:  "output",
		InputShape:  []int64{1, int64(height), int64(width), Channels},
		OutputShape: []int64{1, int64(len(classes))},
		Classes:     classes,
	}
}

// LoadMetadata reads a metadata JSON file on top of defaults.
func LoadMetadata(filename string, defaults Metadata) (Metadata, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return defaults, err
	}
	// Unmarshal appends into existing slices, so give it copies to overwrite.
	meta := defaults
	meta.InputShape = slices.Clone(defaults.InputShape)
	meta.OutputShape = slices.Clone(defaults.OutputShape)
	meta.Classes = slices.Clone(defaults.Classes)
	if err := json.Unmarshal(b, &meta); err != nil {
		return defaults, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return meta, meta.Validate()
}

// Validate checks that the shapes agree with each other and with the class list.
func (m Metadata) Validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[3] != Channels {
		return fmt.Errorf("input shape %v is not [1 H W %d]", m.InputShape, Channels)
	}
	if m.InputShape[1] <= 0 || m.InputShape[2] <= 0 {
		return fmt.Errorf("input shape %v has empty spatial dimensions", m.InputShape)
	}
	if len(m.OutputShape) != 2 || m.OutputShape[0] != 1 {
		return fmt.Errorf("output shape %v is not [1 N]", m.OutputShape)
	}
	if int(m.OutputShape[1]) != len(m.Classes) {
		return fmt.Errorf("output shape %v does not match %d classes", m.OutputShape, len(m.Classes))
	}
	return nil
}

// Batch is a single preprocessed image with a leading batch dimension of 1,
// laid out NHWC.
type Batch struct {
	Shape []int64
	Data  []float32
}

// Predictor runs a loaded model. Implementations must be safe for concurrent use
// once constructed.
type Predictor interface {
	// Predict returns the raw (unnormalized) score vector for the batch
	Predict(ctx context.Context, batch *Batch) ([]float32, error)

	// Close releases the model. Predict must not be called afterwards.
	Close()
}

// LabelScore is one entry of a ranked prediction.
type LabelScore struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence_percent"`
}

// PredictionRequest carries an already preprocessed batch, flattened NHWC.
type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	PredictedLabel    string       `json:"predicted_label"`
	ConfidencePercent float64      `json:"confidence_percent"`
	Top               []LabelScore `json:"top,omitempty"`
}
