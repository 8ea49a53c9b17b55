package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// MetadataFilename is looked up next to the model when no explicit path is configured.
const MetadataFilename = "model_metadata.json"

var (
	runtimeOnce sync.Once
	runtimeErr  error
	runtimeUp   bool
)

// InitializeRuntime loads the ONNX Runtime shared library. Only the first call has any
// effect; later calls return the first result.
func InitializeRuntime(sharedLibraryPath string) error {
	runtimeOnce.Do(func() {
		if sharedLibraryPath != "" {
			ort.SetSharedLibraryPath(sharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
			return
		}
		runtimeUp = true
	})
	return runtimeErr
}

// DestroyRuntime tears down the ONNX Runtime environment, if it was created.
func DestroyRuntime() {
	if runtimeUp {
		ort.DestroyEnvironment()
		runtimeUp = false
	}
}

// ONNXModel is a Predictor backed by an ONNX Runtime session.
// The session has no bound tensors, so concurrent Predict calls each allocate their own
// and the session itself is never mutated after construction.
type ONNXModel struct {
	session  *ort.DynamicAdvancedSession
	Metadata Metadata
}

// OpenONNX creates a session for the model at modelPath.
func OpenONNX(modelPath string, meta Metadata) (*ONNXModel, error) {
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &ONNXModel{
		session:  session,
		Metadata: meta,
	}, nil
}

// Predict runs one inference pass and returns a copy of the raw output scores.
func (m *ONNXModel) Predict(ctx context.Context, batch *Batch) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if !slices.Equal(batch.Shape, m.Metadata.InputShape) {
		return nil, fmt.Errorf("%w: batch shape %v, model expects %v", ErrInference, batch.Shape, m.Metadata.InputShape)
	}
	inputShape := ort.NewShape(batch.Shape...)
	if int64(len(batch.Data)) != inputShape.FlattenedSize() {
		return nil, fmt.Errorf("%w: batch has %d values, shape %v needs %d", ErrInference, len(batch.Data), batch.Shape, inputShape.FlattenedSize())
	}

	input, err := ort.NewTensor(inputShape, batch.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %w", ErrInference, err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(m.Metadata.OutputShape...))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create output tensor: %w", ErrInference, err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	scores := make([]float32, len(output.GetData()))
	copy(scores, output.GetData())
	return scores, nil
}

func (m *ONNXModel) Close() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}

// ONNXOpener returns an OpenFunc that loads ONNX models.
// If metadataPath is empty, model_metadata.json next to the model is used when present,
// otherwise defaults apply unchanged.
func ONNXOpener(sharedLibraryPath, metadataPath string, defaults Metadata) OpenFunc {
	return func(modelPath string) (Predictor, error) {
		if err := InitializeRuntime(sharedLibraryPath); err != nil {
			return nil, err
		}
		meta := defaults
		explicit := metadataPath != ""
		path := metadataPath
		if !explicit {
			path = filepath.Join(filepath.Dir(modelPath), MetadataFilename)
		}
		loaded, err := LoadMetadata(path, defaults)
		switch {
		case err == nil:
			meta = loaded
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read metadata %v: %w", path, err)
		}
		m, err := OpenONNX(modelPath, meta)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}
