package model

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, fake *fakeModel) *Pipeline {
	path := writeModelFile(t, t.TempDir())
	loader := NewLoader(logs.NewTestingLog(t), path, "", func(string) (Predictor, error) {
		return fake, nil
	})
	return NewPipeline(loader, DefaultLabels, DefaultPreprocessOptions())
}

func tomatoJPEG(t *testing.T) []byte {
	return encodeJPEG(t, solidImage(320, 240, color.NRGBA{220, 40, 30, 255}))
}

func TestPipelineTomato(t *testing.T) {
	fake := &fakeModel{scores: peakScores(33)}
	p := newTestPipeline(t, fake)

	pred, err := p.Classify(context.Background(), tomatoJPEG(t))
	require.NoError(t, err)
	require.Equal(t, "tomato", pred.Label)
	require.InDelta(t, Softmax(fake.scores)[33]*100, pred.Confidence, 1e-9)
	require.Equal(t, int32(1), fake.calls.Load())
}

func TestPipelineRepeatable(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{scores: peakScores(9)})
	img := tomatoJPEG(t)

	a, err := p.Classify(context.Background(), img)
	require.NoError(t, err)
	b, err := p.Classify(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, a.Label, b.Label)
	require.Equal(t, a.Confidence, b.Confidence)
	require.Equal(t, "corn", a.Label)
}

func TestPipelineMalformedImage(t *testing.T) {
	fake := &fakeModel{scores: peakScores(33)}
	p := newTestPipeline(t, fake)

	pred, err := p.Classify(context.Background(), []byte("<html>not an image</html>"))
	require.Nil(t, pred)
	require.ErrorIs(t, err, ErrDecode)
	require.Equal(t, ErrDecode, Kind(err))

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, StageDecoding, perr.Stage)
	require.Equal(t, int32(0), fake.calls.Load())
}

func TestPipelineMissingModel(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(logs.NewTestingLog(t), filepath.Join(dir, "missing.onnx"), "", func(string) (Predictor, error) {
		t.Fatal("open must not be called without a model file")
		return nil, nil
	})
	p := NewPipeline(loader, DefaultLabels, DefaultPreprocessOptions())

	pred, err := p.Classify(context.Background(), tomatoJPEG(t))
	require.Nil(t, pred)
	require.ErrorIs(t, err, ErrModelLoad)
	require.Equal(t, "model_load", KindName(err))

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, StagePredicting, perr.Stage)
}

func TestPipelineInferenceErrors(t *testing.T) {
	// Model with the wrong number of outputs
	p := newTestPipeline(t, &fakeModel{scores: make([]float32, 10)})
	_, err := p.Classify(context.Background(), tomatoJPEG(t))
	require.ErrorIs(t, err, ErrInference)
	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, StageScoring, perr.Stage)

	// Plain runtime error from the model is classified as inference
	p = newTestPipeline(t, &fakeModel{err: errors.New("shape [1 180 180 4] not supported")})
	_, err = p.Classify(context.Background(), tomatoJPEG(t))
	require.ErrorIs(t, err, ErrInference)

	// A panicking model does not escape the pipeline
	p = newTestPipeline(t, &fakeModel{panics: true})
	_, err = p.Classify(context.Background(), tomatoJPEG(t))
	require.ErrorIs(t, err, ErrInference)

	// Batch of the wrong size
	p = newTestPipeline(t, &fakeModel{scores: peakScores(0)})
	_, err = p.ClassifyBatch(context.Background(), &Batch{Shape: []int64{1, 180, 180, 4}, Data: make([]float32, 180*180*4)})
	require.ErrorIs(t, err, ErrInference)
}

func TestPipelineClassifyFile(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{scores: peakScores(0)})
	path := filepath.Join(t.TempDir(), "apple.jpg")
	require.NoError(t, os.WriteFile(path, tomatoJPEG(t), 0644))

	pred, err := p.ClassifyFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "apple", pred.Label)
}

func TestBatchFromRequest(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{scores: peakScores(35)})

	_, err := p.BatchFromRequest(&PredictionRequest{Image: make([]float32, 10)})
	require.ErrorIs(t, err, ErrDecode)

	batch, err := p.BatchFromRequest(&PredictionRequest{Image: make([]float32, 180*180*3)})
	require.NoError(t, err)
	pred, err := p.ClassifyBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, "watermelon", pred.Label)
}

func TestKind(t *testing.T) {
	require.Nil(t, Kind(nil))
	require.Nil(t, Kind(errors.New("other")))
	require.Equal(t, "unknown", KindName(errors.New("other")))
	require.Equal(t, "decode", KindName(&PipelineError{Stage: StageDecoding, Err: ErrDecode}))
	require.Equal(t, "inference", KindName(ErrInference))
}

func TestPipelineStages(t *testing.T) {
	var stages []Stage
	record := func(p *Pipeline) {
		stages = nil
		p.OnStage(func(s Stage) { stages = append(stages, s) })
	}

	p := newTestPipeline(t, &fakeModel{scores: peakScores(33)})
	record(p)
	_, err := p.Classify(context.Background(), tomatoJPEG(t))
	require.NoError(t, err)
	require.Equal(t, []Stage{StageDecoding, StagePredicting, StageScoring, StageScored}, stages)

	stages = nil
	_, err = p.Classify(context.Background(), []byte("garbage"))
	require.Error(t, err)
	require.Equal(t, []Stage{StageDecoding, StageFailed}, stages)

	p = newTestPipeline(t, &fakeModel{panics: true})
	record(p)
	_, err = p.Classify(context.Background(), tomatoJPEG(t))
	require.ErrorIs(t, err, ErrInference)
	require.Equal(t, []Stage{StageDecoding, StagePredicting, StageFailed}, stages)

	require.Equal(t, "idle", StageIdle.String())
	require.Equal(t, "failed", StageFailed.String())
}
