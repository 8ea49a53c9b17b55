package model

import (
	"context"
	"fmt"
	"slices"
)

// Stage of a single pipeline run. A run goes Idle, Decoding, Predicting, Scoring,
// Scored, or stops at Failed from any of the working stages.
type Stage int

const (
	StageIdle Stage = iota
	StageDecoding
	StagePredicting
	StageScoring
	StageScored
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageDecoding:
		return "decoding"
	case StagePredicting:
		return "predicting"
	case StageScoring:
		return "scoring"
	case StageScored:
		return "scored"
	case StageFailed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// PipelineError records the stage a run failed in. The wrapped error carries the kind
// (ErrDecode, ErrModelLoad or ErrInference).
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%v: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Pipeline turns image bytes into a Prediction: decode, resize, predict, score.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	loader  *Loader
	labels  []string
	opts    PreprocessOptions
	onStage func(Stage)
}

func NewPipeline(loader *Loader, labels []string, opts PreprocessOptions) *Pipeline {
	return &Pipeline{
		loader: loader,
		labels: labels,
		opts:   opts,
	}
}

func (p *Pipeline) Labels() []string           { return p.labels }
func (p *Pipeline) Options() PreprocessOptions { return p.opts }
func (p *Pipeline) Loader() *Loader            { return p.loader }

// OnStage registers fn to be called on every stage a run enters, after Idle.
// It must be set before the pipeline is shared, and fn must be safe for concurrent use.
func (p *Pipeline) OnStage(fn func(Stage)) {
	p.onStage = fn
}

func (p *Pipeline) enter(s Stage) {
	if p.onStage != nil {
		p.onStage(s)
	}
}

// finish records the end of a run. It runs after recoverStage, so a recovered panic
// ends in StageFailed.
func (p *Pipeline) finish(err *error) {
	if *err != nil {
		p.enter(StageFailed)
	} else {
		p.enter(StageScored)
	}
}

// Classify runs the whole pipeline on an encoded image.
func (p *Pipeline) Classify(ctx context.Context, data []byte) (pred *Prediction, err error) {
	defer p.finish(&err)
	defer recoverStage(StageDecoding, &pred, &err)
	p.enter(StageDecoding)
	batch, err := Preprocess(data, p.opts)
	if err != nil {
		return nil, &PipelineError{Stage: StageDecoding, Err: err}
	}
	return p.predict(ctx, batch)
}

// ClassifyFile runs the whole pipeline on an image file.
func (p *Pipeline) ClassifyFile(ctx context.Context, filename string) (pred *Prediction, err error) {
	defer p.finish(&err)
	defer recoverStage(StageDecoding, &pred, &err)
	p.enter(StageDecoding)
	batch, err := PreprocessFile(filename, p.opts)
	if err != nil {
		return nil, &PipelineError{Stage: StageDecoding, Err: err}
	}
	return p.predict(ctx, batch)
}

// ClassifyBatch runs prediction and scoring on an already preprocessed batch.
func (p *Pipeline) ClassifyBatch(ctx context.Context, batch *Batch) (pred *Prediction, err error) {
	defer p.finish(&err)
	return p.predict(ctx, batch)
}

func (p *Pipeline) predict(ctx context.Context, batch *Batch) (pred *Prediction, err error) {
	defer recoverStage(StagePredicting, &pred, &err)
	p.enter(StagePredicting)

	want := []int64{1, int64(p.opts.Height), int64(p.opts.Width), Channels}
	if !slices.Equal(batch.Shape, want) {
		return nil, &PipelineError{Stage: StagePredicting, Err: fmt.Errorf("%w: batch shape %v, want %v", ErrInference, batch.Shape, want)}
	}

	model, err := p.loader.Get(ctx)
	if err != nil {
		return nil, &PipelineError{Stage: StagePredicting, Err: err}
	}
	raw, err := model.Predict(ctx, batch)
	if err != nil {
		if Kind(err) == nil {
			err = fmt.Errorf("%w: %w", ErrInference, err)
		}
		return nil, &PipelineError{Stage: StagePredicting, Err: err}
	}

	p.enter(StageScoring)
	pred, err = Score(raw, p.labels)
	if err != nil {
		return nil, &PipelineError{Stage: StageScoring, Err: err}
	}
	return pred, nil
}

// BatchFromRequest validates a flattened NHWC image against the pipeline's input size.
func (p *Pipeline) BatchFromRequest(req *PredictionRequest) (*Batch, error) {
	n := p.opts.Height * p.opts.Width * Channels
	if len(req.Image) != n {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrDecode, n, len(req.Image))
	}
	return &Batch{
		Shape: []int64{1, int64(p.opts.Height), int64(p.opts.Width), Channels},
		Data:  req.Image,
	}, nil
}

func recoverStage(stage Stage, pred **Prediction, err *error) {
	if r := recover(); r != nil {
		*pred = nil
		*err = &PipelineError{Stage: stage, Err: fmt.Errorf("%w: panic: %v", ErrInference, r)}
	}
}
