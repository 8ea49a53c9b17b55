package model

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeModel returns canned scores, like a mocked inference service.
type fakeModel struct {
	scores []float32
	err    error
	calls  atomic.Int32
	closed atomic.Bool
	panics bool
}

func (f *fakeModel) Predict(ctx context.Context, batch *Batch) ([]float32, error) {
	f.calls.Add(1)
	if f.panics {
		panic("tensor exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float32, len(f.scores))
	copy(out, f.scores)
	return out, nil
}

func (f *fakeModel) Close() {
	f.closed.Store(true)
}

// peakScores returns len(DefaultLabels) scores with the highest at index peak.
func peakScores(peak int) []float32 {
	s := make([]float32, len(DefaultLabels))
	for i := range s {
		s[i] = float32(i%5) * 0.1
	}
	s[peak] = 4.5
	return s
}

func writeModelFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "Image_classify.onnx")
	require.NoError(t, os.WriteFile(path, []byte("not really onnx"), 0644))
	return path
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
