package model

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

const (
	DefaultImageHeight = 180
	DefaultImageWidth  = 180

	// Uploads larger than this are rejected before the pixels are decoded.
	MaxDecodePixels = 64 * 1024 * 1024
)

// PreprocessOptions controls how an image is turned into a Batch.
type PreprocessOptions struct {
	Height        int
	Width         int
	Interpolation resize.InterpolationFunction
}

// DefaultPreprocessOptions matches the training pipeline: 180x180, nearest neighbour.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		Height:        DefaultImageHeight,
		Width:         DefaultImageWidth,
		Interpolation: resize.NearestNeighbor,
	}
}

// ParseInterpolation maps a config name onto a resize filter.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "nearest":
		return resize.NearestNeighbor, nil
	case "bilinear":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	}
	return resize.NearestNeighbor, fmt.Errorf("unknown interpolation %q (want nearest, bilinear, bicubic or lanczos3)", name)
}

// Decode parses JPEG, PNG, WebP, BMP, GIF or TIFF data.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels (%dx%d)", ErrDecode, cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > MaxDecodePixels {
		return nil, fmt.Errorf("%w: image too large (%dx%d)", ErrDecode, cfg.Width, cfg.Height)
	}
	// EXIF orientation is ignored, pixels are used in stored order.
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

// Preprocess decodes an uploaded image and converts it into a model batch.
func Preprocess(data []byte, opts PreprocessOptions) (*Batch, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return PreprocessImage(img, opts)
}

// PreprocessFile is Preprocess for an image on disk.
func PreprocessFile(filename string, opts PreprocessOptions) (*Batch, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return Preprocess(data, opts)
}

// PreprocessImage stretches img to opts.Height x opts.Width (aspect ratio is not
// preserved) and flattens it NHWC with raw 0..255 channel values.
func PreprocessImage(img image.Image, opts PreprocessOptions) (*Batch, error) {
	if opts.Height <= 0 || opts.Width <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", ErrInference, opts.Width, opts.Height)
	}

	resized := stretch(dropAlpha(img), opts)

	data := make([]float32, opts.Height*opts.Width*Channels)
	bounds := resized.Bounds()
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(resized.At(x, y)).(color.NRGBA)
			data[i] = float32(c.R)
			data[i+1] = float32(c.G)
			data[i+2] = float32(c.B)
			i += Channels
		}
	}

	return &Batch{
		Shape: []int64{1, int64(opts.Height), int64(opts.Width), Channels},
		Data:  data,
	}, nil
}

// stretch resizes img to exactly opts.Width x opts.Height. Nearest copies the source
// pixel at floor((x+0.5)*scale), the same sample PIL's NEAREST takes. nfnt's
// NearestNeighbor averages a box of pixels when shrinking, so it is not used for it.
func stretch(img *image.NRGBA, opts PreprocessOptions) image.Image {
	if opts.Interpolation == resize.NearestNeighbor {
		return imaging.Resize(img, opts.Width, opts.Height, imaging.NearestNeighbor)
	}
	return resize.Resize(uint(opts.Width), uint(opts.Height), img, opts.Interpolation)
}

// dropAlpha converts img to opaque RGB by discarding the alpha channel, keeping the
// stored color values rather than compositing onto a background.
func dropAlpha(img image.Image) *image.NRGBA {
	rgb := imaging.Clone(img)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}
	return rgb
}
