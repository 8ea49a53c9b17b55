package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/nfnt/resize"

	"github.com/Brownie44l1/produce-classifier/internal/errlog"
	"github.com/Brownie44l1/produce-classifier/internal/model"
)

// ModelFilename is the model file name in both the primary and fallback locations.
const ModelFilename = "Image_classify.onnx"

// DefaultFallbackModelPath is used when no model sits next to the application.
const DefaultFallbackModelPath = "/opt/produce-classifier/models/" + ModelFilename

type Config struct {
	Port               string
	AppDir             string
	ModelPath          string
	FallbackModelPath  string
	MetadataPath       string // empty means model_metadata.json next to the model, if present
	OnnxRuntimeLib     string
	ImgHeight          int
	ImgWidth           int
	LabelsFile         string
	Interpolation      string
	ErrorLogPath       string
	DefaultLocale      string
	RateLimitPerMinute int
	TelegramToken      string

	Labels []string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	appDir := AppDir()
	cfg := &Config{
		Port:              getenv("PORT", "8080"),
		AppDir:            appDir,
		ModelPath:         getenv("MODEL_PATH", filepath.Join(appDir, "models", ModelFilename)),
		FallbackModelPath: getenv("MODEL_FALLBACK_PATH", DefaultFallbackModelPath),
		MetadataPath:      os.Getenv("MODEL_METADATA_PATH"),
		OnnxRuntimeLib:    os.Getenv("ONNXRUNTIME_LIB"),
		LabelsFile:        os.Getenv("LABELS_FILE"),
		Interpolation:     getenv("RESIZE_INTERPOLATION", "nearest"),
		ErrorLogPath:      getenv("ERROR_LOG_PATH", errlog.DefaultPath),
		DefaultLocale:     getenv("DEFAULT_LOCALE", "en"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
	}

	var err error
	if cfg.ImgHeight, err = getenvInt("IMG_HEIGHT", model.DefaultImageHeight); err != nil {
		return nil, err
	}
	if cfg.ImgWidth, err = getenvInt("IMG_WIDTH", model.DefaultImageWidth); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getenvInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}

	cfg.Labels = model.DefaultLabels
	if cfg.LabelsFile != "" {
		if cfg.Labels, err = model.LoadLabelFile(cfg.LabelsFile); err != nil {
			return nil, fmt.Errorf("failed to load labels from %v: %w", cfg.LabelsFile, err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ImgHeight <= 0 || c.ImgWidth <= 0 {
		return fmt.Errorf("IMG_HEIGHT and IMG_WIDTH must be positive (got %dx%d)", c.ImgHeight, c.ImgWidth)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.ModelPath == "" && c.FallbackModelPath == "" {
		return fmt.Errorf("MODEL_PATH or MODEL_FALLBACK_PATH is required")
	}
	if _, err := model.ParseInterpolation(c.Interpolation); err != nil {
		return err
	}
	return model.ValidateLabels(c.Labels)
}

// PreprocessOptions for the configured input size and resize filter.
func (c *Config) PreprocessOptions() model.PreprocessOptions {
	interp, err := model.ParseInterpolation(c.Interpolation)
	if err != nil {
		interp = resize.NearestNeighbor
	}
	return model.PreprocessOptions{
		Height:        c.ImgHeight,
		Width:         c.ImgWidth,
		Interpolation: interp,
	}
}

// Metadata is the default tensor description for the configured model.
func (c *Config) Metadata() model.Metadata {
	return model.DefaultMetadata(c.ImgHeight, c.ImgWidth, c.Labels)
}

// AppDir is the project root: the working directory, or two levels up when started
// from inside cmd/<name>.
func AppDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(filepath.Dir(wd)) == "cmd" {
		return filepath.Join(wd, "..", "..")
	}
	return wd
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%v must be an integer: %w", key, err)
	}
	return n, nil
}
