package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cheggaaa/pb/v3"
	"github.com/cyclopcam/logs"

	"github.com/Brownie44l1/produce-classifier/internal/config"
	"github.com/Brownie44l1/produce-classifier/internal/errlog"
	"github.com/Brownie44l1/produce-classifier/internal/model"
)

// result is one JSON line of output
type result struct {
	File string `json:"file"`
	*model.PredictionResponse
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp"}

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("classify", "Classify fruit and vegetable photos")
	images := parser.StringList("i", "image", &argparse.Options{Help: "Image file (may be repeated)"})
	dir := parser.String("d", "dir", &argparse.Options{Help: "Classify every image in this directory"})
	modelFile := parser.String("m", "model", &argparse.Options{Help: "Path to ONNX model file (overrides MODEL_PATH)"})
	topK := parser.Int("k", "top", &argparse.Options{Help: "Number of ranked labels to print", Default: 1})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	files := *images
	if *dir != "" {
		found, err := findImages(*dir)
		check(err)
		files = append(files, found...)
	}
	if len(files) == 0 {
		fmt.Print(parser.Usage("Specify at least one image with -i or a directory with -d"))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	code := run(logger, files, *modelFile, *topK)
	logger.Close()
	os.Exit(code)
}

// run classifies files and returns the process exit code: 2 if any image failed.
func run(logger logs.Log, files []string, modelFile string, topK int) int {
	cfg, err := config.Load()
	check(err)
	if modelFile != "" {
		cfg.ModelPath = modelFile
	}
	errorLog := errlog.New(cfg.ErrorLogPath, logger)

	loader := model.NewLoader(logger, cfg.ModelPath, cfg.FallbackModelPath, model.ONNXOpener(cfg.OnnxRuntimeLib, cfg.MetadataPath, cfg.Metadata()))
	defer model.DestroyRuntime()
	defer loader.Close()
	pipeline := model.NewPipeline(loader, cfg.Labels, cfg.PreprocessOptions())

	var bar *pb.ProgressBar
	if len(files) > 1 {
		bar = pb.StartNew(len(files))
	}

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, f := range files {
		r := result{File: f}
		pred, err := pipeline.ClassifyFile(context.Background(), f)
		if err != nil {
			errorLog.LogError(err)
			r.Error = err.Error()
			r.Kind = model.KindName(err)
			failed++
		} else {
			r.PredictionResponse = pred.Response(topK)
		}
		check(enc.Encode(r))
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if failed != 0 {
		logger.Warnf("%v of %v images failed, see %v", failed, len(files), errorLog.Path())
		return 2
	}
	return 0
}

// findImages lists the image files directly inside dir, sorted by name.
func findImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
