package model

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cyclopcam/logs"
)

// OpenFunc constructs a Predictor from a model file.
type OpenFunc func(modelPath string) (Predictor, error)

// ResolveModelPath returns primary if a model file exists there, otherwise fallback.
func ResolveModelPath(primary, fallback string) (string, error) {
	for _, p := range []string{primary, fallback} {
		if p == "" {
			continue
		}
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no model file at %q or %q", ErrModelLoad, primary, fallback)
}

type loadedModel struct {
	predictor Predictor
	path      string
}

// Loader owns the process-wide model handle. The handle is created on the first Get,
// then shared read-only by every caller. A failed load is not remembered, so a model
// that appears later is picked up by the next request.
type Loader struct {
	log      logs.Log
	primary  string
	fallback string
	open     OpenFunc

	mu     sync.Mutex // serializes loading
	loaded atomic.Pointer[loadedModel]
	closed bool // guarded by mu
}

func NewLoader(log logs.Log, primary, fallback string, open OpenFunc) *Loader {
	return &Loader{
		log:      log,
		primary:  primary,
		fallback: fallback,
		open:     open,
	}
}

// Get returns the shared Predictor, loading it if this is the first successful call.
// Concurrent first calls wait for a single load.
func (l *Loader) Get(ctx context.Context) (Predictor, error) {
	if m := l.loaded.Load(); m != nil {
		return m.predictor, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if m := l.loaded.Load(); m != nil {
		return m.predictor, nil
	}
	if l.closed {
		return nil, fmt.Errorf("%w: loader is closed", ErrModelLoad)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	path, err := ResolveModelPath(l.primary, l.fallback)
	if err != nil {
		l.log.Errorf("%v", err)
		return nil, err
	}
	if path != l.primary {
		l.log.Warnf("Model not found at %v, falling back to %v", l.primary, path)
	}

	l.log.Infof("Loading model from: %v", path)
	p, err := l.open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrModelLoad, path, err)
	}
	l.loaded.Store(&loadedModel{predictor: p, path: path})
	l.log.Infof("Model loaded: %v", path)
	return p, nil
}

// Loaded reports whether the model handle exists.
func (l *Loader) Loaded() bool {
	return l.loaded.Load() != nil
}

// Path of the loaded model, or "" before the first successful load.
func (l *Loader) Path() string {
	if m := l.loaded.Load(); m != nil {
		return m.path
	}
	return ""
}

// Close releases the model handle. It must only be called once no request can still use it.
// Later calls to Get fail with ErrModelLoad instead of loading the model again.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if m := l.loaded.Swap(nil); m != nil {
		m.predictor.Close()
	}
}
