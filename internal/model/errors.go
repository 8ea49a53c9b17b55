package model

import "errors"

// Error kinds returned by the classification pipeline. Every failure returned by
// Pipeline wraps exactly one of these, so callers can match with errors.Is.
var (
	ErrModelLoad = errors.New("model load failed")
	ErrDecode    = errors.New("image decode failed")
	ErrInference = errors.New("inference failed")
)

// Kind returns the error kind wrapped by err, or nil if err is not a pipeline error.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrModelLoad):
		return ErrModelLoad
	case errors.Is(err, ErrDecode):
		return ErrDecode
	case errors.Is(err, ErrInference):
		return ErrInference
	}
	return nil
}

// KindName is a short stable name for the kind of err, for JSON responses and logs.
func KindName(err error) string {
	switch Kind(err) {
	case ErrModelLoad:
		return "model_load"
	case ErrDecode:
		return "decode"
	case ErrInference:
		return "inference"
	}
	return "unknown"
}
