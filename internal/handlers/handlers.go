package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/Brownie44l1/produce-classifier/internal/errlog"
	"github.com/Brownie44l1/produce-classifier/internal/i18n"
	"github.com/Brownie44l1/produce-classifier/internal/model"
)

const (
	// Maximum size of an uploaded image
	maxUploadBytes = 10 << 20

	// Number of ranked labels returned by the JSON API
	topK = 5
)

var errNoImage = errors.New("no image file provided")

// Handler is the web front-end of the classification pipeline. Every pipeline failure
// ends at classify, which records it in the error log and turns it into a message for
// the user.
type Handler struct {
	log      logs.Log
	pipeline *model.Pipeline
	errors   *errlog.Logger
	catalog  *i18n.Catalog
	pages    *template.Template
}

func NewHandler(log logs.Log, pipeline *model.Pipeline, errors *errlog.Logger, catalog *i18n.Catalog) (*Handler, error) {
	pages, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Handler{
		log:      log,
		pipeline: pipeline,
		errors:   errors,
		catalog:  catalog,
		pages:    pages,
	}, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	www.SendJSON(w, map[string]any{
		"status":       "healthy",
		"model_loaded": h.pipeline.Loader().Loaded(),
	})
}

func (h *Handler) Labels(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	www.SendJSON(w, h.pipeline.Labels())
}

// Predict scores an already preprocessed image sent as a flat NHWC float array.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		www.PanicBadRequestf("Failed to read request body")
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		www.PanicBadRequestf("Invalid JSON")
	}

	msgs := h.messages(r)
	pred, err := h.classify(r.Context(), requestID(w), func(ctx context.Context) (*model.Prediction, error) {
		batch, err := h.pipeline.BatchFromRequest(&req)
		if err != nil {
			return nil, err
		}
		return h.pipeline.ClassifyBatch(ctx, batch)
	})
	if err != nil {
		sendPipelineError(w, msgs, err)
		return
	}
	www.SendJSON(w, pred.Response(topK))
}

// PredictFromImage classifies a multipart upload and answers with JSON.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := h.readUpload(w, r)
	if err != nil {
		www.PanicBadRequestf("No image file provided. Use 'image' as the form field name")
	}

	msgs := h.messages(r)
	pred, err := h.classify(r.Context(), requestID(w), func(ctx context.Context) (*model.Prediction, error) {
		return h.pipeline.Classify(ctx, data)
	})
	if err != nil {
		sendPipelineError(w, msgs, err)
		return
	}
	www.SendJSON(w, pred.Response(topK))
}

// classify is the single boundary for pipeline failures. Each failure is written to
// the error log exactly once.
func (h *Handler) classify(ctx context.Context, id string, run func(ctx context.Context) (*model.Prediction, error)) (pred *model.Prediction, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pred = nil
			err = fmt.Errorf("%w: panic: %v", model.ErrInference, rec)
		}
		if err != nil {
			h.errors.LogError(err)
			h.log.Warnf("[%v] Classification failed (%v): %v", id, model.KindName(err), err)
		}
	}()

	pred, err = run(ctx)
	if err == nil {
		h.log.Infof("[%v] Predicted %v (%.2f%%)", id, pred.Label, pred.Confidence)
	}
	return
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, errNoImage
	}
	defer file.Close()

	h.log.Infof("Received file: %v, size: %v bytes", header.Filename, header.Size)
	return io.ReadAll(io.LimitReader(file, maxUploadBytes))
}

func (h *Handler) messages(r *http.Request) *i18n.Messages {
	return h.catalog.Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
}

func requestID(w http.ResponseWriter) string {
	id := uuid.NewString()
	w.Header().Set("X-Request-ID", id)
	return id
}

// statusFor maps a pipeline error kind onto an HTTP status.
func statusFor(err error) int {
	switch model.Kind(err) {
	case model.ErrDecode:
		return http.StatusBadRequest
	case model.ErrModelLoad:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func sendPipelineError(w http.ResponseWriter, msgs *i18n.Messages, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(errorResponse{
		Error: msgs.ForError(err),
		Kind:  model.KindName(err),
	})
}
