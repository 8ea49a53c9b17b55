package handlers

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/julienschmidt/httprouter"

	"github.com/Brownie44l1/produce-classifier/internal/i18n"
	"github.com/Brownie44l1/produce-classifier/internal/model"
)

//go:embed templates
var templatesFS embed.FS

// Width of the echoed upload on the result page
const thumbnailWidth = 200

type pageData struct {
	M          *i18n.Messages
	Lang       string
	Languages  []string
	Result     string
	Confidence string
	Image      template.URL
	Error      string
}

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// Index shows the upload form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.render(w, h.newPage(r))
}

// Classify handles the upload form. The result replaces the form's result area; on
// failure only the error is shown.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page := h.newPage(r)

	data, err := h.readUpload(w, r)
	if err != nil {
		page.Error = page.M.NoImage
		h.render(w, page)
		return
	}

	pred, err := h.classify(r.Context(), requestID(w), func(ctx context.Context) (*model.Prediction, error) {
		return h.pipeline.Classify(ctx, data)
	})
	if err != nil {
		page.Error = page.M.ForError(err)
		h.render(w, page)
		return
	}

	page.Result, page.Confidence = page.M.Prediction(pred.Label, pred.Confidence)
	if uri, err := thumbnail(data); err == nil {
		page.Image = uri
	} else {
		h.log.Warnf("Failed to create thumbnail: %v", err)
	}
	h.render(w, page)
}

func (h *Handler) newPage(r *http.Request) *pageData {
	m := h.messages(r)
	langs := []string{}
	for _, t := range h.catalog.Languages() {
		langs = append(langs, t.String())
	}
	return &pageData{
		M:         m,
		Lang:      m.Tag.String(),
		Languages: langs,
	}
}

func (h *Handler) render(w http.ResponseWriter, page *pageData) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, "index.html", page); err != nil {
		h.log.Errorf("Failed to render page: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// thumbnail returns the uploaded image as a JPEG data URI, scaled down to thumbnailWidth.
func thumbnail(data []byte) (template.URL, error) {
	img, err := model.Decode(data)
	if err != nil {
		return "", err
	}
	if img.Bounds().Dx() > thumbnailWidth {
		img = imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", err
	}
	return template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
