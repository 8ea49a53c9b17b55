// Package i18n holds the user-facing strings of the web and chat front-ends.
package i18n

import (
	"fmt"

	"github.com/Brownie44l1/produce-classifier/internal/model"
	"golang.org/x/text/language"
)

// Messages is the fixed set of templates for one language.
type Messages struct {
	Tag          language.Tag
	Title        string
	Prompt       string
	Submit       string
	Result       string // %v is the label
	Confidence   string // %.2f is the percentage
	Help         string
	NoImage      string
	ErrDecode    string
	ErrModelLoad string
	ErrInference string
	ErrUnknown   string
}

var english = &Messages{
	Tag:          language.English,
	Title:        "Image Classification Model",
	Prompt:       "Upload a photo of a fruit or vegetable",
	Submit:       "Classify",
	Result:       "Veg/Fruit in image is %v",
	Confidence:   "With accuracy of %.2f%%",
	Help:         "Send me a photo of a fruit or vegetable and I will tell you what it is.",
	NoImage:      "Please choose an image file (JPEG or PNG).",
	ErrDecode:    "That file could not be read as an image. Please upload a JPEG or PNG.",
	ErrModelLoad: "The classification model is not available right now. Please try again later.",
	ErrInference: "The image could not be classified. Please try another photo.",
	ErrUnknown:   "Something went wrong. Please try again.",
}

var spanish = &Messages{
	Tag:          language.Spanish,
	Title:        "Modelo de clasificación de imágenes",
	Prompt:       "Sube una foto de una fruta o verdura",
	Submit:       "Clasificar",
	Result:       "La fruta o verdura de la imagen es %v",
	Confidence:   "Con una precisión de %.2f%%",
	Help:         "Envíame una foto de una fruta o verdura y te diré qué es.",
	NoImage:      "Elige un archivo de imagen (JPEG o PNG).",
	ErrDecode:    "No se pudo leer el archivo como imagen. Sube un JPEG o PNG.",
	ErrModelLoad: "El modelo de clasificación no está disponible. Inténtalo más tarde.",
	ErrInference: "No se pudo clasificar la imagen. Prueba con otra foto.",
	ErrUnknown:   "Algo salió mal. Inténtalo de nuevo.",
}

var russian = &Messages{
	Tag:          language.Russian,
	Title:        "Модель классификации изображений",
	Prompt:       "Загрузите фото фрукта или овоща",
	Submit:       "Распознать",
	Result:       "На изображении: %v",
	Confidence:   "Уверенность: %.2f%%",
	Help:         "Отправьте мне фото фрукта или овоща, и я скажу, что это.",
	NoImage:      "Выберите файл изображения (JPEG или PNG).",
	ErrDecode:    "Не удалось прочитать файл как изображение. Загрузите JPEG или PNG.",
	ErrModelLoad: "Модель сейчас недоступна. Попробуйте позже.",
	ErrInference: "Не удалось распознать изображение. Попробуйте другое фото.",
	ErrUnknown:   "Что-то пошло не так. Попробуйте ещё раз.",
}

var all = []*Messages{english, spanish, russian}

// Catalog picks a Messages set for a request.
type Catalog struct {
	tags    []language.Tag
	matcher language.Matcher
}

// New creates a catalog whose fallback language is defaultLang.
func New(defaultLang string) (*Catalog, error) {
	def, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default locale %q: %w", defaultLang, err)
	}
	defBase, _ := def.Base()
	first := -1
	for i, m := range all {
		if b, _ := m.Tag.Base(); b == defBase {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, fmt.Errorf("no messages for default locale %q", defaultLang)
	}
	tags := []language.Tag{all[first].Tag}
	for i, m := range all {
		if i != first {
			tags = append(tags, m.Tag)
		}
	}
	return &Catalog{
		tags:    tags,
		matcher: language.NewMatcher(tags),
	}, nil
}

// Match returns the best Messages for the given preferences, in priority order. Each
// preference may be a single tag ("es") or an Accept-Language header value.
func (c *Catalog) Match(preferences ...string) *Messages {
	var want []language.Tag
	for _, p := range preferences {
		if p == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		want = append(want, tags...)
	}
	_, idx, _ := c.matcher.Match(want...)
	return c.lookup(c.tags[idx])
}

// Default returns the fallback Messages.
func (c *Catalog) Default() *Messages {
	return c.lookup(c.tags[0])
}

// Languages lists the supported language tags, fallback first.
func (c *Catalog) Languages() []language.Tag {
	return c.tags
}

func (c *Catalog) lookup(tag language.Tag) *Messages {
	for _, m := range all {
		if m.Tag == tag {
			return m
		}
	}
	return english
}

// ForError returns the friendly message for a pipeline failure.
func (m *Messages) ForError(err error) string {
	switch model.Kind(err) {
	case model.ErrDecode:
		return m.ErrDecode
	case model.ErrModelLoad:
		return m.ErrModelLoad
	case model.ErrInference:
		return m.ErrInference
	}
	return m.ErrUnknown
}

// Prediction renders the two result lines.
func (m *Messages) Prediction(label string, confidence float64) (string, string) {
	return fmt.Sprintf(m.Result, label), fmt.Sprintf(m.Confidence, confidence)
}
