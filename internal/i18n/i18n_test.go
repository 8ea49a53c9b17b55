package i18n

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Brownie44l1/produce-classifier/internal/model"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	c, err := New("en")
	require.NoError(t, err)

	require.Equal(t, language.English, c.Match().Tag)
	require.Equal(t, language.English, c.Match("", "de-DE,de;q=0.9").Tag)
	require.Equal(t, language.Spanish, c.Match("es").Tag)
	require.Equal(t, language.Spanish, c.Match("", "es-MX,es;q=0.9,en;q=0.5").Tag)
	require.Equal(t, language.Russian, c.Match("ru", "es").Tag)
	require.Equal(t, language.English, c.Match("not a tag").Tag)
}

func TestDefaultLocale(t *testing.T) {
	c, err := New("ru")
	require.NoError(t, err)
	require.Equal(t, language.Russian, c.Default().Tag)
	require.Equal(t, language.Russian, c.Match("ja").Tag)
	require.Len(t, c.Languages(), 3)

	_, err = New("ja")
	require.Error(t, err)
	_, err = New("???")
	require.Error(t, err)
}

func TestForError(t *testing.T) {
	m := english
	require.Equal(t, m.ErrDecode, m.ForError(fmt.Errorf("%w: bad", model.ErrDecode)))
	require.Equal(t, m.ErrModelLoad, m.ForError(model.ErrModelLoad))
	require.Equal(t, m.ErrInference, m.ForError(&model.PipelineError{Stage: model.StagePredicting, Err: model.ErrInference}))
	require.Equal(t, m.ErrUnknown, m.ForError(errors.New("?")))
}

func TestPrediction(t *testing.T) {
	label, conf := english.Prediction("tomato", 97.1234)
	require.Equal(t, "Veg/Fruit in image is tomato", label)
	require.Equal(t, "With accuracy of 97.12%", conf)
}

func TestCatalogsComplete(t *testing.T) {
	for _, m := range all {
		for _, s := range []string{m.Title, m.Prompt, m.Submit, m.Result, m.Confidence, m.Help, m.NoImage, m.ErrDecode, m.ErrModelLoad, m.ErrInference, m.ErrUnknown} {
			require.NotEmpty(t, s, m.Tag.String())
		}
	}
}
