package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultLabels(t *testing.T) {
	require.Len(t, DefaultLabels, 36)
	require.NoError(t, ValidateLabels(DefaultLabels))
	require.Equal(t, "apple", DefaultLabels[0])
	require.Equal(t, "tomato", DefaultLabels[33])
	require.Equal(t, "watermelon", DefaultLabels[35])
}

func TestLoadLabelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("apple\n\n  banana \ncarrot\n"), 0644))

	labels, err := LoadLabelFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"apple", "banana", "carrot"}, labels)

	require.NoError(t, os.WriteFile(path, []byte("apple\nbanana\napple\n"), 0644))
	_, err = LoadLabelFile(path)
	require.Error(t, err)

	_, err = LoadLabelFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}

func TestValidateLabels(t *testing.T) {
	require.Error(t, ValidateLabels(nil))
	require.Error(t, ValidateLabels([]string{"a", " "}))
	require.NoError(t, ValidateLabels([]string{"a", "b"}))
}

func TestMetadata(t *testing.T) {
	meta := DefaultMetadata(180, 180, DefaultLabels)
	require.NoError(t, meta.Validate())
	require.Equal(t, []int64{1, 180, 180, 3}, meta.InputShape)
	require.Equal(t, []int64{1, 36}, meta.OutputShape)

	path := filepath.Join(t.TempDir(), MetadataFilename)
	require.NoError(t, os.WriteFile(path, []byte(`{"input_name": "rescaling_input", "output_name": "dense_1"}`), 0644))
	loaded, err := LoadMetadata(path, meta)
	require.NoError(t, err)
	require.Equal(t, "rescaling_input", loaded.InputName)
	require.Equal(t, "dense_1", loaded.OutputName)
	require.Equal(t, meta.InputShape, loaded.InputShape)

	require.NoError(t, os.WriteFile(path, []byte(`{"output_shape": [1, 10]}`), 0644))
	_, err = LoadMetadata(path, meta)
	require.Error(t, err)

	bad := meta
	bad.InputShape = []int64{1, 3, 180, 180}
	require.Error(t, bad.Validate())
}
