package pages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func TestParse_KeepsOrderAndDropsDuplicates(t *testing.T) {
	list, err := Parse([]byte(`{"pages": ["index", "about", "contact", "about"]}`), "pages")
	require.NoError(t, err)
	assert.Equal(t, List{"index", "about", "contact"}, list)
}

func TestParse_MissingKeyIsEmpty(t *testing.T) {
	list, err := Parse([]byte(`{"other": 1}`), "pages")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"invalid json": `{"pages": [`,
		"not an array": `{"pages": "index"}`,
		"non string":   `{"pages": ["index", 3]}`,
		"path escape":  `{"pages": ["../secret"]}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input), "pages")
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"site": {"pages": ["blog/post", "index"]}}`), 0o644))

	list, err := Load(path, "site.pages")
	require.NoError(t, err)
	assert.Equal(t, List{"blog/post", "index"}, list)

	list, err = Load(filepath.Join(dir, "missing.json"), "pages")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoad_ErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pages": {}}`), 0o644))

	_, err := Load(path, "pages")
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	file, _ := ce.Context().GetString("file")
	assert.Equal(t, path, file)
}
