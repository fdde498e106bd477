package style

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func TestLoadPostprocess(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadPostprocess(filepath.Join(dir, "postprocess.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg, "missing file skips postprocessing")

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("targets: [chrome58, safari11.1]\nminify: true\n"), 0o644))
	cfg, err = LoadPostprocess(good)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"chrome58", "safari11.1"}, cfg.Targets)
	assert.True(t, cfg.Minify)
}

func TestLoadPostprocess_Malformed(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"syntax":        "targets: [chrome58\n",
		"unknown field": "plugins: [autoprefixer]\n",
		"bad target":    "targets: [netscape4]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := LoadPostprocess(path)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
			assert.True(t, ferrors.HasSeverity(err, ferrors.SeverityFatal))
		})
	}
}
