package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
)

type fixture struct {
	src  string
	tree *output.Tree
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return fixture{src: t.TempDir(), tree: output.NewTree(t.TempDir())}
}

func (f fixture) write(t *testing.T, rel string, size int) string {
	t.Helper()
	abs := filepath.Join(f.src, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(strings.Repeat("a", size)), 0o644))
	return abs
}

func (f fixture) router(t *testing.T, hashed bool) *Router {
	t.Helper()
	r, err := NewRouter(Options{
		SrcRoot:   f.src,
		StaticDir: "assets",
		Rules:     DefaultRules(10000),
		Tree:      f.tree,
		Namer:     output.Namer{Hashed: hashed},
	})
	require.NoError(t, err)
	return r
}

func TestRuleOrder(t *testing.T) {
	rules := DefaultRules(10000)
	tests := []struct {
		rel  string
		rule string
	}{
		{"img/sprite.svg", "sprite"},
		{"img/icons/main-sprite.svg", "sprite"},
		{"img/logo.png", "images"},
		{"img/photo.jpeg", "images"},
		{"fonts/Roboto.woff2", "fonts"},
		{"img/logo.svg", ""},
		{"assets/img/banner.png", ""},
		{"js/main.js", ""},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got := ""
			for _, r := range rules {
				if r.Matches(tt.rel) {
					got = r.Name
					break
				}
			}
			assert.Equal(t, tt.rule, got)
		})
	}
}

func TestRoute_FontThreshold(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, true)

	small := f.write(t, "fonts/small.woff", 9999)
	edge := f.write(t, "fonts/edge.woff2", 10000)
	large := f.write(t, "fonts/large.ttf", 20000)

	res, err := r.Route(small)
	require.NoError(t, err)
	assert.True(t, res.Inline)
	assert.True(t, strings.HasPrefix(res.URL, "data:font/woff;base64,"))
	assert.Empty(t, f.tree.Files(output.KindFont))

	res, err = r.Route(edge)
	require.NoError(t, err)
	assert.False(t, res.Inline)
	assert.Equal(t, "fonts/edge.woff2", res.URL)

	res, err = r.Route(large)
	require.NoError(t, err)
	assert.Equal(t, "fonts/large.ttf", res.URL, "fonts are never hashed")

	_, err = os.Stat(f.tree.Abs("fonts/large.ttf"))
	require.NoError(t, err)
}

func TestRoute_ImageNaming(t *testing.T) {
	f := newFixture(t)
	logo := f.write(t, "img/logo.png", 10)

	dev, err := f.router(t, false).Route(logo)
	require.NoError(t, err)
	assert.Equal(t, "img/logo.png", dev.URL)

	prod, err := f.router(t, true).Route(logo)
	require.NoError(t, err)
	assert.Regexp(t, `^img/logo\.[0-9a-f]{20}\.png$`, prod.URL)
}

func TestRoute_SpriteEmittedOnce(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, true)
	sprite := f.write(t, "img/sprite.svg", 50)

	first, err := r.Route(sprite)
	require.NoError(t, err)
	second, err := r.Route(filepath.Join(f.src, "img", ".", "sprite.svg"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	url, ok, err := r.SpriteURL()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.URL, url)

	assert.Len(t, f.tree.Files(output.KindSprite), 1)
	assert.True(t, r.IsSprite(sprite))
}

func TestSpriteURL_Absent(t *testing.T) {
	f := newFixture(t)
	url, ok, err := f.router(t, false).SpriteURL()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, url)
}

func TestRoute_StaticFilesAreNotEmitted(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, true)
	banner := f.write(t, "assets/img/banner.png", 10)

	res, err := r.Route(banner)
	require.NoError(t, err)
	assert.Equal(t, RouteStatic, res.Kind)
	assert.Equal(t, "img/banner.png", res.URL)
	assert.Empty(t, f.tree.Files())
}

func TestRoute_Errors(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, false)

	_, err := r.Route(f.write(t, "img/logo.svg", 10))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryAsset))

	_, err = r.Route(filepath.Join(f.src, "img", "missing.png"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRelativeURL(t *testing.T) {
	assert.Equal(t, "../img/a.png", RelativeURL("img/a.png", "css"))
	assert.Equal(t, "../../img/a.png", RelativeURL("img/a.png", "css/vendor"))
	assert.Equal(t, "img/a.png", RelativeURL("img/a.png", ""))
	assert.Equal(t, "data:x", RelativeURL("data:x", "css"))
}
