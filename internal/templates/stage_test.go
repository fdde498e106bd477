package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
	"git.home.luguber.info/inful/assetbuilder/internal/pages"
)

const baseLayout = `<!DOCTYPE html>
<html>
  <head><title>{{.Page.Title}}</title></head>
  <body>
    {{template "header" .}}
    {{block "content" .}}{{.Content}}{{end}}
  </body>
</html>
`

type site struct {
	src   string
	tree  *output.Tree
	stage *Stage
}

func newSite(t *testing.T, minify bool) site {
	t.Helper()
	src := t.TempDir()
	tree := output.NewTree(t.TempDir())
	aliases, err := alias.New(src)
	require.NoError(t, err)
	router, err := assets.NewRouter(assets.Options{
		SrcRoot: aliases.Root(), StaticDir: "assets", Rules: assets.DefaultRules(10000),
		Tree: tree, Namer: output.Namer{Hashed: minify},
	})
	require.NoError(t, err)

	tpl := filepath.Join(aliases.Root(), "templates")
	writeFile(t, tpl, "layouts/base.html", baseLayout)
	writeFile(t, tpl, "partials/header.html", `{{define "header"}}<header><img src="{{asset "@img/logo.png"}}"><use href="{{sprite}}"></use></header>{{end}}`)
	writeFile(t, tpl, "pages/index.html", `{{define "content"}}<main>home</main>{{end}}{{template "base" .}}`)
	writeFile(t, aliases.Root(), "img/logo.png", "png")

	return site{src: aliases.Root(), tree: tree, stage: &Stage{
		Root: tpl, Aliases: aliases, Router: router, Tree: tree, Mode: "development", Minify: minify,
	}}
}

func (s site) run(t *testing.T, list pages.List) ([]string, error) {
	t.Helper()
	targets, err := TargetsFor(list, s.stage.Root, DefaultEntryTemplate)
	if err != nil {
		return nil, err
	}
	return s.stage.Run(context.Background(), targets, Assets{Styles: []string{"css/main.css"}, Scripts: []string{"js/main.js"}})
}

func TestRun_EveryPageIsEmitted(t *testing.T) {
	s := newSite(t, false)
	writeFile(t, s.stage.Root, "pages/about.html", `{{define "content"}}<main>about</main>{{end}}{{template "base" .}}`)
	writeFile(t, s.stage.Root, "pages/blog/post.md", "---\ntitle: First post\n---\n# Hello\n")

	written, err := s.run(t, pages.List{"index", "about", "blog/post"})
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html", "about.html", "blog/post.html"}, written)

	index := read(t, s.tree, "index.html")
	assert.Contains(t, index, "<main>home</main>")
	assert.Contains(t, index, `src="img/logo.png"`)
	assert.Contains(t, index, `<link rel="stylesheet" href="css/main.css"/>`)
	assert.Contains(t, index, `<script type="module" src="js/main.js"></script>`)
	assert.Contains(t, index, `<use href=""></use>`, "no sprite renders an empty reference")

	post := read(t, s.tree, "blog/post.html")
	assert.Contains(t, post, "<title>First post</title>")
	assert.Contains(t, post, `<h1 id="hello">Hello</h1>`)
	assert.Contains(t, post, `href="../css/main.css"`)
	assert.Contains(t, post, `src="../img/logo.png"`)

	assert.Len(t, s.tree.Files(output.KindHTML), 3)
}

func TestRun_SpriteURL(t *testing.T) {
	s := newSite(t, false)
	writeFile(t, s.src, "img/sprite.svg", "<svg/>")

	_, err := s.run(t, nil)
	require.NoError(t, err)
	assert.Contains(t, read(t, s.tree, "index.html"), `<use href="img/sprite.svg"></use>`)
}

func TestRun_ProductionMinifies(t *testing.T) {
	s := newSite(t, true)
	_, err := s.run(t, nil)
	require.NoError(t, err)

	index := read(t, s.tree, "index.html")
	assert.NotContains(t, index, "\n    ")
	assert.Contains(t, index, "<main>home</main>")
	assert.Regexp(t, `src="img/logo\.[0-9a-f]{20}\.png"`, index)
}

func TestRun_Errors(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		s := newSite(t, false)
		writeFile(t, s.stage.Root, "pages/broken.html", `{{if}}`)
		_, err := s.run(t, pages.List{"broken"})
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTemplate))
	})

	t.Run("missing asset", func(t *testing.T) {
		s := newSite(t, false)
		require.NoError(t, os.Remove(filepath.Join(s.src, "img", "logo.png")))
		_, err := s.run(t, nil)
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	})

	t.Run("unknown layout", func(t *testing.T) {
		s := newSite(t, false)
		writeFile(t, s.stage.Root, "pages/doc.md", "---\nlayout: wide\n---\ntext\n")
		_, err := s.run(t, pages.List{"doc"})
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTemplate))
	})
}

func read(t *testing.T, tree *output.Tree, rel string) string {
	t.Helper()
	data, err := os.ReadFile(tree.Abs(rel))
	require.NoError(t, err)
	return string(data)
}
