package style

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/alias"
	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
)

type fakeCompiler struct {
	out   string
	err   error
	files []string
}

func (f *fakeCompiler) Compile(_ context.Context, file string) ([]byte, error) {
	f.files = append(f.files, file)
	return []byte(f.out), f.err
}

type env struct {
	src   string
	tree  *output.Tree
	stage *Stage
}

func newEnv(t *testing.T, hashed bool) env {
	t.Helper()
	src := t.TempDir()
	tree := output.NewTree(t.TempDir())
	aliases, err := alias.New(src)
	require.NoError(t, err)
	router, err := assets.NewRouter(assets.Options{
		SrcRoot: src, StaticDir: "assets", Rules: assets.DefaultRules(10000),
		Tree: tree, Namer: output.Namer{Hashed: hashed},
	})
	require.NoError(t, err)
	return env{src: src, tree: tree, stage: &Stage{
		Aliases: aliases, Router: router, Tree: tree,
		Namer: output.Namer{Hashed: hashed}, Minify: hashed,
	}}
}

func (e env) write(t *testing.T, rel, content string) string {
	t.Helper()
	abs := filepath.Join(e.src, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

func TestRun_PlainCSSWithURLs(t *testing.T) {
	e := newEnv(t, false)
	e.write(t, "img/bg.png", "png")
	e.write(t, "fonts/icons.woff", "tiny")
	e.write(t, "assets/img/banner.jpg", "jpg")
	main := e.write(t, "styles/main.css", `body { background: url(../img/bg.png); }
.hero { background: url('@assets/img/banner.jpg'); }
@font-face { src: url("@fonts/icons.woff?#iefix"); }
a { background: url(data:image/gif;base64,AAAA); }
b { background: url(https://example.com/x.png); }
`)

	res, err := e.stage.Run(context.Background(), "main", []string{main})
	require.NoError(t, err)
	assert.Equal(t, "css/main.css", res.Output)

	css, err := os.ReadFile(e.tree.Abs(res.Output))
	require.NoError(t, err)
	s := string(css)
	assert.Contains(t, s, `url("../img/bg.png")`)
	assert.Contains(t, s, `url("../img/banner.jpg")`)
	assert.Contains(t, s, `url("data:font/woff;base64,`)
	assert.Contains(t, s, "url(data:image/gif;base64,AAAA)")
	assert.Contains(t, s, "url(https://example.com/x.png)")
	assert.True(t, e.tree.Has("img/bg.png"))
}

func TestRun_ProductionHashesAndMinifies(t *testing.T) {
	e := newEnv(t, true)
	main := e.write(t, "styles/main.css", "body {\n  color: #ff0000;\n}\n")

	res, err := e.stage.Run(context.Background(), "main", []string{main})
	require.NoError(t, err)
	assert.Regexp(t, `^css/main\.[0-9a-f]{20}\.css$`, res.Output)

	css, err := os.ReadFile(e.tree.Abs(res.Output))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(css))

	again, err := newEnv(t, true).stageWith(t, "body {\n  color: #ff0000;\n}\n")
	require.NoError(t, err)
	assert.Equal(t, res.Output, again.Output, "same content must give the same name")
}

func (e env) stageWith(t *testing.T, content string) (Result, error) {
	main := e.write(t, "styles/main.css", content)
	return e.stage.Run(context.Background(), "main", []string{main})
}

func TestRun_DialectRoutingAndOrder(t *testing.T) {
	e := newEnv(t, false)
	sass := &fakeCompiler{out: ".a{color:blue}"}
	less := &fakeCompiler{out: ".b{color:green}"}
	e.stage.Sass, e.stage.Less = sass, less

	scss := e.write(t, "styles/main.scss", "$c: blue; .a{color:$c}")
	lessFile := e.write(t, "styles/theme.less", "@c: green; .b{color:@c}")
	plain := e.write(t, "styles/reset.css", "*{margin:0}")

	res, err := e.stage.Run(context.Background(), "main", []string{plain, scss, lessFile, scss})
	require.NoError(t, err)
	assert.Equal(t, []string{plain, scss, lessFile}, res.Sources)
	assert.Equal(t, []string{scss}, sass.files)
	assert.Equal(t, []string{lessFile}, less.files)

	css, err := os.ReadFile(e.tree.Abs(res.Output))
	require.NoError(t, err)
	assert.Equal(t, "*{margin:0}\n.a{color:blue}\n.b{color:green}", string(css))
}

func TestRun_Failures(t *testing.T) {
	e := newEnv(t, false)
	e.stage.Sass = &fakeCompiler{err: ferrors.StyleError("style compilation failed").WithCause(errors.New("boom")).Build()}

	_, err := e.stage.Run(context.Background(), "main", []string{e.write(t, "styles/main.scss", "x")})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryStyle))

	_, err = e.stage.Run(context.Background(), "main", []string{filepath.Join(e.src, "styles", "missing.css")})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	bad := e.write(t, "styles/bad.css", "a { background: url(logo.svg); }")
	e.write(t, "styles/logo.svg", "<svg/>")
	_, err = e.stage.Run(context.Background(), "main", []string{bad})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryAsset), "no rule matches a plain svg")
}

func TestRun_NoSources(t *testing.T) {
	e := newEnv(t, false)
	res, err := e.stage.Run(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Output)
	assert.Empty(t, e.tree.Files())
}

func TestRun_Postprocess(t *testing.T) {
	e := newEnv(t, false)
	e.stage.Postprocess = &PostprocessConfig{Targets: []string{"chrome58"}, Minify: true, Banner: "/* built */"}
	main := e.write(t, "styles/main.css", "a {\n  color: red;\n}\n")

	res, err := e.stage.Run(context.Background(), "main", []string{main})
	require.NoError(t, err)
	css, err := os.ReadFile(e.tree.Abs(res.Output))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(css), "/* built */"))
	assert.Contains(t, string(css), "a{color:red}")
}

func TestDialectFor(t *testing.T) {
	for file, want := range map[string]Dialect{"a.css": DialectCSS, "a.SCSS": DialectSass, "a.sass": DialectSass, "a.less": DialectLess} {
		got, ok := DialectFor(file)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.False(t, IsStyle("a.js"))
}

func TestExecPreprocessor_MissingBinary(t *testing.T) {
	p := SassCompiler("definitely-not-a-sass-binary", t.TempDir())
	_, err := p.Compile(context.Background(), "main.scss")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryStyle))
	ce, _ := ferrors.AsClassified(err)
	file, _ := ce.Context().GetString("file")
	assert.Equal(t, "main.scss", file)
}
