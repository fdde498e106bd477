package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	"git.home.luguber.info/inful/assetbuilder/internal/compress"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
)

type fixture struct {
	root string
	cfg  *config.Config
}

func (f fixture) src(rel string) string {
	return filepath.Join(f.root, "src", filepath.FromSlash(rel))
}

func (f fixture) dist(rel string) string {
	return filepath.Join(f.root, "dist", filepath.FromSlash(rel))
}

func (f fixture) write(t *testing.T, rel string, data []byte) {
	t.Helper()
	abs := f.src(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, data, 0o644))
}

func (f fixture) writeString(t *testing.T, rel, content string) {
	t.Helper()
	f.write(t, rel, []byte(content))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const (
	mainJS = `import '../styles/main.css'
import logo from '@img/logo.png'
import sprite from '@img/sprite.svg'

document.body.dataset.logo = logo
document.body.dataset.sprite = sprite
`
	mainCSS = `@font-face { font-family: small; src: url("../fonts/small.woff2"); }
@font-face { font-family: big; src: url(../fonts/big.woff2); }
body { background: url(@img/logo.png); color: red; }
`
	indexHTML = `<!DOCTYPE html>
<html><head><title>Home</title></head>
<body><img src="{{ asset "@img/logo.png" }}"><svg><use href="{{ sprite }}#icon"></use></svg></body></html>
`
	aboutHTML = `<!DOCTYPE html>
<html><head><title>About</title></head><body><h1>About {{ .Page.ID }}</h1></body></html>
`
	contactMD = `---
title: Contact us
---
# Write to us
`
	baseLayout = `<!DOCTYPE html>
<html><head><title>{{ .Page.Title }}</title></head><body>{{ .Content }}</body></html>
`
	spriteSVG = `<svg xmlns="http://www.w3.org/2000/svg"><symbol id="icon" viewBox="0 0 10 10"><rect width="10" height="10"/></symbol></svg>`
)

var favicon = []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x10, 0x10, 0xde, 0xad, 0xbe, 0xef}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{root: root, cfg: config.Default().WithBaseDir(root)}

	f.writeString(t, "js/main.js", mainJS)
	f.writeString(t, "js/modules/pages.config.json", `{"pages": ["about", "contact", "about"]}`)
	f.writeString(t, "styles/main.css", mainCSS)
	f.write(t, "fonts/small.woff2", bytes.Repeat([]byte{1}, 9999))
	f.write(t, "fonts/big.woff2", bytes.Repeat([]byte{2}, 10000))
	f.write(t, "img/logo.png", pngBytes(t))
	f.writeString(t, "img/sprite.svg", spriteSVG)
	f.write(t, "assets/favicon.ico", favicon)
	f.writeString(t, "templates/pages/index.html", indexHTML)
	f.writeString(t, "templates/pages/about.html", aboutHTML)
	f.writeString(t, "templates/pages/contact.md", contactMD)
	f.writeString(t, "templates/layouts/base.html", baseLayout)
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func paths(files []output.File, kind output.Kind) []string {
	var out []string
	for _, f := range files {
		if f.Kind == kind {
			out = append(out, f.Path)
		}
	}
	return out
}

func TestRun_DevelopmentEmitsEveryPage(t *testing.T) {
	f := newFixture(t)

	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Equal(t, []string{"index.html", "about.html", "contact.html"}, report.Documents)
	assert.Equal(t, []string{"about", "contact"}, report.Pages)
	assert.Equal(t, StageNames(config.ModeDevelopment), keys(report.StageResults, config.ModeDevelopment))
	assert.Nil(t, report.Compression)

	assert.Equal(t, "js/main.js", report.Entry)
	assert.Equal(t, "css/main.css", report.Stylesheet)
	assert.FileExists(t, f.dist("js/main.js.map"))

	index := readFile(t, f.dist("index.html"))
	assert.Contains(t, index, `href="css/main.css"`)
	assert.Contains(t, index, `src="js/main.js"`)
	assert.Contains(t, index, `src="img/logo.png"`)
	assert.Contains(t, index, `img/sprite.svg#icon`)

	contact := readFile(t, f.dist("contact.html"))
	assert.Contains(t, contact, "<title>Contact us</title>")
	assert.Contains(t, contact, "Write to us")
	assert.Contains(t, contact, `href="css/main.css"`)
}

func TestRun_FontInlineThreshold(t *testing.T) {
	f := newFixture(t)

	_, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.NoError(t, err)

	css := readFile(t, f.dist("css/main.css"))
	assert.Contains(t, css, "data:font/woff2;base64,")
	assert.Contains(t, css, "../fonts/big.woff2")
	assert.NoFileExists(t, f.dist("fonts/small.woff2"))
	assert.FileExists(t, f.dist("fonts/big.woff2"))
	assert.Contains(t, css, "../img/logo.png")
}

func TestRun_SpriteRoutedOnce(t *testing.T) {
	f := newFixture(t)

	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.NoError(t, err)
	assert.Equal(t, []string{"img/sprite.svg"}, paths(report.Files, output.KindSprite))
	assert.Equal(t, []string{"img/logo.png"}, paths(report.Files, output.KindImage))
}

func TestRun_ReportListsRoutedAssets(t *testing.T) {
	f := newFixture(t)

	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.NoError(t, err)

	bySource := make(map[string]assets.Result)
	for _, res := range report.Assets {
		bySource[filepath.Base(res.Source)] = res
	}
	require.Contains(t, bySource, "logo.png")
	assert.Equal(t, assets.RouteImage, bySource["logo.png"].Kind)
	assert.Equal(t, "img/logo.png", bySource["logo.png"].Output)
	require.Contains(t, bySource, "small.woff2")
	assert.True(t, bySource["small.woff2"].Inline)
	require.Contains(t, bySource, "big.woff2")
	assert.False(t, bySource["big.woff2"].Inline)
}

func TestRun_ExtraStyleMustBeStylesheet(t *testing.T) {
	f := newFixture(t)
	f.cfg.Styles.Extra = []string{"@img/logo.png"}

	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Equal(t, StageResultFatal, report.StageResults[StageStyles])
	assert.NoFileExists(t, f.dist("index.html"))
}

func TestRun_StaticFilesCopiedVerbatim(t *testing.T) {
	f := newFixture(t)

	_, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeProduction, DisableCache: true})
	require.NoError(t, err)

	got, err := os.ReadFile(f.dist("favicon.ico"))
	require.NoError(t, err)
	assert.Equal(t, favicon, got)
}

var hashed = regexp.MustCompile(`^[a-z]+/[a-z]+\.[0-9a-f]{20}\.[a-z]+$`)

func TestRun_ProductionNamesAreContentHashed(t *testing.T) {
	f := newFixture(t)
	opts := Options{Mode: config.ModeProduction, DisableCache: true}

	first, err := Run(context.Background(), f.cfg, opts)
	require.NoError(t, err)
	for _, name := range []string{first.Entry, first.Stylesheet} {
		assert.Regexp(t, hashed, name)
	}
	require.Len(t, paths(first.Files, output.KindImage), 1)
	assert.Regexp(t, hashed, paths(first.Files, output.KindImage)[0])
	assert.NotNil(t, first.Compression)
	assert.NotContains(t, first.StageResults, StageName("missing"))
	assert.Contains(t, first.StageResults, StageCompressImages)

	second, err := Run(context.Background(), f.cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, first.Entry, second.Entry)
	assert.Equal(t, first.Stylesheet, second.Stylesheet)
	assert.Equal(t, paths(first.Files, output.KindImage), paths(second.Files, output.KindImage))

	f.writeString(t, "styles/main.css", mainCSS+"p { margin: 0; }\n")
	third, err := Run(context.Background(), f.cfg, opts)
	require.NoError(t, err)
	assert.NotEqual(t, first.Stylesheet, third.Stylesheet)
	assert.NoFileExists(t, f.dist(first.Stylesheet), "output tree is cleared between builds")

	index := readFile(t, f.dist("index.html"))
	assert.Contains(t, index, third.Stylesheet)
	assert.Contains(t, index, third.Entry)
}

type failingCompressor struct{}

func (failingCompressor) ID() string           { return "failing" }
func (failingCompressor) Extensions() []string { return []string{".png"} }
func (failingCompressor) Compress([]byte) ([]byte, error) {
	return nil, errors.New("encoder crashed")
}

func TestRun_CompressionFailureIsTolerated(t *testing.T) {
	f := newFixture(t)
	original, err := os.ReadFile(f.src("img/logo.png"))
	require.NoError(t, err)

	report, err := Run(context.Background(), f.cfg, Options{
		Mode:         config.ModeProduction,
		Compressors:  []compress.Compressor{failingCompressor{}, compress.SVGCompressor{}},
		DisableCache: true,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarning, report.Outcome)
	assert.Equal(t, StageResultWarning, report.StageResults[StageCompressImages])
	require.Len(t, report.Warnings, 1)
	assert.True(t, ferrors.HasCategory(report.Warnings[0], ferrors.CategoryAsset))
	require.NotNil(t, report.Compression)
	assert.Equal(t, 1, report.Compression.Failed)

	logo := paths(report.Files, output.KindImage)[0]
	got, err := os.ReadFile(f.dist(logo))
	require.NoError(t, err)
	assert.Equal(t, original, got)
	assert.FileExists(t, f.dist("index.html"))
}

func TestRun_CompressionUsesCache(t *testing.T) {
	f := newFixture(t)
	opts := Options{Mode: config.ModeProduction}

	_, err := Run(context.Background(), f.cfg, opts)
	require.NoError(t, err)
	second, err := Run(context.Background(), f.cfg, opts)
	require.NoError(t, err)
	require.NotNil(t, second.Compression)
	assert.Equal(t, second.Compression.Files, second.Compression.CacheHits)
	assert.FileExists(t, filepath.Join(f.cfg.CacheRoot(), compress.CacheFile))
}

func TestRun_MissingPageTemplateFailsBeforeWriting(t *testing.T) {
	f := newFixture(t)
	f.writeString(t, "js/modules/pages.config.json", `{"pages": ["about", "pricing"]}`)
	require.NoError(t, os.MkdirAll(f.dist(""), 0o755))
	require.NoError(t, os.WriteFile(f.dist("previous.html"), []byte("old"), 0o644))

	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StagePrepareOutput, se.Stage)
	assert.Equal(t, StageErrorFatal, se.Kind)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.NotContains(t, report.StageResults, StageScripts)
	assert.FileExists(t, f.dist("previous.html"))
}

func TestRun_MissingEntryIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.src("js/main.js")))

	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	assert.Equal(t, StageResultFatal, report.StageResults[StageScripts])
	assert.NotContains(t, report.StageResults, StageTemplates)
}

func TestRun_FailedRebuildKeepsPreviousOutput(t *testing.T) {
	f := newFixture(t)
	_, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.NoError(t, err)
	good := readFile(t, f.dist("index.html"))

	f.writeString(t, "js/main.js", "import x from '@modules/nope'\nconsole.log(x)\n")
	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, StageResultFatal, report.StageResults[StageScripts])

	assert.Equal(t, good, readFile(t, f.dist("index.html")))
	assert.FileExists(t, f.dist("about.html"))
	assert.FileExists(t, f.dist("favicon.ico"))

	leftovers, err := filepath.Glob(f.dist("") + ".*")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "staging and backup directories are removed")
}

func TestRun_ReplacesStaleOutput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.dist(""), 0o755))
	require.NoError(t, os.WriteFile(f.dist("stale.html"), []byte("old"), 0o644))

	_, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.NoError(t, err)
	assert.NoFileExists(t, f.dist("stale.html"))
	assert.FileExists(t, f.dist("index.html"))
}

func TestRun_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, f.cfg, Options{Mode: config.ModeDevelopment})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCanceled, report.Outcome)
}

func TestRun_PersistsReportToCache(t *testing.T) {
	f := newFixture(t)

	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.cfg.CacheRoot(), ReportFile))
	require.NoError(t, err)
	var persisted map[string]any
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, report.BuildID, persisted["build_id"])
	assert.Equal(t, "success", persisted["outcome"])
	assert.Equal(t, "development", persisted["mode"])
	assert.NoFileExists(t, f.dist(ReportFile))

	summary := readFile(t, filepath.Join(f.cfg.CacheRoot(), SummaryFile))
	assert.True(t, strings.HasPrefix(summary, "build="+report.BuildID))
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	stages   []string
	outcomes []string
}

func (c *countingRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, stage)
}

func (c *countingRecorder) IncBuildOutcome(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}

type orderObserver struct {
	NoopObserver
	started []StageName
	done    *Report
}

func (o *orderObserver) OnStageStart(stage StageName) { o.started = append(o.started, stage) }
func (o *orderObserver) OnBuildComplete(r *Report)    { o.done = r }

func TestRun_NotifiesObserverAndRecorder(t *testing.T) {
	f := newFixture(t)
	rec := &countingRecorder{}
	obs := &orderObserver{}

	report, err := Run(context.Background(), f.cfg, Options{Mode: config.ModeDevelopment, Recorder: rec, Observer: obs, SkipReport: true})
	require.NoError(t, err)

	assert.Equal(t, StageNames(config.ModeDevelopment), obs.started)
	assert.Same(t, report, obs.done)
	assert.Len(t, rec.stages, len(obs.started))
	assert.Equal(t, []string{"success"}, rec.outcomes)
	assert.NoFileExists(t, filepath.Join(f.cfg.CacheRoot(), ReportFile))
}

func keys(m map[StageName]StageResult, mode config.Mode) []StageName {
	var out []StageName
	for _, name := range StageNames(mode) {
		if _, ok := m[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
