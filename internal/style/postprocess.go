package style

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// PostprocessConfig is the stylesheet postprocessing configuration file.
type PostprocessConfig struct {
	Targets []string `yaml:"targets"` // e.g. chrome58, firefox57, safari11
	Minify  bool     `yaml:"minify"`
	Banner  string   `yaml:"banner"`
}

// LoadPostprocess reads the postprocess configuration. A missing file returns
// nil without error: postprocessing is skipped. A malformed file is fatal.
func LoadPostprocess(path string) (*PostprocessConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read postprocess config").
			WithContext("file", path).Fatal().Build()
	}

	var cfg PostprocessConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "malformed postprocess config").
			WithContext("file", path).Fatal().Build()
	}
	if _, err := cfg.engines(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "malformed postprocess config").
			WithContext("file", path).Fatal().Build()
	}
	return &cfg, nil
}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var targetPattern = regexp.MustCompile(`^([a-z]+)(\d+(?:\.\d+)*)$`)

func (c *PostprocessConfig) engines() ([]api.Engine, error) {
	out := make([]api.Engine, 0, len(c.Targets))
	for _, t := range c.Targets {
		m := targetPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(t)))
		if m == nil {
			return nil, fmt.Errorf("invalid target %q", t)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", m[1], t)
		}
		out = append(out, api.Engine{Name: name, Version: m[2]})
	}
	return out, nil
}

// Apply lowers css for the configured targets.
func (c *PostprocessConfig) Apply(css []byte, sourcefile string) ([]byte, error) {
	engines, err := c.engines()
	if err != nil {
		return nil, err
	}
	res := api.Transform(string(css), api.TransformOptions{
		Loader:           api.LoaderCSS,
		Engines:          engines,
		MinifyWhitespace: c.Minify,
		MinifySyntax:     c.Minify,
		Banner:           c.Banner,
		Sourcefile:       sourcefile,
		LogLevel:         api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, messageError(res.Errors[0])
	}
	return res.Code, nil
}

func messageError(m api.Message) error {
	if m.Location == nil {
		return errors.New(m.Text)
	}
	return fmt.Errorf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}
