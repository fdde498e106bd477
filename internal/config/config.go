package config

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// DefaultConfigFile is the configuration file name looked up by the CLI.
const DefaultConfigFile = "assetbuilder.yaml"

// Load reads the configuration file at configPath. A missing file is not an
// error: defaults describe the conventional scaffold layout. Environment
// variables from .env files next to the config are loaded first so that both
// ${VAR} expansion and the build mode can use them.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve config path").
			WithContext("file", configPath).Fatal().Build()
	}
	dir := filepath.Dir(absPath)
	loadEnvFiles(dir)

	data, err := os.ReadFile(absPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("No configuration file found; using defaults", "path", configPath)
		cfg := Default()
		cfg.configDir = dir
		cfg.Mode = ModeFromEnv()
		return cfg, nil
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").
			WithContext("file", configPath).Fatal().Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse config file").
			WithContext("file", configPath).Fatal().Build()
	}
	cfg.configDir = dir
	cfg.Mode = ModeFromEnv()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML (after ${VAR} expansion) and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{Images: defaultImages()}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// WithBaseDir returns a copy of cfg resolving relative paths against dir.
func (c *Config) WithBaseDir(dir string) *Config {
	cp := *c
	cp.configDir = dir
	return &cp
}

// BaseDir is the directory relative paths are resolved against.
func (c *Config) BaseDir() string {
	if c.configDir != "" {
		return c.configDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.BaseDir(), p)
}

// SourceRoot returns the absolute source root.
func (c *Config) SourceRoot() string { return c.resolve(c.Paths.Src) }

// OutputRoot returns the absolute output root.
func (c *Config) OutputRoot() string { return c.resolve(c.Paths.Dist) }

// CacheRoot returns the absolute cache directory.
func (c *Config) CacheRoot() string { return c.resolve(c.Paths.Cache) }

// PostprocessPath returns the absolute path of the style postprocess config.
func (c *Config) PostprocessPath() string { return c.resolve(c.Styles.Postprocess) }

// Init writes a configuration file populated with defaults.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("file", configPath).Build()
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal default config").Fatal().Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write config file").
			WithContext("file", configPath).Fatal().Build()
	}
	return nil
}
