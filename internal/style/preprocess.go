package style

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Dialect is a stylesheet source language.
type Dialect string

const (
	DialectCSS  Dialect = "css"
	DialectSass Dialect = "sass" // .scss and indented .sass
	DialectLess Dialect = "less"
)

// DialectFor returns the dialect selected by file extension.
func DialectFor(file string) (Dialect, bool) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".css":
		return DialectCSS, true
	case ".scss", ".sass":
		return DialectSass, true
	case ".less":
		return DialectLess, true
	}
	return "", false
}

// IsStyle reports whether file is a stylesheet of any dialect.
func IsStyle(file string) bool {
	_, ok := DialectFor(file)
	return ok
}

// Preprocessor compiles a stylesheet dialect to CSS.
type Preprocessor interface {
	Compile(ctx context.Context, file string) ([]byte, error)
}

// ExecPreprocessor runs an external compiler that prints CSS on stdout.
type ExecPreprocessor struct {
	Binary string
	Args   func(file string) []string
}

// Compile runs the compiler for file. A missing binary or a non-zero exit is
// reported as a fatal style error naming the file.
func (p ExecPreprocessor) Compile(ctx context.Context, file string) ([]byte, error) {
	bin, err := exec.LookPath(p.Binary)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStyle, "style compiler not found").
			WithContext("file", file).WithContext("binary", p.Binary).Fatal().Build()
	}

	// #nosec G204 -- the binary comes from configuration, arguments are file paths
	cmd := exec.CommandContext(ctx, bin, p.Args(file)...)
	cmd.Dir = filepath.Dir(file)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, ferrors.WrapError(errors.New(msg), ferrors.CategoryStyle, "style compilation failed").
			WithContext("file", file).WithContext("binary", p.Binary).Fatal().Build()
	}
	return stdout.Bytes(), nil
}

// SassCompiler invokes dart-sass with the source root as load path.
func SassCompiler(binary, srcRoot string) ExecPreprocessor {
	return ExecPreprocessor{
		Binary: binary,
		Args: func(file string) []string {
			return []string{"--no-source-map", "--load-path=" + srcRoot, file}
		},
	}
}

// LessCompiler invokes lessc with the source root as include path.
func LessCompiler(binary, srcRoot string) ExecPreprocessor {
	return ExecPreprocessor{
		Binary: binary,
		Args: func(file string) []string {
			return []string{"--include-path=" + srcRoot, file}
		},
	}
}

// plainCSS reads a .css file as is.
type plainCSS struct{}

func (plainCSS) Compile(_ context.Context, file string) ([]byte, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ferrors.NotFoundError("stylesheet not found").WithContext("file", file).Fatal().Build()
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read stylesheet").
			WithContext("file", file).Fatal().Build()
	}
	return data, nil
}
