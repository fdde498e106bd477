package config

import (
	"os"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Mode is the build mode: the single global switch controlling output naming,
// minification, source maps and image compression.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// EnvMode is the environment variable read to derive the build mode.
const EnvMode = "ASSETBUILDER_ENV"

// IsDevelopment reports whether m is development mode.
func (m Mode) IsDevelopment() bool { return m == ModeDevelopment }

// IsProduction reports whether m is production mode. Unknown values count as production.
func (m Mode) IsProduction() bool { return m != ModeDevelopment }

func (m Mode) String() string { return string(m) }

// ModeFromEnv derives the mode from ASSETBUILDER_ENV. Only the literal
// value "development" selects development; absence or anything else is production.
func ModeFromEnv() Mode {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(EnvMode)), string(ModeDevelopment)) {
		return ModeDevelopment
	}
	return ModeProduction
}

// ParseMode validates an explicit mode value (from a CLI flag).
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "development", "dev":
		return ModeDevelopment, nil
	case "production", "prod":
		return ModeProduction, nil
	default:
		return "", ferrors.ValidationError("invalid build mode").
			WithContext("value", raw).
			WithContext("valid", "development|production").
			Build()
	}
}

// ResolveMode applies precedence: explicit flag value > environment > production.
func ResolveMode(flag string) (Mode, error) {
	if strings.TrimSpace(flag) != "" {
		return ParseMode(flag)
	}
	return ModeFromEnv(), nil
}
