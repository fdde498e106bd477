package config

import (
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

var scriptEntryExts = map[string]bool{".js": true, ".mjs": true, ".jsx": true, ".ts": true, ".tsx": true}

// Validate checks cross-field constraints that defaults cannot repair.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return ferrors.ConfigError("server.port out of range").WithContext("value", cfg.Server.Port).Build()
	}
	if cfg.Images.PNGLevel < 0 || cfg.Images.PNGLevel > 7 {
		return ferrors.ConfigError("images.png_level must be between 0 and 7").WithContext("value", cfg.Images.PNGLevel).Build()
	}
	if !scriptEntryExts[strings.ToLower(filepath.Ext(cfg.Entry))] {
		return ferrors.ConfigError("entry must be a script file").WithContext("value", cfg.Entry).Build()
	}
	if filepath.Ext(cfg.Pages.Manifest) != ".json" {
		return ferrors.ConfigError("pages.manifest must be a JSON file").WithContext("value", cfg.Pages.Manifest).Build()
	}

	src, dist := cfg.SourceRoot(), cfg.OutputRoot()
	if src == dist {
		return ferrors.ConfigError("paths.src and paths.dist must differ").WithContext("value", src).Build()
	}
	if rel, err := filepath.Rel(src, dist); err == nil && !strings.HasPrefix(rel, "..") {
		// Output nested in the watched source tree would retrigger rebuilds forever.
		return ferrors.ConfigError("paths.dist must not be inside paths.src").WithContext("value", dist).Build()
	}
	return nil
}
