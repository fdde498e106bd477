package config

// Default values mirror the conventional front-end scaffold layout.
const (
	DefaultSrcDir         = "src"
	DefaultDistDir        = "dist"
	DefaultCacheDir       = ".cache/assetbuilder"
	DefaultEntry          = "js/main.js"
	DefaultEntryTemplate  = "pages/index.html"
	DefaultPagesManifest  = "js/modules/pages.config.json"
	DefaultPagesKey       = "pages"
	DefaultPostprocess    = "postprocess.yaml"
	DefaultSassBinary     = "sass"
	DefaultLessBinary     = "lessc"
	DefaultScriptTarget   = "es2017"
	DefaultFontInlineSize = 10000
	DefaultPNGLevel       = 5
	DefaultServerHost     = "localhost"
	DefaultServerPort     = 4200
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Images: defaultImages()}
	applyDefaults(cfg)
	return cfg
}

// defaultImages seeds the image settings before decoding. Their zero values
// are meaningful (png_level 0, false flags), so only absent keys keep these.
func defaultImages() ImagesConfig {
	return ImagesConfig{GIFInterlaced: true, JPEGProgressive: true, PNGLevel: DefaultPNGLevel}
}

// applyDefaults fills zero values. Image settings are seeded by defaultImages.
func applyDefaults(cfg *Config) {
	if cfg.Paths.Src == "" {
		cfg.Paths.Src = DefaultSrcDir
	}
	if cfg.Paths.Dist == "" {
		cfg.Paths.Dist = DefaultDistDir
	}
	if cfg.Paths.Cache == "" {
		cfg.Paths.Cache = DefaultCacheDir
	}
	if cfg.Entry == "" {
		cfg.Entry = DefaultEntry
	}
	if cfg.EntryTemplate == "" {
		cfg.EntryTemplate = DefaultEntryTemplate
	}
	if cfg.Pages.Manifest == "" {
		cfg.Pages.Manifest = DefaultPagesManifest
	}
	if cfg.Pages.Key == "" {
		cfg.Pages.Key = DefaultPagesKey
	}
	if cfg.Styles.Postprocess == "" {
		cfg.Styles.Postprocess = DefaultPostprocess
	}
	if cfg.Styles.SassBinary == "" {
		cfg.Styles.SassBinary = DefaultSassBinary
	}
	if cfg.Styles.LessBinary == "" {
		cfg.Styles.LessBinary = DefaultLessBinary
	}
	if cfg.Script.Target == "" {
		cfg.Script.Target = DefaultScriptTarget
	}
	if cfg.Fonts.InlineLimit <= 0 {
		cfg.Fonts.InlineLimit = DefaultFontInlineSize
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeProduction
	}
}
