package config

// Config represents the assetbuilder configuration file (assetbuilder.yaml).
type Config struct {
	Paths         PathsConfig   `yaml:"paths"`
	Entry         string        `yaml:"entry"`          // script entry, relative to paths.src
	EntryTemplate string        `yaml:"entry_template"` // root document template, relative to the templates dir
	Pages         PagesConfig   `yaml:"pages"`
	Styles        StylesConfig  `yaml:"styles"`
	Script        ScriptConfig  `yaml:"script"`
	Fonts         FontsConfig   `yaml:"fonts"`
	Images        ImagesConfig  `yaml:"images"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`

	// Mode is resolved once at load time (flag > environment > default) and
	// never serialized back to the file.
	Mode Mode `yaml:"-"`
	// configDir is the directory relative paths are resolved against.
	configDir string
}

// PathsConfig declares the source, output and cache roots.
type PathsConfig struct {
	Src   string `yaml:"src"`
	Dist  string `yaml:"dist"`
	Cache string `yaml:"cache"`
}

// PagesConfig points at the declarative page manifest.
type PagesConfig struct {
	Manifest string `yaml:"manifest"` // JSON file, relative to paths.src
	Key      string `yaml:"key"`      // top-level key holding the ordered page list
}

// StylesConfig configures the style stage.
type StylesConfig struct {
	Postprocess string   `yaml:"postprocess"` // relative to the config directory
	SassBinary  string   `yaml:"sass_binary"`
	LessBinary  string   `yaml:"less_binary"`
	Extra       []string `yaml:"extra,omitempty"` // additional style entries relative to paths.src
}

// ScriptConfig configures the script stage.
type ScriptConfig struct {
	Target string `yaml:"target"`
}

// FontsConfig configures font routing.
type FontsConfig struct {
	InlineLimit int `yaml:"inline_limit"` // bytes; smaller fonts become data URIs
}

// ImagesConfig configures production image compression.
type ImagesConfig struct {
	GIFInterlaced   bool `yaml:"gif_interlaced"`
	JPEGProgressive bool `yaml:"jpeg_progressive"`
	PNGLevel        int  `yaml:"png_level"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig configures the default log level.
type LoggingConfig struct {
	Level LogLevel `yaml:"level"`
}
