package assets

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/output"
)

// DefaultSprite is the conventional sprite location relative to the source root.
const DefaultSprite = "img/sprite.svg"

// Result describes where a routed file ended up.
type Result struct {
	Source string    `json:"source"`
	Kind   RouteKind `json:"kind"`
	Rule   string    `json:"rule,omitempty"`
	URL    string    `json:"url"`              // output-relative URL or data URI
	Output string    `json:"output,omitempty"` // empty when inlined or static
	Inline bool      `json:"inline,omitempty"`
}

// Options configures a Router.
type Options struct {
	SrcRoot   string // absolute source root
	StaticDir string // relative to SrcRoot; files below it are copied verbatim
	Rules     []Rule
	Tree      *output.Tree
	Namer     output.Namer
}

// Router routes asset files into the output tree. It deduplicates by source
// path, so a file referenced from several places is emitted once.
type Router struct {
	opts Options

	mu     sync.Mutex
	routed map[string]Result
}

// NewRouter validates the rules and returns a router.
func NewRouter(opts Options) (*Router, error) {
	if err := ValidateRules(opts.Rules); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid asset rule").Fatal().Build()
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "assets"
	}
	return &Router{opts: opts, routed: make(map[string]Result)}, nil
}

// rel returns the slash separated path of abs relative to the source root.
func (r *Router) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(r.opts.SrcRoot, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// staticRel returns the path relative to the static directory when abs lies below it.
func (r *Router) staticRel(rel string) (string, bool) {
	prefix := strings.TrimSuffix(filepath.ToSlash(r.opts.StaticDir), "/") + "/"
	if strings.HasPrefix(rel, prefix) {
		return strings.TrimPrefix(rel, prefix), true
	}
	return "", false
}

// Match returns the first rule accepting abs.
func (r *Router) Match(abs string) (Rule, bool) {
	rel, ok := r.rel(abs)
	if !ok {
		return Rule{}, false
	}
	for _, rule := range r.opts.Rules {
		if rule.Matches(rel) {
			return rule, true
		}
	}
	return Rule{}, false
}

// IsSprite reports whether abs is routed by a sprite rule.
func (r *Router) IsSprite(abs string) bool {
	rule, ok := r.Match(abs)
	return ok && rule.Kind == RouteSprite
}

// Route emits abs into the output tree (or inlines it) and returns its URL.
func (r *Router) Route(abs string) (Result, error) {
	abs = filepath.Clean(abs)

	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.routed[abs]; ok {
		return res, nil
	}

	rel, ok := r.rel(abs)
	if !ok {
		return Result{}, ferrors.AssetError("asset outside the source root").
			WithContext("file", abs).Fatal().Build()
	}

	// Static files are already copied verbatim; refer to them by their
	// position inside the static tree.
	if srel, ok := r.staticRel(rel); ok {
		if _, err := os.Stat(abs); err != nil {
			return Result{}, missing(abs, err)
		}
		res := Result{Source: abs, Kind: RouteStatic, URL: srel}
		r.routed[abs] = res
		return res, nil
	}

	var rule Rule
	matched := false
	for _, candidate := range r.opts.Rules {
		if candidate.Matches(rel) {
			rule, matched = candidate, true
			break
		}
	}
	if !matched {
		return Result{}, ferrors.AssetError("no rule matches asset").
			WithContext("file", rel).Fatal().Build()
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, missing(abs, err)
	}

	res := Result{Source: abs, Kind: rule.Kind, Rule: rule.Name}
	if rule.InlineLimit > 0 && len(data) < rule.InlineLimit {
		res.Inline = true
		res.URL = DataURI(abs, data)
		r.routed[abs] = res
		slog.Debug("Inlined asset", logfields.File(rel), logfields.Rule(rule.Name), logfields.Bytes(len(data)))
		return res, nil
	}

	base := filepath.Base(abs)
	var name string
	if rule.Hashed {
		name = r.opts.Namer.Name(rule.Dir, base, data)
	} else {
		name = r.opts.Namer.Stable(rule.Dir, base)
	}
	if err := r.opts.Tree.Write(name, data, kindFor(rule.Kind), abs); err != nil {
		return Result{}, err
	}
	res.URL = name
	res.Output = name
	r.routed[abs] = res
	slog.Debug("Emitted asset", logfields.File(rel), logfields.Rule(rule.Name), logfields.Output(name))
	return res, nil
}

// SpriteURL routes the conventional sprite when present. ok is false when the
// project has no sprite; that is not an error.
func (r *Router) SpriteURL() (string, bool, error) {
	abs := filepath.Join(r.opts.SrcRoot, filepath.FromSlash(DefaultSprite))
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	res, err := r.Route(abs)
	if err != nil {
		return "", false, err
	}
	return res.URL, true, nil
}

// Routed returns every routed file sorted by source path.
func (r *Router) Routed() []Result {
	r.mu.Lock()
	out := make([]Result, 0, len(r.routed))
	for _, res := range r.routed {
		out = append(out, res)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// RelativeURL rewrites an output-relative URL so it resolves from fromDir
// (an output-relative directory such as "css"). Data URIs pass through.
func RelativeURL(url, fromDir string) string {
	if strings.HasPrefix(url, "data:") || fromDir == "" || fromDir == "." {
		return url
	}
	depth := len(strings.Split(path.Clean(fromDir), "/"))
	return strings.Repeat("../", depth) + url
}

func kindFor(k RouteKind) output.Kind {
	switch k {
	case RouteSprite:
		return output.KindSprite
	case RouteFont:
		return output.KindFont
	default:
		return output.KindImage
	}
}

func missing(abs string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ferrors.NotFoundError("asset not found").WithContext("file", abs).Fatal().Build()
	}
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read asset").
		WithContext("file", abs).Fatal().Build()
}

// IsNotFound reports whether err came from routing a file that does not exist.
func IsNotFound(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryNotFound)
}

var mediaTypes = map[string]string{
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
}

// DataURI encodes data as a base64 data URI typed by the file extension.
func DataURI(name string, data []byte) string {
	mt, ok := mediaTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
}
