// Package assets routes binary assets referenced by scripts, styles and
// templates: each file is matched against an ordered rule list that decides
// whether it is emitted as an image, emitted as the sprite, or a font that is
// either emitted or inlined as a data URI.
package assets

import (
	"github.com/bmatcuk/doublestar/v4"
)

// RouteKind tells the router what to do with a matched file.
type RouteKind string

const (
	RouteImage  RouteKind = "image"
	RouteSprite RouteKind = "sprite"
	RouteFont   RouteKind = "font"
	RouteStatic RouteKind = "static"
)

// Rule is one entry of the routing table. Patterns are doublestar globs
// evaluated against the slash separated path relative to the source root.
type Rule struct {
	Name    string
	Kind    RouteKind
	Pattern string
	Include string // optional narrowing glob
	Exclude string // optional exclusion glob

	Dir         string // output directory
	InlineLimit int    // files strictly smaller than this are inlined; 0 disables
	Hashed      bool   // content hash in production names
}

// Matches reports whether rel satisfies the rule.
func (r Rule) Matches(rel string) bool {
	if ok, _ := doublestar.Match(r.Pattern, rel); !ok {
		return false
	}
	if r.Include != "" {
		if ok, _ := doublestar.Match(r.Include, rel); !ok {
			return false
		}
	}
	if r.Exclude != "" {
		if ok, _ := doublestar.Match(r.Exclude, rel); ok {
			return false
		}
	}
	return true
}

// DefaultRules returns the routing table in evaluation order. The sprite rule
// comes first so its Include narrowing wins over any later generic rule.
func DefaultRules(fontInlineLimit int) []Rule {
	return []Rule{
		{
			Name:    "sprite",
			Kind:    RouteSprite,
			Pattern: "**/*.svg",
			Include: "**/*sprite.svg",
			Dir:     "img",
			Hashed:  true,
		},
		{
			Name:    "images",
			Kind:    RouteImage,
			Pattern: "**/*.{jpg,jpeg,png,gif,webp}",
			Exclude: "assets/**",
			Dir:     "img",
			Hashed:  true,
		},
		{
			Name:        "fonts",
			Kind:        RouteFont,
			Pattern:     "**/*.{woff,woff2,eot,ttf}",
			Dir:         "fonts",
			InlineLimit: fontInlineLimit,
		},
	}
}

// ValidateRules checks every pattern is a well-formed glob.
func ValidateRules(rules []Rule) error {
	for _, r := range rules {
		for _, p := range []string{r.Pattern, r.Include, r.Exclude} {
			if p != "" && !doublestar.ValidatePattern(p) {
				return &InvalidRuleError{Rule: r.Name, Pattern: p}
			}
		}
	}
	return nil
}

// InvalidRuleError reports a malformed glob in a rule.
type InvalidRuleError struct {
	Rule    string
	Pattern string
}

func (e *InvalidRuleError) Error() string {
	return "asset rule " + e.Rule + ": invalid pattern " + e.Pattern
}
