// Package pages loads the ordered page list from the declarative JSON manifest.
package pages

import (
	"os"
	"regexp"

	"github.com/tidwall/gjson"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// List is an ordered, duplicate-free sequence of page identifiers.
type List []string

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-/]*$`)

// Load reads the manifest at path and returns the list stored under key.
// A missing manifest yields an empty list: the entry template is still built.
func Load(path, key string) (List, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return List{}, nil
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read page manifest").
			WithContext("file", path).Fatal().Build()
	}
	list, err := Parse(data, key)
	if err != nil {
		if ce, ok := ferrors.AsClassified(err); ok {
			return nil, ce.WithContext("file", path)
		}
		return nil, err
	}
	return list, nil
}

// Parse extracts the page list from manifest JSON.
func Parse(data []byte, key string) (List, error) {
	if !gjson.ValidBytes(data) {
		return nil, ferrors.ValidationError("page manifest is not valid JSON").Fatal().Build()
	}
	res := gjson.GetBytes(data, key)
	if !res.Exists() {
		return List{}, nil
	}
	if !res.IsArray() {
		return nil, ferrors.ValidationError("page manifest key must hold an array").
			WithContext("key", key).Fatal().Build()
	}

	var ids []string
	var bad error
	res.ForEach(func(_, v gjson.Result) bool {
		if v.Type != gjson.String || !validID.MatchString(v.String()) {
			bad = ferrors.ValidationError("invalid page identifier").
				WithContext("key", key).WithContext("value", v.Raw).Fatal().Build()
			return false
		}
		ids = append(ids, v.String())
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return Dedupe(ids), nil
}

// Dedupe removes repeated identifiers keeping the first occurrence.
func Dedupe(ids []string) List {
	seen := make(map[string]struct{}, len(ids))
	out := make(List, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
