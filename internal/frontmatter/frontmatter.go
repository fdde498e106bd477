// Package frontmatter separates a YAML header delimited by "---" lines from
// the Markdown body of a page source.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrUnterminated is returned when a document opens a header but never closes it.
var ErrUnterminated = errors.New("front matter opened with --- but not closed")

// Meta is the typed view of a page header. Unknown keys land in Params.
type Meta struct {
	Title  string         `yaml:"title"`
	Layout string         `yaml:"layout"`
	Params map[string]any `yaml:",inline"`
}

// Split returns the raw header and the body. had is false when content does
// not begin with a delimiter line; body is then the whole input. Both LF and
// CRLF line endings are accepted.
func Split(content []byte) (header, body []byte, had bool, err error) {
	nl := newline(content)
	delim := []byte("---" + nl)
	if !bytes.HasPrefix(content, delim) {
		return nil, content, false, nil
	}
	rest := content[len(delim):]

	// Empty header: the closing line follows immediately.
	if bytes.HasPrefix(rest, delim) {
		return []byte{}, rest[len(delim):], true, nil
	}

	closing := []byte(nl + "---" + nl)
	idx := bytes.Index(rest, closing)
	if idx < 0 {
		// A closing delimiter on the very last line has no trailing newline.
		if bytes.HasSuffix(rest, []byte(nl+"---")) {
			return rest[:len(rest)-len(nl+"---")+len(nl)], []byte{}, true, nil
		}
		return nil, nil, false, ErrUnterminated
	}
	return rest[:idx+len(nl)], rest[idx+len(closing):], true, nil
}

// Parse splits content and decodes the header into Meta.
func Parse(content []byte) (Meta, []byte, error) {
	header, body, had, err := Split(content)
	if err != nil {
		return Meta{}, nil, err
	}
	var meta Meta
	if had && len(bytes.TrimSpace(header)) > 0 {
		if err := yaml.Unmarshal(header, &meta); err != nil {
			return Meta{}, nil, fmt.Errorf("decode front matter: %w", err)
		}
	}
	if meta.Params == nil {
		meta.Params = map[string]any{}
	}
	return meta, body, nil
}

func newline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
