package style

import (
	"bytes"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// URLResolver maps a url() value found in fromFile to its replacement.
// ok is false when the reference should be left as written.
type URLResolver func(ref, fromFile string) (replacement string, ok bool, err error)

// RewriteURLs rewrites every url() token of data through resolve. Other
// tokens are copied verbatim. References following @import are skipped.
func RewriteURLs(data []byte, fromFile string, resolve URLResolver) ([]byte, error) {
	l := css.NewLexer(parse.NewInputBytes(data))
	var out bytes.Buffer
	out.Grow(len(data))

	inImport := false
	for {
		tt, text := l.Next()
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, err
			}
			return out.Bytes(), nil
		case css.AtKeywordToken:
			inImport = strings.EqualFold(string(text), "@import")
		case css.SemicolonToken, css.LeftBraceToken:
			inImport = false
		case css.URLToken:
			if !inImport {
				ref := unwrapURL(text)
				if repl, ok, err := resolve(ref, fromFile); err != nil {
					return nil, err
				} else if ok {
					out.WriteString(`url("` + repl + `")`)
					continue
				}
			}
		case css.FunctionToken:
			if !inImport && strings.EqualFold(string(text), "url(") {
				if err := rewriteURLFunction(l, &out, text, fromFile, resolve); err != nil {
					return nil, err
				}
				continue
			}
		}
		out.Write(text)
	}
}

// rewriteURLFunction handles url( "string" ) when the lexer reports it as a
// function call instead of a single url token.
func rewriteURLFunction(l *css.Lexer, out *bytes.Buffer, open []byte, fromFile string, resolve URLResolver) error {
	var pending bytes.Buffer
	pending.Write(open)
	var ref string
	for {
		tt, text := l.Next()
		switch tt {
		case css.WhitespaceToken:
			pending.Write(text)
			continue
		case css.StringToken:
			pending.Write(text)
			ref = unquote(string(text))
			continue
		case css.RightParenthesisToken:
			pending.Write(text)
			if ref != "" {
				repl, ok, err := resolve(ref, fromFile)
				if err != nil {
					return err
				}
				if ok {
					out.WriteString(`url("` + repl + `")`)
					return nil
				}
			}
		case css.ErrorToken:
			if err := l.Err(); err != nil && err != io.EOF {
				return err
			}
		default:
			pending.Write(text)
		}
		out.Write(pending.Bytes())
		return nil
	}
}

func unwrapURL(token []byte) string {
	s := string(token)
	if len(s) >= 4 && strings.EqualFold(s[:4], "url(") {
		s = s[4:]
	}
	s = strings.TrimSuffix(s, ")")
	return unquote(strings.TrimSpace(s))
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// IsExternalRef reports references that must never be routed: absolute
// URLs, protocol-relative and root-relative paths, data URIs, fragments.
func IsExternalRef(ref string) bool {
	switch {
	case ref == "",
		strings.HasPrefix(ref, "#"),
		strings.HasPrefix(ref, "/"),
		strings.HasPrefix(ref, "data:"):
		return true
	}
	if i := strings.Index(ref, ":"); i > 0 && !strings.ContainsAny(ref[:i], "/.@~") {
		return true // scheme such as http: or about:
	}
	return false
}

// SplitSuffix separates a trailing ?query or #fragment from ref.
func SplitSuffix(ref string) (string, string) {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}
