package templates

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Inject appends a stylesheet link to <head> for every href in styles and a
// module script to the end of <body> for every src in scripts, skipping
// references the document already contains.
func Inject(doc []byte, styles, scripts []string) ([]byte, error) {
	if len(styles) == 0 && len(scripts) == 0 {
		return doc, nil
	}
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse rendered document: %w", err)
	}

	var head, body *html.Node
	present := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Head:
				if head == nil {
					head = n
				}
			case atom.Body:
				if body == nil {
					body = n
				}
			case atom.Link:
				present[getAttr(n, "href")] = true
			case atom.Script:
				present[getAttr(n, "src")] = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	// html.Parse always synthesizes both elements.
	if head == nil || body == nil {
		return nil, fmt.Errorf("rendered document has no head or body")
	}

	for _, href := range styles {
		if present[href] {
			continue
		}
		head.AppendChild(element(atom.Link, html.Attribute{Key: "rel", Val: "stylesheet"}, html.Attribute{Key: "href", Val: href}))
	}
	for _, src := range scripts {
		if present[src] {
			continue
		}
		body.AppendChild(element(atom.Script, html.Attribute{Key: "type", Val: "module"}, html.Attribute{Key: "src", Val: src}))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
