// Package minifier configures the tdewolff minifiers shared by the HTML,
// style and image stages.
package minifier

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/svg"
)

// Media types understood by Minify.
const (
	MediaHTML = "text/html"
	MediaCSS  = "text/css"
	MediaSVG  = "image/svg+xml"
)

var m = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	// Whitespace collapse only; the document shell and attribute quoting stay intact.
	m.Add(MediaHTML, &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	m.AddFunc(MediaCSS, css.Minify)
	m.AddFunc(MediaSVG, svg.Minify)
	return m
}

// Minify returns data minified as mediatype.
func Minify(mediatype string, data []byte) ([]byte, error) {
	return m.Bytes(mediatype, data)
}
