package output

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hashedCSS = regexp.MustCompile(`^css/main\.[0-9a-f]{20}\.css$`)

func TestNamer(t *testing.T) {
	body := []byte("body{color:red}")

	dev := Namer{}
	assert.Equal(t, "css/main.css", dev.Name("css", "main.css", body))
	assert.Equal(t, "css/main.css", dev.Name("css", "main.css", []byte("changed")))

	prod := Namer{Hashed: true}
	first := prod.Name("css", "main.css", body)
	assert.Regexp(t, hashedCSS, first)
	assert.Equal(t, first, prod.Name("css", "main.css", body), "same content, same name")
	assert.NotEqual(t, first, prod.Name("css", "main.css", []byte("body{color:blue}")))

	assert.Equal(t, "fonts/a.woff2", prod.Stable("fonts", "a.woff2"))
}

func TestHashedName_MultipleDots(t *testing.T) {
	got := HashedName("jquery.min.js", []byte("x"))
	assert.Regexp(t, `^jquery\.min\.[0-9a-f]{20}\.js$`, got)
	assert.Len(t, ContentHash([]byte("x")), HashLength)
}
