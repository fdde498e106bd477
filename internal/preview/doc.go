// Package preview is the development server: it serves the output tree with
// an SSE live-reload endpoint, rebuilds on source changes and tells connected
// browsers to reload once a rebuild lands.
package preview
