// Package compress shrinks emitted images in production builds. Each file is
// handled by a Compressor chosen by extension; results are only kept when they
// are smaller, failures leave the file untouched, and a persistent cache keyed
// by input content skips work for unchanged files.
package compress
