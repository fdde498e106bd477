// Package git reads the source revision of the project being built so the
// build report can record which commit produced an output tree.
package git
