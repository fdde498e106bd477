// Package output owns the destination tree: naming of emitted files, the
// record of what each stage wrote, and verbatim copying of static files.
package output
