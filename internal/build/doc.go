// Package build is the output assembler: it runs the declarative stage table
// against one configuration and one build mode, writing every stage's output
// into a shared output tree and recording the result in a Report.
//
// All execution paths (build command, preview rebuilds, tests) go through Run.
package build
