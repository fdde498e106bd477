// Package errors provides foundational, type-safe error primitives used across assetbuilder.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
package errors
