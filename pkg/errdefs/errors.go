// Package errdefs provides standard error types for dockersleuth.
//
// These sentinel errors allow callers to check for specific error conditions
// using errors.Is(), enabling programmatic error handling. Call sites wrap
// them with the path that was searched so a failed lookup names the exact
// on-disk resource.
package errdefs

import "errors"

// Metadata lookup errors
var (
	// ErrNotFound indicates a required metadata file or directory is absent.
	ErrNotFound = errors.New("not found")

	// ErrParse indicates a metadata file exists but is not valid structured
	// data, or a layer identifier does not have the expected form.
	ErrParse = errors.New("malformed metadata")
)

// Configuration errors
var (
	// ErrUnsupportedConfiguration indicates an unknown storage generation or
	// an unrecognized union-filesystem driver. It is raised at construction
	// time, before any file access.
	ErrUnsupportedConfiguration = errors.New("unsupported storage configuration")
)
