// Package fileutil provides file operation utilities.
//
// dockersleuth only ever reads the inspected data directory, so everything
// here is read-side: existence probes and small-file readers.
package fileutil

import (
	"os"
	"strings"
)

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ReadTrimmed reads a small text file and returns its content with
// surrounding whitespace removed. Docker stores single-value metadata
// (mount-id, parent pointers, layer sizes) as bare strings, sometimes with
// a trailing newline.
func ReadTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
