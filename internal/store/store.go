// Package store provides the document store used by the sync engine.
//
// Two implementations are provided:
//   - [Disk]: production use, atomic writes on the real filesystem
//   - [Memory]: in-memory store for tests
//
// The engine treats a write as atomic: a document is either fully replaced
// or untouched, never left half-written.
package store

import (
	"os"
)

// Store defines the file operations the sync engine needs. It is a narrow
// slice of the filesystem on purpose: whole-file read, whole-file atomic
// write, folder creation, and existence checks.
type Store interface {
	// ReadFile reads an entire document. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces a document's content atomically.
	// Uses a temp file + rename so a crash never leaves a partial write.
	WriteFile(path string, data []byte, perm os.FileMode) error

	// MkdirAll creates a folder and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Exists reports whether a file or folder exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)
}
