package store

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// Disk implements [Store] on the real filesystem.
//
// All methods are passthroughs to the [os] package except [Disk.WriteFile],
// which uses atomic temp-file-plus-rename writes, and [Disk.Exists], which
// wraps [os.Stat].
type Disk struct{}

// NewDisk returns a new [Disk] store.
func NewDisk() *Disk {
	return &Disk{}
}

// ReadFile is a passthrough wrapper for [os.ReadFile].
func (d *Disk) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec // paths come from user configuration
}

// WriteFile writes data atomically and applies perm to newly created files.
func (d *Disk) WriteFile(path string, data []byte, perm os.FileMode) error {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	writeErr := atomic.WriteFile(path, bytes.NewReader(data))
	if writeErr != nil {
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}

	// atomic.WriteFile does not set permissions for new files.
	if isNew {
		chmodErr := os.Chmod(path, perm)
		if chmodErr != nil {
			return fmt.Errorf("setting permissions on %s: %w", path, chmodErr)
		}
	}

	return nil
}

// MkdirAll is a passthrough wrapper for [os.MkdirAll].
func (d *Disk) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Exists wraps [os.Stat], mapping "not exist" to (false, nil).
func (d *Disk) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, fmt.Errorf("stat %s: %w", path, err)
}

// Compile-time interface check.
var _ Store = (*Disk)(nil)
