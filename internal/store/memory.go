package store

import (
	"os"
	"path/filepath"
	"sync"
)

// Memory implements [Store] backed by a map. Used by tests that exercise the
// sync engine without touching the real filesystem.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	// WriteErr, when set, is returned by every WriteFile call. Lets tests
	// exercise the write-failure path of a reconciliation pass.
	WriteErr error

	// Writes counts WriteFile calls, including failed ones.
	Writes int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// ReadFile returns the stored content or [os.ErrNotExist].
func (m *Memory) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	out := make([]byte, len(data))
	copy(out, data)

	return out, nil
}

// WriteFile stores the content, failing with WriteErr when configured.
func (m *Memory) WriteFile(path string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Writes++

	if m.WriteErr != nil {
		return m.WriteErr
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[path] = stored

	return nil
}

// MkdirAll records the folder and all parents.
func (m *Memory) MkdirAll(path string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for p := path; p != "." && p != string(filepath.Separator) && p != ""; p = filepath.Dir(p) {
		m.dirs[p] = true

		if filepath.Dir(p) == p {
			break
		}
	}

	return nil
}

// Exists reports whether a file or recorded folder exists.
func (m *Memory) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[path]; ok {
		return true, nil
	}

	return m.dirs[path], nil
}

// Content returns the stored content for path, or "" when absent.
func (m *Memory) Content(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return string(m.files[path])
}

// Put seeds a file without counting as a write.
func (m *Memory) Put(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[path] = []byte(content)
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)
