// Package storage defines the cache-root file-system abstraction.
package storage

// Provider is the interface for file operations under the cache root.
// All paths are relative to the root and slash-separated.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether path exists (file or directory).
	Exists(path string) (bool, error)
	// RemoveAll deletes path and everything below it. Missing paths are not an error.
	RemoveAll(path string) error
	// ListDirs returns the names of the directories directly under the root.
	ListDirs() ([]string, error)
	// Root returns the absolute root directory.
	Root() string
}
