// Package storage defines the project tree abstraction the scanner reads from.
package storage

import "github.com/starford/refscan/internal/models"

// Provider is the interface for project tree operations. All paths are
// slash-separated and relative to the project base directory.
type Provider interface {
	// Root returns the absolute base directory.
	Root() string
	// List returns every scannable file under dir, sorted by path.
	List(dir string) ([]models.SourceFile, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Exists reports whether path exists. Any stat error counts as absent.
	Exists(path string) bool
	// Write atomically writes content to path.
	Write(path string, content []byte) error
}
