// Package storage defines the gallery file-system abstraction.
package storage

import "github.com/inkhorn/easel/internal/models"

// Provider is the interface for gallery file operations.
type Provider interface {
	// List returns metadata for every image file under dir (relative to the gallery root).
	List(dir string) ([]models.FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to the gallery root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the gallery root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the gallery root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to the gallery root).
	Move(oldPath, newPath string) error
}
