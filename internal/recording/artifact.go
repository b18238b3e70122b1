package recording

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Descriptor declares the encoding to request and the suffix of generated names.
type Descriptor struct {
	MimeType      string
	FileExtension string
}

// Artifact is the immutable result of one finalized capture.
type Artifact struct {
	Blob     []byte
	URL      string
	Name     string
	MimeType string
}

// Store makes finalized bytes locally addressable.
type Store interface {
	Put(name string, blob []byte) (string, error)
}

// FileStore keeps artifacts as files in a directory and addresses them with
// file:// URLs.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Put(name string, blob []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create store directory: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, blob, 0644); err != nil {
		return "", fmt.Errorf("failed to store artifact: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: path}).String(), nil
}

// SaveTo writes the artifact into dir under its own name and returns the path.
func (a Artifact) SaveTo(dir string) (string, error) {
	if a.Name == "" {
		return "", ErrNotFinalized
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, a.Name)
	if err := os.WriteFile(path, a.Blob, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", a.Name, err)
	}
	return path, nil
}
