package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore keeps assets on the local filesystem under a public directory
// that the HTTP layer serves at /public/. References are slash-separated
// paths relative to that directory.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates a filesystem-backed asset store rooted at dir
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create public directory: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStore) Store(ctx context.Context, namespace, name string, data []byte, contentType string) (string, error) {
	ref := path.Join(namespace, name)
	full, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write asset %s: %w", ref, err)
	}
	return ref, nil
}

func (s *LocalStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	full, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", ref, err)
	}
	return data, nil
}

func (s *LocalStore) PublicURL(ref string) string {
	return s.baseURL + "/public/" + ref
}

// resolve maps a reference to an absolute path, rejecting traversal
// outside the public directory.
func (s *LocalStore) resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if clean == "/" || strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid asset reference %q", ref)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}
