// Package storage stores uploaded objects and returns public URLs for them.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type ObjectStorage interface {
	// Save writes the object and returns its public URL.
	Save(ctx context.Context, folder, ext string, r io.Reader) (string, error)
}

// FSStorage keeps objects on the local filesystem under content-addressed
// names, so re-uploading the same bytes is a no-op.
type FSStorage struct {
	dir     string
	baseURL string
}

func NewFSStorage(dir, baseURL string) *FSStorage {
	return &FSStorage{dir: dir, baseURL: baseURL}
}

func (s *FSStorage) Save(_ context.Context, folder, ext string, r io.Reader) (string, error) {
	dir := filepath.Join(s.dir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}

	name := hex.EncodeToString(hash.Sum(nil))[:32] + ext
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	return s.baseURL + "/" + folder + "/" + name, nil
}
