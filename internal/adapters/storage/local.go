// Package storage provides object storage adapters for remote raster
// collections.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reliefmap/demgrid/internal/ports/output"
)

// LocalStorage implements ObjectStorage for local filesystem.
type LocalStorage struct {
	basePath string
	ext      string // Raster extension to include, e.g. ".hgt"
}

// NewLocalStorage creates a new local storage adapter listing files with the
// given extension.
func NewLocalStorage(basePath, ext string) *LocalStorage {
	return &LocalStorage{basePath: basePath, ext: strings.ToLower(ext)}
}

// List returns all raster files in the local directory tree.
func (s *LocalStorage) List(_ context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		if !strings.HasSuffix(strings.ToLower(info.Name()), s.ext) {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		objects = append(objects, output.StorageObject{
			Key:          filepath.ToSlash(relPath),
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	return objects, nil
}

// Download copies a file to the destination. A no-op when source and
// destination are the same path.
func (s *LocalStorage) Download(_ context.Context, key string, dest string) error {
	srcPath := filepath.Join(s.basePath, key)

	if srcPath == dest {
		return nil
	}

	src, err := os.Open(srcPath) //#nosec G304 -- key comes from our own listing
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	return writeAtomic(dest, src)
}

// GetReader returns a reader for the given object.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.basePath, key)) //#nosec G304 -- key comes from our own listing
}

// Exists checks if a file exists.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// FullPath returns the full path for a key.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, key)
}
