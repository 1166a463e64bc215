// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// LocalStore keeps blobs as files under root/prefix.
type LocalStore struct {
	root   string
	prefix string
}

// NewLocalStore returns a LocalStore rooted at root.
func NewLocalStore(root, prefix string) *LocalStore {
	return &LocalStore{root: root, prefix: prefix}
}

// Location returns the directory holding the blobs.
func (s *LocalStore) Location() string {
	return "file://" + filepath.Join(s.root, filepath.FromSlash(s.prefix))
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Join(s.prefix, key)))
}

// Exists reports whether the blob file exists.
func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

// Download copies the blob file to localPath.
func (s *LocalStore) Download(ctx context.Context, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := copyFile(s.path(key), localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}

// Upload copies localPath into the store. The blob is written to a
// temporary file and renamed so readers never see a partial blob.
func (s *LocalStore) Upload(ctx context.Context, localPath, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return copyFile(localPath, s.path(key))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".blob-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("renaming into %s: %w", dst, err)
	}
	return nil
}
