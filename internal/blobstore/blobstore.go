// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package blobstore is the durable key/blob layer behind the vector index.
// A Store addresses blobs by key under one prefix; implementations exist
// for S3 (and S3-compatible servers) and for a local directory.
package blobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/research-rag/pkg/types"
)

// ErrNotFound is returned by Download when the key does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is a key/blob store rooted at a prefix.
type Store interface {
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Download copies the blob at key to localPath, replacing any existing
	// file. It returns ErrNotFound when the key is absent.
	Download(ctx context.Context, key, localPath string) error

	// Upload copies localPath to key.
	Upload(ctx context.Context, localPath, key string) error

	// Location describes where blobs live (e.g. "s3://bucket/prefix").
	Location() string
}

// Open builds the Store selected by cfg.Backend.
func Open(cfg types.IndexConfig) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(S3Config{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
	case "local", "":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("index.local_dir is required for the local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q (want s3 or local)", cfg.Backend)
	}
}
