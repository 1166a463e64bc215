// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import "fmt"

// ModelLoadError reports that the embedding model could not be opened.
// It is permanent for the Service that returned it.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("loading embedding model %q: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// EmbeddingError reports that a batch of texts could not be encoded.
type EmbeddingError struct {
	Count int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("encoding %d text(s): %v", e.Count, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// ValidationError reports a malformed ingestion item.
type ValidationError struct {
	ChunkID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("invalid chunk: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid chunk %s: %s %s", e.ChunkID, e.Field, e.Reason)
}

func errShape(want, got int) error {
	return fmt.Errorf("model returned %d vectors for %d texts", got, want)
}
