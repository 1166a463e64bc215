// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vectorindex

import (
	"fmt"
	"strings"
)

// SyncError reports a failed transfer to or from the durable store. The
// in-memory index stays usable and is marked unsynced.
type SyncError struct {
	// Op is "load" or "persist".
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// CorruptionError reports durable artifacts that do not form a consistent
// index. The index resets to empty when it sees one.
type CorruptionError struct {
	// Missing lists artifacts absent while others were present.
	Missing []string
	Reason  string
}

func (e *CorruptionError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("index corrupt: missing %s", strings.Join(e.Missing, ", "))
	}
	return "index corrupt: " + e.Reason
}

// DimensionError reports a stored index whose dimension differs from the
// configured embedding dimension, or an embedding of the wrong length.
type DimensionError struct {
	Want, Got int
	ChunkID   string
}

func (e *DimensionError) Error() string {
	if e.ChunkID != "" {
		return fmt.Sprintf("embedding for %s has dimension %d, index expects %d", e.ChunkID, e.Got, e.Want)
	}
	return fmt.Sprintf("stored index has dimension %d, configured dimension is %d", e.Got, e.Want)
}
