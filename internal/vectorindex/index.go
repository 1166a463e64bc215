// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vectorindex stores chunk embeddings for exact nearest-neighbor
// search and keeps them durable in a blobstore.Store.
//
// The index is append-only: each new chunk gets the next dense row id and
// rows are never reused. Three artifacts are persisted together after every
// batch add (vector matrix, row metadata, chunk-id map) and loaded together
// on construction. A missing or inconsistent artifact set resets the index
// to empty rather than serving partial data.
//
// The durable store assumes a single writer. Two processes adding to the
// same prefix race, and the last persist wins. Readers that share a store
// with a writer call ForceResync to pick up its additions.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-rag/internal/blobstore"
	"github.com/pdiddy/research-rag/internal/embedding"
	"github.com/pdiddy/research-rag/internal/telemetry"
	"github.com/pdiddy/research-rag/pkg/types"
)

// Encoder embeds query text. *embedding.Service satisfies it.
type Encoder interface {
	EncodeOne(ctx context.Context, text string) (types.Embedding, error)
}

// Index is an exact inner-product index over unit-length vectors. It is
// safe for concurrent use.
type Index struct {
	store    blobstore.Store
	dim      int
	cacheDir string
	log      zerolog.Logger
	metrics  *telemetry.Metrics

	// persistMu serializes Add, Sync, and ForceResync so snapshots reach
	// the store in the order they were taken.
	persistMu sync.Mutex

	mu          sync.RWMutex
	generation  uint64
	vectors     [][]float32
	entries     map[int]types.IndexEntry
	ids         map[string]int
	synced      bool
	lastSyncErr error
	loadErr     error
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger for load resets, skipped chunks, and sync failures.
func WithLogger(l zerolog.Logger) Option {
	return func(ix *Index) { ix.log = l }
}

// WithCacheDir sets where local copies of the artifacts are kept. The
// default is a rag_cache directory under the OS temp dir.
func WithCacheDir(dir string) Option {
	return func(ix *Index) {
		if dir != "" {
			ix.cacheDir = dir
		}
	}
}

// WithMetrics records index size and sync outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(ix *Index) { ix.metrics = m }
}

// New creates an index of dimension dim backed by store and loads any
// existing artifacts. Load failures do not fail New: the index starts empty
// and unsynced, and LoadError reports why. New fails only for invalid
// arguments, an unusable cache directory, or a stored index whose
// dimension differs from dim.
func New(ctx context.Context, store blobstore.Store, dim int, opts ...Option) (*Index, error) {
	if store == nil {
		return nil, errors.New("vectorindex: nil store")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vectorindex: invalid dimension %d", dim)
	}

	ix := &Index{
		store:    store,
		dim:      dim,
		cacheDir: filepath.Join(os.TempDir(), "rag_cache"),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if err := os.MkdirAll(ix.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index cache %s: %w", ix.cacheDir, err)
	}
	ix.reset(false)

	if err := ix.load(ctx); err != nil {
		var de *DimensionError
		if errors.As(err, &de) {
			return nil, err
		}
	}
	return ix, nil
}

// reset empties the in-memory state. Callers hold mu or own ix exclusively.
func (ix *Index) reset(synced bool) {
	ix.generation = 0
	ix.vectors = nil
	ix.entries = make(map[int]types.IndexEntry)
	ix.ids = make(map[string]int)
	ix.synced = synced
}

// load replaces the in-memory state with the store's artifacts.
func (ix *Index) load(ctx context.Context) error {
	err := ix.loadFromStore(ctx)
	ix.metrics.ObserveSync("load", err)
	if err != nil {
		ix.log.Warn().Err(err).Str("location", ix.store.Location()).Msg("index reset to empty")
	}
	return err
}

func (ix *Index) loadFromStore(ctx context.Context) error {
	present := make([]bool, len(artifactKeys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range artifactKeys {
		g.Go(func() error {
			ok, err := ix.store.Exists(gctx, key)
			present[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ix.failLoad(&SyncError{Op: "load", Err: err})
	}

	var missing []string
	for i, ok := range present {
		if !ok {
			missing = append(missing, artifactKeys[i])
		}
	}
	switch len(missing) {
	case len(artifactKeys):
		ix.mu.Lock()
		ix.reset(true)
		ix.loadErr = nil
		ix.mu.Unlock()
		ix.metrics.SetIndexRows(0)
		return nil
	case 0:
	default:
		return ix.failLoad(&CorruptionError{Missing: missing})
	}

	dir, err := os.MkdirTemp(ix.cacheDir, "load-")
	if err != nil {
		return ix.failLoad(fmt.Errorf("creating load directory: %w", err))
	}
	defer os.RemoveAll(dir)

	g, gctx = errgroup.WithContext(ctx)
	for _, key := range artifactKeys {
		g.Go(func() error {
			return ix.store.Download(gctx, key, filepath.Join(dir, key))
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return ix.failLoad(&CorruptionError{Reason: err.Error()})
		}
		return ix.failLoad(&SyncError{Op: "load", Err: err})
	}

	snap, err := readSnapshot(dir)
	if err != nil {
		return ix.failLoad(err)
	}
	if snap.dim != ix.dim {
		return ix.failLoad(&DimensionError{Want: ix.dim, Got: snap.dim})
	}

	// Keep a local copy of what the store holds.
	for _, key := range artifactKeys {
		if err := os.Rename(filepath.Join(dir, key), filepath.Join(ix.cacheDir, key)); err != nil {
			ix.log.Debug().Err(err).Str("artifact", key).Msg("caching artifact")
		}
	}

	ix.mu.Lock()
	ix.generation = snap.generation
	ix.vectors = snap.vectors
	ix.entries = snap.entries
	ix.ids = snap.ids
	if ix.ids == nil {
		ix.ids = make(map[string]int)
	}
	ix.synced = true
	ix.lastSyncErr = nil
	ix.loadErr = nil
	n := len(ix.vectors)
	ix.mu.Unlock()

	ix.metrics.SetIndexRows(n)
	ix.log.Info().Int("chunks", n).Str("location", ix.store.Location()).Msg("index loaded")
	return nil
}

func (ix *Index) failLoad(err error) error {
	ix.mu.Lock()
	ix.reset(false)
	ix.loadErr = err
	ix.lastSyncErr = err
	ix.mu.Unlock()
	ix.metrics.SetIndexRows(0)
	return err
}

// LoadError returns why the last load fell back to an empty index, or nil.
func (ix *Index) LoadError() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loadErr
}

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Synced reports whether the in-memory state matches the durable store.
func (ix *Index) Synced() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.synced
}

// Contains reports whether chunkID is stored.
func (ix *Index) Contains(chunkID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.ids[chunkID]
	return ok
}

// AddReport summarizes one Add call.
type AddReport struct {
	// Added is the number of new rows appended.
	Added int `json:"added"`

	// Existing counts chunks already present, skipped by id.
	Existing int `json:"existing"`

	// MissingEmbedding counts chunks with no entry in the embeddings map.
	MissingEmbedding int `json:"missing_embedding"`

	// Synced reports whether the durable store holds the result.
	Synced bool `json:"synced"`
}

// Add appends the chunks that are not yet stored, then persists the index.
// The whole call is validated first: an embedding of the wrong dimension
// rejects the call and leaves the index untouched. Chunks without an
// embedding, or already present, are skipped. If persisting fails the new
// rows stay in memory, the index is marked unsynced, and a *SyncError is
// returned; call Sync to retry.
func (ix *Index) Add(ctx context.Context, chunks []types.TextChunk, embeddings map[string]types.Embedding) (AddReport, error) {
	ix.persistMu.Lock()
	defer ix.persistMu.Unlock()

	var report AddReport

	ix.mu.Lock()
	type pending struct {
		chunk types.TextChunk
		vec   []float32
	}
	var batch []pending
	inBatch := make(map[string]bool)
	for _, c := range chunks {
		if _, ok := ix.ids[c.ChunkID]; ok || inBatch[c.ChunkID] {
			report.Existing++
			continue
		}
		vec, ok := embeddings[c.ChunkID]
		if !ok || c.ChunkID == "" {
			report.MissingEmbedding++
			ix.log.Warn().Str("chunk_id", c.ChunkID).Msg("no embedding for chunk; skipping")
			continue
		}
		if len(vec) != ix.dim {
			ix.mu.Unlock()
			return AddReport{}, &DimensionError{Want: ix.dim, Got: len(vec), ChunkID: c.ChunkID}
		}
		inBatch[c.ChunkID] = true
		batch = append(batch, pending{chunk: c, vec: embedding.Normalize(vec)})
	}

	for _, p := range batch {
		row := len(ix.vectors)
		ix.vectors = append(ix.vectors, p.vec)
		ix.entries[row] = types.IndexEntry{Row: row, TextChunk: p.chunk}
		ix.ids[p.chunk.ChunkID] = row
	}
	report.Added = len(batch)
	if report.Added == 0 {
		report.Synced = ix.synced
		ix.mu.Unlock()
		return report, nil
	}
	ix.synced = false
	ix.mu.Unlock()

	ix.metrics.SetIndexRows(ix.Len())
	err := ix.persist(ctx)
	report.Synced = err == nil
	return report, err
}

// Sync persists the current state. It is the retry path after Add
// returned a *SyncError.
func (ix *Index) Sync(ctx context.Context) error {
	ix.persistMu.Lock()
	defer ix.persistMu.Unlock()
	if ix.Synced() {
		return nil
	}
	return ix.persist(ctx)
}

// persist writes a snapshot to the cache and uploads all three artifacts.
// Callers hold persistMu.
func (ix *Index) persist(ctx context.Context) error {
	ix.mu.RLock()
	snap := snapshot{
		generation: ix.generation + 1,
		dim:        ix.dim,
		vectors:    ix.vectors[:len(ix.vectors):len(ix.vectors)],
		entries:    make(map[int]types.IndexEntry, len(ix.entries)),
		ids:        make(map[string]int, len(ix.ids)),
	}
	for k, v := range ix.entries {
		snap.entries[k] = v
	}
	for k, v := range ix.ids {
		snap.ids[k] = v
	}
	ix.mu.RUnlock()

	err := ix.upload(ctx, snap)
	ix.metrics.ObserveSync("persist", err)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err != nil {
		ix.synced = false
		ix.lastSyncErr = err
		ix.log.Error().Err(err).Str("location", ix.store.Location()).Msg("index persist failed; in-memory state kept")
		return err
	}
	ix.generation = snap.generation
	ix.lastSyncErr = nil
	// A concurrent Add cannot run (persistMu), so the snapshot is current.
	ix.synced = len(ix.vectors) == len(snap.vectors)
	return nil
}

func (ix *Index) upload(ctx context.Context, snap snapshot) error {
	if err := writeSnapshot(ix.cacheDir, snap); err != nil {
		return &SyncError{Op: "persist", Err: err}
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range artifactKeys {
		g.Go(func() error {
			return ix.store.Upload(gctx, filepath.Join(ix.cacheDir, key), key)
		})
	}
	if err := g.Wait(); err != nil {
		return &SyncError{Op: "persist", Err: err}
	}
	return nil
}

// Search returns up to k entries whose cosine similarity to query is at
// least threshold, best first. Ties keep insertion order. Rows without
// metadata are skipped.
func (ix *Index) Search(query []float32, k int, threshold float64) []types.SearchResult {
	if len(query) != ix.dim {
		ix.log.Warn().Int("want", ix.dim).Int("got", len(query)).Msg("query dimension mismatch")
		return []types.SearchResult{}
	}
	if k <= 0 {
		return []types.SearchResult{}
	}
	q := embedding.Normalize(query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type hit struct {
		row   int
		score float64
	}
	hits := make([]hit, 0, len(ix.vectors))
	for row, v := range ix.vectors {
		var dot float64
		for i, x := range v {
			dot += float64(x) * float64(q[i])
		}
		if dot >= threshold {
			hits = append(hits, hit{row: row, score: dot})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	results := make([]types.SearchResult, 0, min(k, len(hits)))
	for _, h := range hits {
		if len(results) == k {
			break
		}
		entry, ok := ix.entries[h.row]
		if !ok {
			ix.log.Warn().Int("row", h.row).Msg("row has no metadata; skipping")
			continue
		}
		results = append(results, types.SearchResult{IndexEntry: entry, Score: h.score})
	}
	return results
}

// SearchByText embeds text with enc and searches for it. An encoder whose
// vectors do not match the index dimension yields a *DimensionError.
func (ix *Index) SearchByText(ctx context.Context, text string, enc Encoder, k int, threshold float64) ([]types.SearchResult, error) {
	q, err := enc.EncodeOne(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(q) != ix.dim {
		return nil, &DimensionError{Want: ix.dim, Got: len(q)}
	}
	return ix.Search(q, k, threshold), nil
}

// Stats summarizes the index contents and sync state.
type Stats struct {
	TotalChunks   int            `json:"total_chunks" yaml:"total_chunks"`
	ChunkTypes    map[string]int `json:"chunk_types" yaml:"chunk_types"`
	Sources       map[string]int `json:"sources" yaml:"sources"`
	UniquePapers  int            `json:"unique_papers" yaml:"unique_papers"`
	Dimension     int            `json:"embedding_dimension" yaml:"embedding_dimension"`
	Location      string         `json:"location" yaml:"location"`
	Generation    uint64         `json:"generation" yaml:"generation"`
	Synced        bool           `json:"is_synced" yaml:"is_synced"`
	LastSyncError string         `json:"last_sync_error,omitempty" yaml:"last_sync_error,omitempty"`
}

// Stats returns counts by chunk type and source, the number of distinct
// papers, and the sync state.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	st := Stats{
		TotalChunks: len(ix.vectors),
		ChunkTypes:  make(map[string]int),
		Sources:     make(map[string]int),
		Dimension:   ix.dim,
		Location:    ix.store.Location(),
		Generation:  ix.generation,
		Synced:      ix.synced,
	}
	papers := make(map[string]bool)
	for _, e := range ix.entries {
		st.ChunkTypes[string(e.ChunkType)]++
		st.Sources[e.Source]++
		papers[e.PaperID] = true
	}
	st.UniquePapers = len(papers)
	if ix.lastSyncErr != nil {
		st.LastSyncError = ix.lastSyncErr.Error()
	}
	return st
}

// ForceResync discards the in-memory state and reloads from the store.
func (ix *Index) ForceResync(ctx context.Context) error {
	ix.persistMu.Lock()
	defer ix.persistMu.Unlock()
	return ix.load(ctx)
}

// ClearCache removes the local artifact copies. The in-memory index and
// the durable store are unaffected.
func (ix *Index) ClearCache() error {
	for _, key := range artifactKeys {
		if err := os.Remove(filepath.Join(ix.cacheDir, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing cached %s: %w", key, err)
		}
	}
	return nil
}
