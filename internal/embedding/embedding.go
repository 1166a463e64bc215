// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedding maps text to fixed-dimension vectors. A Service wraps a
// Model that is opened lazily on first use, encodes in bounded sub-batches,
// and degrades per-batch failures to zero vectors so callers always get a
// result of the same shape as their input.
package embedding

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-rag/pkg/types"
)

const (
	// DefaultDimension matches all-MiniLM-L6-v2 style sentence encoders.
	DefaultDimension = 384

	// DefaultBatchSize bounds the number of texts sent to the model at once.
	DefaultBatchSize = 16
)

// Model is a loaded embedding model.
type Model interface {
	Name() string
	Dimension() int
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Opener materializes a Model. It is called at most once per Service.
type Opener func(ctx context.Context) (Model, error)

// Service encodes text with a lazily loaded Model.
type Service struct {
	name       string
	open       Opener
	defaultDim int
	batchSize  int
	cache      *Cache
	log        zerolog.Logger

	mu      sync.Mutex
	model   Model
	loadErr error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for degraded encodes and skipped items.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithCache enables lookups in a persistent embedding cache.
func WithCache(c *Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithBatchSize sets the default sub-batch size for EncodeMany.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewService returns a Service for the named model. dim is reported by
// Dimension until the model has been loaded; zero means DefaultDimension.
func NewService(name string, dim int, open Opener, opts ...Option) *Service {
	if dim <= 0 {
		dim = DefaultDimension
	}
	s := &Service{
		name:       name,
		open:       open,
		defaultDim: dim,
		batchSize:  DefaultBatchSize,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the configured model name.
func (s *Service) Name() string { return s.name }

// Dimension returns the loaded model's dimension, or the configured default
// if the model has not been loaded yet. It never triggers a load.
func (s *Service) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		return s.model.Dimension()
	}
	return s.defaultDim
}

// Loaded reports whether the model has been materialized.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model != nil
}

// load opens the model on first call. A failed open is permanent.
func (s *Service) load(ctx context.Context) (Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		return s.model, nil
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	m, err := s.open(ctx)
	if err != nil {
		s.loadErr = &ModelLoadError{Model: s.name, Err: err}
		return nil, s.loadErr
	}
	s.model = m
	s.log.Info().Str("model", m.Name()).Int("dimension", m.Dimension()).Msg("embedding model loaded")
	return m, nil
}

// EncodeOne returns the embedding of text. Blank text yields a zero vector
// without loading the model. Encode failures also yield a zero vector; only
// a model load failure is returned as an error.
func (s *Service) EncodeOne(ctx context.Context, text string) (types.Embedding, error) {
	out, err := s.EncodeMany(ctx, []string{text}, 1)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EncodeMany returns one embedding per input text, in input order. Texts are
// sent to the model in sub-batches of batchSize (the service default when
// batchSize <= 0). A sub-batch that fails to encode contributes zero vectors.
// The returned error is either a *ModelLoadError or the context's error.
func (s *Service) EncodeMany(ctx context.Context, texts []string, batchSize int) ([]types.Embedding, error) {
	out := make([]types.Embedding, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	var pending []int
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			pending = append(pending, i)
		}
	}

	if len(pending) > 0 {
		m, err := s.load(ctx)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			pending = s.fromCache(m.Name(), m.Dimension(), texts, pending, out)
		}

		for start := 0; start < len(pending); start += batchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			end := min(start+batchSize, len(pending))
			s.encodeBatch(ctx, m, texts, pending[start:end], out)
		}
	}

	dim := s.Dimension()
	for i := range out {
		if out[i] == nil {
			out[i] = make(types.Embedding, dim)
		}
	}
	return out, nil
}

func (s *Service) fromCache(model string, dim int, texts []string, pending []int, out []types.Embedding) []int {
	var misses []int
	for _, i := range pending {
		if v, ok := s.cache.Get(model, dim, texts[i]); ok {
			out[i] = v
			continue
		}
		misses = append(misses, i)
	}
	return misses
}

// encodeBatch fills out at the given indices. Failures are logged and left
// nil so the caller substitutes zero vectors.
func (s *Service) encodeBatch(ctx context.Context, m Model, texts []string, idx []int, out []types.Embedding) {
	batch := make([]string, len(idx))
	for j, i := range idx {
		batch[j] = texts[i]
	}

	vecs, err := m.Encode(ctx, batch)
	if err == nil && len(vecs) != len(batch) {
		err = errShape(len(batch), len(vecs))
	}
	if err != nil {
		s.log.Warn().Err(&EmbeddingError{Count: len(batch), Err: err}).Msg("encode failed; substituting zero vectors")
		return
	}

	for j, i := range idx {
		out[i] = vecs[j]
		if s.cache != nil {
			if cerr := s.cache.Put(m.Name(), texts[i], vecs[j]); cerr != nil {
				s.log.Debug().Err(cerr).Msg("embedding cache write failed")
			}
		}
	}
}

// Similarity returns the cosine similarity of the embeddings of a and b.
// It is 0 when either embedding is the zero vector.
func (s *Service) Similarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := s.EncodeMany(ctx, []string{a, b}, 2)
	if err != nil {
		return 0, err
	}
	return Cosine(vecs[0], vecs[1]), nil
}

// Match is a candidate index and its similarity to a query.
type Match struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// MostSimilar returns the k candidates most similar to query, highest
// score first. Ties keep candidate order.
func (s *Service) MostSimilar(ctx context.Context, query string, candidates []string, k int) ([]Match, error) {
	if len(candidates) == 0 || k <= 0 {
		return nil, nil
	}
	q, err := s.EncodeOne(ctx, query)
	if err != nil {
		return nil, err
	}
	vecs, err := s.EncodeMany(ctx, candidates, 0)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(vecs))
	for i, v := range vecs {
		matches[i] = Match{Index: i, Score: Cosine(q, v)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// EmbedChunks embeds the text of each chunk and returns the vectors keyed
// by chunk id. Chunks without an id or text are skipped and logged.
func (s *Service) EmbedChunks(ctx context.Context, chunks []types.TextChunk, batchSize int) (map[string]types.Embedding, error) {
	var (
		ids   []string
		texts []string
	)
	for _, c := range chunks {
		if err := validateChunk(c); err != nil {
			s.log.Warn().Err(err).Msg("skipping chunk")
			continue
		}
		ids = append(ids, c.ChunkID)
		texts = append(texts, c.Text)
	}

	vecs, err := s.EncodeMany(ctx, texts, batchSize)
	if err != nil {
		return nil, err
	}

	out := make(map[string]types.Embedding, len(ids))
	for i, id := range ids {
		out[id] = vecs[i]
	}
	return out, nil
}

func validateChunk(c types.TextChunk) error {
	switch {
	case c.ChunkID == "":
		return &ValidationError{Field: "chunk_id", Reason: "missing"}
	case strings.TrimSpace(c.Text) == "":
		return &ValidationError{ChunkID: c.ChunkID, Field: "text", Reason: "empty"}
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either has
// zero norm or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
