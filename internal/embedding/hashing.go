// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashingModel is an offline embedder that projects lowercase word unigrams
// and bigrams into a fixed number of buckets with a signed hash, then
// normalizes to unit length. Identical texts always map to identical
// vectors and texts sharing vocabulary score high, which is enough for
// tests and for running without an embedding server.
type HashingModel struct {
	dim int
}

// NewHashingModel returns a HashingModel with dim buckets.
func NewHashingModel(dim int) *HashingModel {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashingModel{dim: dim}
}

// OpenHashing returns an Opener for a HashingModel.
func OpenHashing(dim int) Opener {
	return func(context.Context) (Model, error) {
		return NewHashingModel(dim), nil
	}
}

// Name returns "hashing".
func (m *HashingModel) Name() string { return "hashing" }

// Dimension returns the number of buckets.
func (m *HashingModel) Dimension() int { return m.dim }

// Encode embeds each text independently.
func (m *HashingModel) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.embed(t)
	}
	return out, nil
}

func (m *HashingModel) embed(text string) []float32 {
	v := make([]float32, m.dim)
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	for i, tok := range tokens {
		m.add(v, tok, 1)
		if i > 0 {
			m.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

func (m *HashingModel) add(v []float32, feature string, weight float32) {
	h := fnv.New32a()
	h.Write([]byte(feature))
	sum := h.Sum32()
	idx := int(sum % uint32(m.dim))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	v[idx] += weight
}
