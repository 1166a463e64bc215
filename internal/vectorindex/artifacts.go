// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdiddy/research-rag/pkg/types"
)

// Durable artifact keys under the store prefix.
const (
	VectorsKey  = "vectors.bin"
	MetadataKey = "chunk_metadata.json"
	IDMapKey    = "id_mapping.json"
)

var artifactKeys = []string{VectorsKey, MetadataKey, IDMapKey}

var vectorsMagic = [4]byte{'R', 'V', 'E', 'C'}

const (
	vectorsVersion uint32 = 1

	// vectorsHeaderSize is magic, version, dimension, rows, generation.
	vectorsHeaderSize = 4 + 4 + 4 + 8 + 8

	// maxDimension bounds the dimension accepted from a vectors header.
	maxDimension = 1 << 16
)

// snapshot is a consistent copy of the index state, ready to encode.
// Generation increases with every persist and is written into all three
// artifacts so a torn write is detectable on load.
type snapshot struct {
	generation uint64
	dim        int
	vectors    [][]float32
	entries    map[int]types.IndexEntry
	ids        map[string]int
}

type metadataFile struct {
	Generation uint64                      `json:"generation"`
	Entries    map[string]types.IndexEntry `json:"entries"`
}

type idMapFile struct {
	Generation uint64         `json:"generation"`
	IDs        map[string]int `json:"ids"`
}

// writeSnapshot encodes snap into dir, one file per artifact.
func writeSnapshot(dir string, snap snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	if err := writeFile(filepath.Join(dir, VectorsKey), func(w io.Writer) error {
		return encodeVectors(w, snap.generation, snap.dim, snap.vectors)
	}); err != nil {
		return err
	}

	meta := metadataFile{Generation: snap.generation, Entries: make(map[string]types.IndexEntry, len(snap.entries))}
	for row, e := range snap.entries {
		meta.Entries[strconv.Itoa(row)] = e
	}
	if err := writeFile(filepath.Join(dir, MetadataKey), jsonWriter(meta)); err != nil {
		return err
	}

	return writeFile(filepath.Join(dir, IDMapKey), jsonWriter(idMapFile{Generation: snap.generation, IDs: snap.ids}))
}

// readSnapshot decodes the three artifacts from dir and checks that they
// describe the same index.
func readSnapshot(dir string) (snapshot, error) {
	var snap snapshot

	f, err := os.Open(filepath.Join(dir, VectorsKey))
	if err != nil {
		return snap, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return snap, err
	}
	gen, dim, vectors, err := decodeVectors(bufio.NewReader(f), info.Size())
	f.Close()
	if err != nil {
		return snap, &CorruptionError{Reason: fmt.Sprintf("%s: %v", VectorsKey, err)}
	}

	var meta metadataFile
	if err := readJSON(filepath.Join(dir, MetadataKey), &meta); err != nil {
		return snap, &CorruptionError{Reason: fmt.Sprintf("%s: %v", MetadataKey, err)}
	}
	var idm idMapFile
	if err := readJSON(filepath.Join(dir, IDMapKey), &idm); err != nil {
		return snap, &CorruptionError{Reason: fmt.Sprintf("%s: %v", IDMapKey, err)}
	}

	if meta.Generation != gen || idm.Generation != gen {
		return snap, &CorruptionError{Reason: fmt.Sprintf(
			"generation mismatch: vectors %d, metadata %d, id map %d", gen, meta.Generation, idm.Generation)}
	}
	if len(idm.IDs) != len(vectors) {
		return snap, &CorruptionError{Reason: fmt.Sprintf(
			"id map has %d entries for %d vectors", len(idm.IDs), len(vectors))}
	}

	seen := make(map[int]bool, len(idm.IDs))
	for id, row := range idm.IDs {
		if row < 0 || row >= len(vectors) || seen[row] {
			return snap, &CorruptionError{Reason: fmt.Sprintf("chunk %s maps to invalid row %d", id, row)}
		}
		seen[row] = true
	}

	entries := make(map[int]types.IndexEntry, len(meta.Entries))
	for key, e := range meta.Entries {
		row, err := strconv.Atoi(key)
		if err != nil || row < 0 || row >= len(vectors) {
			return snap, &CorruptionError{Reason: fmt.Sprintf("metadata row %q out of range", key)}
		}
		e.Row = row
		entries[row] = e
	}

	return snapshot{generation: gen, dim: dim, vectors: vectors, entries: entries, ids: idm.IDs}, nil
}

// encodeVectors writes a header (magic, version, dimension, rows,
// generation) followed by rows*dim little-endian float32 values.
func encodeVectors(w io.Writer, generation uint64, dim int, vectors [][]float32) error {
	bw := bufio.NewWriter(w)
	header := []any{vectorsMagic, vectorsVersion, uint32(dim), uint64(len(vectors)), generation}
	for _, h := range header {
		if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
			return err
		}
	}
	buf := make([]byte, 4*dim)
	for _, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("row has dimension %d, want %d", len(v), dim)
		}
		for i, x := range v {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// decodeVectors reads what encodeVectors wrote. size is the total length of
// the encoded data; the header must account for exactly that many bytes
// before anything is allocated.
func decodeVectors(r io.Reader, size int64) (generation uint64, dim int, vectors [][]float32, err error) {
	if size < vectorsHeaderSize {
		return 0, 0, nil, fmt.Errorf("file is %d bytes, shorter than the header", size)
	}
	var (
		magic   [4]byte
		version uint32
		d       uint32
		rows    uint64
	)
	for _, h := range []any{&magic, &version, &d, &rows, &generation} {
		if err = binary.Read(r, binary.LittleEndian, h); err != nil {
			return 0, 0, nil, fmt.Errorf("reading header: %w", err)
		}
	}
	if magic != vectorsMagic {
		return 0, 0, nil, errors.New("bad magic")
	}
	if version != vectorsVersion {
		return 0, 0, nil, fmt.Errorf("unsupported version %d", version)
	}
	if d == 0 {
		return 0, 0, nil, errors.New("zero dimension")
	}
	if d > maxDimension {
		return 0, 0, nil, fmt.Errorf("dimension %d exceeds %d", d, maxDimension)
	}
	payload, rowBytes := uint64(size-vectorsHeaderSize), 4*uint64(d)
	if payload%rowBytes != 0 || payload/rowBytes != rows {
		return 0, 0, nil, fmt.Errorf("header claims %d rows of dimension %d, file holds %d payload bytes", rows, d, payload)
	}

	dim = int(d)
	buf := make([]byte, 4*dim)
	vectors = make([][]float32, 0, rows)
	for i := uint64(0); i < rows; i++ {
		if _, err = io.ReadFull(r, buf); err != nil {
			return 0, 0, nil, fmt.Errorf("reading row %d: %w", i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		vectors = append(vectors, v)
	}
	return generation, dim, vectors, nil
}

func jsonWriter(v any) func(io.Writer) error {
	return func(w io.Writer) error {
		return json.NewEncoder(w).Encode(v)
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeFile writes via a temp file and rename so a crash never leaves a
// half-written artifact in the cache.
func writeFile(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
