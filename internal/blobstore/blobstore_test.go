// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blobstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-rag/pkg/types"
)

// fakeS3 is a minimal path-style S3 server supporting HEAD, GET, and PUT.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut string
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(data)
	case http.MethodPut:
		if f.failPut != "" && strings.HasSuffix(key, f.failPut) {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>InternalError</Code><Message>boom</Message></Error>`)
			return
		}
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T, f *fakeS3) *S3Store {
	t.Helper()
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)

	s, err := NewS3Store(S3Config{
		Bucket:          "papers",
		Prefix:          "rag-index",
		Region:          "us-east-1",
		Endpoint:        ts.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	return s
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// exerciseStore runs the same contract checks against any Store.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	ok, err := s.Exists(ctx, "vectors.bin")
	require.NoError(t, err)
	assert.False(t, ok)

	dst := filepath.Join(t.TempDir(), "cache", "vectors.bin")
	err = s.Download(ctx, "vectors.bin", dst)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Upload(ctx, writeTemp(t, "payload-1"), "vectors.bin"))

	ok, err = s.Exists(ctx, "vectors.bin")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Download(ctx, "vectors.bin", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload-1", string(data))

	// Overwrite replaces the content.
	require.NoError(t, s.Upload(ctx, writeTemp(t, "payload-2"), "vectors.bin"))
	require.NoError(t, s.Download(ctx, "vectors.bin", dst))
	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload-2", string(data))
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStore(root, "rag-index")
	exerciseStore(t, s)

	_, err := os.Stat(filepath.Join(root, "rag-index", "vectors.bin"))
	assert.NoError(t, err)
	assert.Contains(t, s.Location(), "rag-index")
}

func TestS3Store(t *testing.T) {
	f := newFakeS3()
	s := newTestS3Store(t, f)
	exerciseStore(t, s)

	f.mu.Lock()
	_, ok := f.objects["papers/rag-index/vectors.bin"]
	f.mu.Unlock()
	assert.True(t, ok, "objects are addressed path-style under the prefix")
	assert.Equal(t, "s3://papers/rag-index", s.Location())
}

func TestS3StoreUploadFailure(t *testing.T) {
	f := newFakeS3()
	f.failPut = "id_mapping.json"
	s := newTestS3Store(t, f)

	err := s.Upload(context.Background(), writeTemp(t, "{}"), "id_mapping.json")
	assert.Error(t, err)
}

func TestS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.IndexConfig
		wantErr bool
	}{
		{"local", types.IndexConfig{Backend: "local", LocalDir: t.TempDir(), Prefix: "p"}, false},
		{"local without dir", types.IndexConfig{Backend: "local"}, true},
		{"s3", types.IndexConfig{Backend: "s3", Bucket: "b", Region: "eu-west-1", Endpoint: "http://127.0.0.1:1"}, false},
		{"s3 without bucket", types.IndexConfig{Backend: "s3"}, true},
		{"unknown", types.IndexConfig{Backend: "gcs"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}
