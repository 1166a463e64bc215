// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "semantic-scholar-api-key", "  sk_xyz789  \n")
				writeFile(t, dir, "openalex-email", "user@example.com\n")
				return dir
			},
			want: map[string]string{
				"semantic-scholar-api-key": "sk_xyz789",
				"openalex-email":           "user@example.com",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "semantic-scholar-api-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				"semantic-scholar-api-key": "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "openalex-email", "me@example.org")
				return dir
			},
			want: map[string]string{
				"openalex-email": "me@example.org",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "semantic-scholar-api-key", "sk_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				"semantic-scholar-api-key": "sk_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// Create a file then remove read permission.
	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir)
	require.NoError(t, err)
	// The good file should still be returned; the bad file is skipped with a warning.
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "# keys\nSEMANTIC_SCHOLAR_API_KEY=sk_env\nOPENALEX_EMAIL=\"env@example.com\"\nEMPTY=\n")

	got, err := LoadDotEnv(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		SemanticScholarAPIKey: "sk_env",
		OpenAlexEmail:         "env@example.com",
	}, got)

	got, err = LoadDotEnv(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveDirectoryWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "SEMANTIC_SCHOLAR_API_KEY=sk_env\nOPENALEX_EMAIL=env@example.com\n")
	secretsDir := filepath.Join(dir, ".secrets")
	require.NoError(t, os.Mkdir(secretsDir, 0o755))
	writeFile(t, secretsDir, SemanticScholarAPIKey, "sk_file")

	got, err := Resolve(secretsDir, filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "sk_file", got[SemanticScholarAPIKey])
	assert.Equal(t, "env@example.com", got[OpenAlexEmail])
}

func TestApplyDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "RESEARCH_RAG_TEST_FROM_FILE=file\nRESEARCH_RAG_TEST_PRESET=file\n")
	t.Setenv("RESEARCH_RAG_TEST_PRESET", "process")
	t.Setenv("RESEARCH_RAG_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("RESEARCH_RAG_TEST_FROM_FILE"))

	require.NoError(t, ApplyDotEnv(filepath.Join(dir, ".env")))
	assert.Equal(t, "file", os.Getenv("RESEARCH_RAG_TEST_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("RESEARCH_RAG_TEST_PRESET"))

	assert.NoError(t, ApplyDotEnv(filepath.Join(dir, "missing.env")))
}

func TestKeyName(t *testing.T) {
	assert.Equal(t, "semantic-scholar-api-key", KeyName("SEMANTIC_SCHOLAR_API_KEY"))
	assert.Equal(t, "openalex-email", KeyName(" OPENALEX_EMAIL "))
}
