// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files
// and from a dotenv file. In the directory each file is one secret: the filename is the
// key name and the file contents (trimmed) are the value. Dotenv variables map to the
// same key names by lowercasing and replacing underscores with dashes, so
// SEMANTIC_SCHOLAR_API_KEY and .secrets/semantic-scholar-api-key are the same secret.
//
// Supported keys: semantic-scholar-api-key, openalex-email.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key names read by the CLI.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadDotEnv parses the dotenv file at path without touching the process
// environment. A missing file yields an empty map.
func LoadDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	secrets := make(map[string]string, len(vars))
	for name, value := range vars {
		value = strings.TrimSpace(value)
		if value != "" {
			secrets[KeyName(name)] = value
		}
	}
	return secrets, nil
}

// ApplyDotEnv exports the variables in the dotenv file at path into the
// process environment. Variables that are already set win. A missing file
// is not an error.
func ApplyDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Resolve merges the dotenv file and the secrets directory. Files in dir
// override dotenv values of the same key.
func Resolve(dir, envFile string) (map[string]string, error) {
	merged, err := LoadDotEnv(envFile)
	if err != nil {
		return nil, err
	}
	files, err := Load(dir)
	if err != nil {
		return nil, err
	}
	for k, v := range files {
		merged[k] = v
	}
	return merged, nil
}

// KeyName converts an environment variable name to a secret key name.
func KeyName(env string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(env)), "_", "-")
}
