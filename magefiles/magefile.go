//go:build mage

// Package main contains Mage build targets for research-rag developer tooling.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

// projectDirs lists the working directories the pipeline expects with the
// default configuration.
var projectDirs = []string{
	"rag-store",
	"rag-store/cache",
	"catalog",
	"output/reports",
}

const (
	binDir  = "bin"
	binName = "research-rag"
	cmdPkg  = "./cmd/research-rag"

	// buildTags enables the SQLite FTS5 extension used by the catalog.
	buildTags = "sqlite_fts5"
)

// Init creates the project directory structure for the pipeline.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := run("go", "build", "-tags", buildTags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests for every package.
func Test() error {
	return run("go", "test", "-tags", buildTags, "./...")
}

// Vet runs go vet with the same tags as the build.
func Vet() error {
	return run("go", "vet", "-tags", buildTags, "./...")
}

// Check vets, tests, and builds.
func Check() {
	mg.SerialDeps(Vet, Test, Build)
}

// Clean removes the binary directory and the local rag-store cache. The
// catalog and rag-store artifacts are left alone.
func Clean() error {
	for _, dir := range []string{binDir, "rag-store/cache"} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	return nil
}

// Demo builds the binary and runs an offline ingest and query against the
// hashing embedder, using the topic in RAG_DEMO_TOPIC if set.
func Demo() error {
	mg.Deps(Init, Build)
	topic := os.Getenv("RAG_DEMO_TOPIC")
	if topic == "" {
		topic = "transformer attention"
	}
	bin := filepath.Join(binDir, binName)
	env := []string{"RESEARCH_RAG_EMBEDDING_PROVIDER=hashing"}
	if err := runEnv(env, bin, "ingest", topic); err != nil {
		return err
	}
	return runEnv(env, bin, "retrieve", topic)
}

// Stats prints project metrics: Go production and test LOC.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	return nil
}

func run(name string, args ...string) error {
	return runEnv(nil, name, args...)
}

func runEnv(env []string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// countGoLines walks the tree and counts non-blank lines in Go files,
// skipping the _examples directory. If testOnly is true, only _test.go files
// are counted; otherwise only non-test files.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), "_") || info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				total++
			}
		}
		return nil
	})
	return total, err
}
