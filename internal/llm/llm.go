// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the boundary to text generation models. The rest of the
// system sees a model only as a Generator: prompt in, text out, fallible
// and rate limited.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/pdiddy/research-rag/internal/httputil"
)

// Generator turns a prompt into a response.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NewOllamaClient returns an Ollama API client for host, or for OLLAMA_HOST
// when host is empty.
func NewOllamaClient(host string) (*api.Client, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating ollama client from environment: %w", err)
		}
		return client, nil
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return api.NewClient(u, http.DefaultClient), nil
}

// Ollama generates text with a model served by Ollama.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama returns a Generator for model on host.
func NewOllama(host, model string) (*Ollama, error) {
	client, err := NewOllamaClient(host)
	if err != nil {
		return nil, err
	}
	return &Ollama{client: client, model: model}, nil
}

// Generate sends prompt as a single non-streaming request.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var b strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return "", fmt.Errorf("ollama generate: %w", &httputil.StatusError{Service: "ollama", StatusCode: se.StatusCode})
		}
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return b.String(), nil
}

// WithRetry wraps g so rate-limited and server-side failures are retried
// with exponential backoff according to p.
func WithRetry(g Generator, p httputil.Policy) Generator {
	return GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		var out string
		err := httputil.Retry(ctx, p, func(ctx context.Context) error {
			var err error
			out, err = g.Generate(ctx, prompt)
			return err
		})
		return out, err
	})
}
