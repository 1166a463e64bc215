// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/pdiddy/research-rag/internal/llm"
)

// probeText is embedded once at open time to discover the model dimension
// and confirm the model is available on the server.
const probeText = "dimension probe"

// OllamaModel embeds text through an Ollama server's /api/embed endpoint.
type OllamaModel struct {
	client *api.Client
	model  string
	dim    int
}

// OpenOllama returns an Opener for the named model on host. An empty host
// uses OLLAMA_HOST from the environment.
func OpenOllama(host, model string) Opener {
	return func(ctx context.Context) (Model, error) {
		client, err := llm.NewOllamaClient(host)
		if err != nil {
			return nil, err
		}
		m := &OllamaModel{client: client, model: model}

		vecs, err := m.Encode(ctx, []string{probeText})
		if err != nil {
			return nil, fmt.Errorf("probing %s: %w", model, err)
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("probing %s: empty embedding", model)
		}
		m.dim = len(vecs[0])
		return m, nil
	}
}

// Name returns the model name.
func (m *OllamaModel) Name() string { return m.model }

// Dimension returns the embedding length discovered by the probe.
func (m *OllamaModel) Dimension() int { return m.dim }

// Encode embeds texts in a single request.
func (m *OllamaModel) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := m.client.Embed(ctx, &api.EmbedRequest{
		Model: m.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return resp.Embeddings, nil
}
