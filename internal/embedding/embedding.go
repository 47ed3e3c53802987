// Package embedding is the embedding faculty: it turns record text into
// vectors through the Gemini embedding API. There is no vector store behind
// it; callers decide what to do with the vectors.
package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"muse/internal/logging"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "gemini-embedding-001"

// Engine is the embed capability agents depend on. Fakes substitute in tests.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config configures the Gemini-backed engine. TaskType tunes the vectors for
// a downstream use; empty means semantic similarity.
type Config struct {
	APIKey   string
	Model    string
	TaskType string
}

var taskTypes = map[string]string{
	"SEMANTIC_SIMILARITY": "SEMANTIC_SIMILARITY",
	"CLASSIFICATION":      "CLASSIFICATION",
	"CLUSTERING":          "CLUSTERING",
	"RETRIEVAL_DOCUMENT":  "RETRIEVAL_DOCUMENT",
	"RETRIEVAL_QUERY":     "RETRIEVAL_QUERY",
	"QUESTION_ANSWERING":  "QUESTION_ANSWERING",
	"FACT_VERIFICATION":   "FACT_VERIFICATION",
}

// GenAIEngine generates embeddings through the google.golang.org/genai SDK.
type GenAIEngine struct {
	client   *genai.Client
	model    string
	taskType string
}

// New creates a Gemini-backed embedding engine.
func New(cfg Config) (*GenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	task, ok := taskTypes[cfg.TaskType]
	if !ok {
		task = "SEMANTIC_SIMILARITY"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIEngine{
		client:   client,
		model:    model,
		taskType: task,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: e.taskType,
		},
	)
	if err != nil {
		logging.EmbeddingError("EmbedBatch: call failed for %d texts: %v", len(texts), err)
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}

	logging.Embedding("EmbedBatch: model=%s texts=%d", e.model, len(texts))
	return embeddings, nil
}

// Model returns the configured embedding model.
func (e *GenAIEngine) Model() string {
	return e.model
}
