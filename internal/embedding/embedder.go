// Package embedding generates, caches, and compares text embeddings.
package embedding

import "context"

// Backend is a remote embedding service.
type Backend interface {
	// EmbedTexts returns one vector per input, in input order. Inputs are
	// never empty; the generator filters blanks before calling.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier. It is part of every
	// cache key, so two models never share entries.
	Model() string
}
