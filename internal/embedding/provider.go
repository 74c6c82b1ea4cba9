// Package embedding converts text into dense vectors for similarity search.
package embedding

import "context"

// Provider generates embedding vectors. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimension reports the vector width this provider produces.
	Dimension() int
}
