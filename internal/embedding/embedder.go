// Package embedding provides text embedding for the knowledge corpus and
// retrieval queries.
package embedding

import "context"

// Embedder produces fixed-dimension embedding vectors. Documents and queries
// go through distinct paths so implementations can condition the encoding on
// intent (retrieval queries get an instruction prefix).
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EncodeDocument embeds corpus text for storage.
	EncodeDocument(ctx context.Context, text string) ([]float32, error)

	// EncodeQuery embeds a retrieval query.
	EncodeQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimension this embedder produces.
	Dimension() int
}
