package model

import "context"

// Document is a single corpus item. Documents are immutable once indexed;
// changing a document requires a full engine rebuild.
type Document struct {
	// ID is the user-facing, opaque identifier.
	ID string `json:"id"`

	// Text is the raw text that feeds both retrieval paths.
	Text string `json:"text"`

	// Metadata holds scalar labels used for exact-match filtering.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Embedder turns text into a dense vector of a fixed dimension.
//
// Implementations are external to fusego (remote models, local ONNX
// runtimes, test fakes). The engine L2-normalizes returned vectors before
// indexing; implementations do not have to.
type Embedder interface {
	// Embed encodes text into a vector of Dimensions() float32 values.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed output dimensionality.
	Dimensions() int

	// Model returns a stable model identifier. It is mixed into embedding
	// cache keys, so two embedders returning different vectors for the same
	// text must report different identifiers.
	Model() string
}
