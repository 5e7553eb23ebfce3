package retriever

import "context"

// Embedder maps the search question into the chunk embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Hit is one chunk returned by a semantic search, best first.
type Hit struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Content    string  `json:"content"`
}

// Advice is a single formatted excerpt served to the assistant.
type Advice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
