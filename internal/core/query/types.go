package query

type Request struct {
	Question   string   `json:"question"`
	Title      string   `json:"title"`
	ExcludeIDs []string `json:"exclude_ids"`
	TopK       int      `json:"top_k"`
}

type ContextSnippet struct {
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Snippet    string  `json:"snippet"`
}

type Response struct {
	Answer   string           `json:"answer"`
	Contexts []ContextSnippet `json:"contexts"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}
