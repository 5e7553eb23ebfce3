package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creator-coach/config"
	"creator-coach/pkg/logger"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

// ErrEmptyEmbedding is returned when the provider answers without a vector.
var ErrEmptyEmbedding = errors.New("embedding provider returned an empty vector")

type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIConfig configures OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// RequestsPerSecond throttles outgoing calls; 0 disables throttling.
	RequestsPerSecond float64
}

// OpenAIConfigFromSettings reads the embedding settings from config.Cfg.
func OpenAIConfigFromSettings() OpenAIConfig {
	return OpenAIConfig{
		APIKey:            config.Cfg.OpenAI.Key,
		BaseURL:           config.Cfg.OpenAI.BaseURL,
		Model:             config.Cfg.OpenAI.EmbeddingModel,
		RequestsPerSecond: config.Cfg.Ingest.EmbedRPS,
	}
}

// OpenAIEmbedder maps one text to one vector through the embeddings endpoint.
// The client is built once; retries are disabled so a failed call surfaces immediately.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	limiter *rate.Limiter
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing openai key")
	}
	if cfg.Model == "" {
		return nil, errors.New("missing embedding model")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	e := &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e, nil
}

// Embed returns the embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	var out openAIEmbeddingResponse
	if err := e.client.Post(ctx, "embeddings", openAIEmbeddingRequest{Model: e.model, Input: text}, &out); err != nil {
		logger.Module(config.ModuleOpenAI).WithFields(map[string]interface{}{
			"model": e.model,
			"chars": len(text),
			"error": err.Error(),
		}).Warn("openai: embedding call failed")
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("openai embeddings: %s", out.Error.Message)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	src := out.Data[0].Embedding
	vec := make([]float32, len(src))
	for k := range src {
		vec[k] = float32(src[k])
	}
	logger.Module(config.ModuleOpenAI).WithFields(map[string]interface{}{
		"model":      e.model,
		"dim":        len(vec),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("openai: embedding done")
	return vec, nil
}
