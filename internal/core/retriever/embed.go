package retriever

import (
	"context"
	"errors"
	"strings"

	"creator-coach/config"
	"creator-coach/pkg/logger"
)

// EmbedQuestion embeds a single question string and returns its vector.
func EmbedQuestion(ctx context.Context, embedder Embedder, question string) ([]float32, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}
	vec, err := embedder.Embed(ctx, question)
	if err != nil {
		logger.Module(config.ModuleRetriever).WithField("error", err.Error()).Warn("embed question failed")
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vec, nil
}
