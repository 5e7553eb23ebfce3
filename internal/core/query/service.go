// Package query answers creator questions from retrieved document excerpts.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creator-coach/config"
	"creator-coach/internal/core/retriever"
	"creator-coach/pkg/apperror/status"
	"creator-coach/pkg/logger"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// NoEvidenceAnswer is returned, without calling the model, when nothing relevant was retrieved.
const NoEvidenceAnswer = "There is not enough material in the coaching library to answer that yet."

// Searcher finds the chunks a question is grounded on.
type Searcher interface {
	Search(ctx context.Context, title, question string, topK int, excluded []string) ([]retriever.Hit, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

func ConfigFromSettings() Config {
	return Config{
		APIKey:      config.Cfg.OpenAI.Key,
		BaseURL:     config.Cfg.OpenAI.BaseURL,
		Model:       config.Cfg.OpenAI.Model,
		Temperature: 0.2,
		MaxTokens:   512,
	}
}

type Service struct {
	searcher Searcher
	client   openai.Client
	cfg      Config
}

func NewService(searcher Searcher, cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing openai key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Service{searcher: searcher, client: openai.NewClient(opts...), cfg: cfg}, nil
}

// Run executes the query flow: search → prompt → LLM.
func (s *Service) Run(ctx context.Context, req Request) (Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Response{}, status.New(status.MissingParams, errors.New("question is required"))
	}
	log := logger.Module(config.ModuleQuery)

	searchCtx, cancelSearch := context.WithTimeout(ctx, 5*time.Second)
	defer cancelSearch()
	hits, err := s.searcher.Search(searchCtx, req.Title, question, req.TopK, req.ExcludeIDs)
	if err != nil {
		return Response{}, err
	}

	ctxs := make([]ContextSnippet, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		ctxs = append(ctxs, ContextSnippet{
			ChunkID:    h.ChunkID,
			ChunkIndex: h.ChunkIndex,
			Score:      h.Score,
			Snippet:    retriever.FormatExcerpt(h.Content),
		})
	}
	if len(ctxs) == 0 {
		log.WithField("title", req.Title).Info("no context found, answering without llm")
		return Response{Answer: NoEvidenceAnswer, Contexts: []ContextSnippet{}}, nil
	}

	sysMsg, userMsg := buildPrompt(question, hits)
	llmCtx, cancelLLM := context.WithTimeout(ctx, 30*time.Second)
	defer cancelLLM()
	answer, err := s.callLLM(llmCtx, sysMsg, userMsg)
	if err != nil {
		return Response{}, status.New(status.QueryCompletionFailed, err)
	}
	log.WithFields(map[string]interface{}{
		"title":    req.Title,
		"contexts": len(ctxs),
	}).Info("query answered")
	return Response{Answer: answer, Contexts: ctxs}, nil
}

func buildPrompt(question string, hits []retriever.Hit) (systemMsg, userMsg string) {
	var b strings.Builder
	b.WriteString("You are a coach for content creators. Answer briefly and practically. ")
	b.WriteString("Use only the excerpts below. If they do not cover the question, reply exactly: \"")
	b.WriteString(NoEvidenceAnswer)
	b.WriteString("\"\n\nExcerpts:\n")
	n := 0
	for _, h := range hits {
		text := sanitize(h.Content)
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "[%d] (chunk=%d): %s\n\n", n, h.ChunkIndex, text)
	}
	systemMsg = b.String()
	userMsg = fmt.Sprintf("Question: %s\nKeep it short; quote an excerpt when it helps.", question)
	return
}

func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

func (s *Service) callLLM(ctx context.Context, promptSystem, promptUser string) (string, error) {
	req := chatRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: promptSystem},
			{Role: "user", Content: promptUser},
		},
	}
	var out chatResponse
	if err := s.client.Post(ctx, "chat/completions", req, &out); err != nil {
		logger.Error(err, "%v: call llm failed", config.ModuleQuery)
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
