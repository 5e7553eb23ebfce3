package retriever

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"creator-coach/config"
	"creator-coach/internal/database/model"
	"creator-coach/internal/repository"
	"creator-coach/pkg/logger"
)

// Selector serves advice excerpts from the document whose title starts with
// TitlePrefix. Callers pass back the ids they have already shown; the selector
// keeps no state of its own.
type Selector struct {
	store       repository.Store
	titlePrefix string
	listLimit   int
	// intN returns a value in [0, n).
	intN func(n int) int
}

type SelectorOption func(*Selector)

// WithRandom replaces the uniform random source.
func WithRandom(intN func(n int) int) SelectorOption {
	return func(s *Selector) { s.intN = intN }
}

func NewSelector(store repository.Store, titlePrefix string, listLimit int, opts ...SelectorOption) *Selector {
	s := &Selector{
		store:       store,
		titlePrefix: titlePrefix,
		listLimit:   listLimit,
		intN:        rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSelectorFromConfig uses the advice section of config.Cfg.
func NewSelectorFromConfig(store repository.Store, opts ...SelectorOption) *Selector {
	return NewSelector(store, config.Cfg.Advice.TitlePrefix, config.Cfg.Advice.ListLimit, opts...)
}

// SelectAdviceChunk picks one unseen, non-blank chunk at random and formats it.
// An empty excluded set excludes nothing.
func (s *Selector) SelectAdviceChunk(ctx context.Context, excluded []string) (Advice, error) {
	doc, err := s.store.FindDocumentByTitlePrefix(ctx, s.titlePrefix)
	if errors.Is(err, repository.ErrNotFound) {
		return Advice{}, ErrSourceNotConfigured
	}
	if err != nil {
		return Advice{}, &Error{Kind: KindSearch, Message: "advice lookup failed", Err: err}
	}

	chunks, err := s.store.ListChunks(ctx, doc.ID, s.listLimit)
	if err != nil {
		return Advice{}, &Error{Kind: KindSearch, Message: "advice lookup failed", Err: err}
	}

	var seen map[string]struct{}
	if len(excluded) > 0 {
		seen = make(map[string]struct{}, len(excluded))
		for _, id := range excluded {
			seen[id] = struct{}{}
		}
	}
	candidates := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return Advice{}, ErrExhausted
	}

	pick := candidates[s.intN(len(candidates))]
	logger.Module(config.ModuleAdvice).WithFields(map[string]interface{}{
		"doc_id":     doc.ID,
		"chunk_id":   pick.ID,
		"candidates": len(candidates),
		"excluded":   len(excluded),
	}).Debug("advice: chunk selected")
	return Advice{ID: pick.ID, Text: FormatExcerpt(pick.Content)}, nil
}
