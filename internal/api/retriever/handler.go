package retriever

import (
	"context"
	"strconv"
	"strings"

	"creator-coach/config"
	"creator-coach/internal/core/retriever"
	"creator-coach/pkg/apperror"
	"creator-coach/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

// Searcher runs a semantic search within one document.
type Searcher interface {
	Search(ctx context.Context, title, question string, topK int, excluded []string) ([]retriever.Hit, error)
}

type Handler struct {
	searcher Searcher
}

func NewHandler(searcher Searcher) *Handler {
	return &Handler{searcher: searcher}
}

type searchResponse struct {
	Hits []retriever.Hit `json:"hits"`
}

func (h *Handler) HandleSearch(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return apperror.BadRequest(config.ModuleRetriever, c, status.MissingParams, "q is required")
	}
	topK := 8
	if topKStr := c.Query("top_k"); topKStr != "" {
		if v, err := strconv.Atoi(topKStr); err == nil && v > 0 && v <= 64 {
			topK = v
		}
	}
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		title = config.Cfg.Advice.TitlePrefix
	}
	var excluded []string
	for _, id := range strings.Split(c.Query("exclude_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			excluded = append(excluded, id)
		}
	}

	hits, err := h.searcher.Search(c.Context(), title, q, topK, excluded)
	if err != nil {
		return apperror.Coded(config.ModuleRetriever, c, err)
	}

	return apperror.Success(config.ModuleRetriever, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "search ok",
		TrackingID: trackingID,
		Data:       searchResponse{Hits: hits},
	})
}
