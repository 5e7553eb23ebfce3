package advice

import (
	"context"
	"encoding/json"

	"creator-coach/config"
	"creator-coach/internal/core/retriever"
	"creator-coach/pkg/apperror"
	"creator-coach/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

// Selector serves one advice excerpt the caller has not seen.
type Selector interface {
	SelectAdviceChunk(ctx context.Context, excluded []string) (retriever.Advice, error)
}

type Handler struct {
	selector Selector
}

func NewHandler(selector Selector) *Handler {
	return &Handler{selector: selector}
}

type adviceRequest struct {
	UsedIDs []string `json:"used_ids"`
}

// HandleNext returns a random advice excerpt outside used_ids. The caller keeps
// the growing used_ids list between calls.
func (h *Handler) HandleNext(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	var req adviceRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return apperror.BadRequest(config.ModuleAdvice, c, status.InvalidRequestBody, err.Error())
		}
	}

	adv, err := h.selector.SelectAdviceChunk(c.Context(), req.UsedIDs)
	if err != nil {
		return apperror.Coded(config.ModuleAdvice, c, err)
	}

	return apperror.Success(config.ModuleAdvice, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "advice selected",
		TrackingID: trackingID,
		Data:       adv,
	})
}
