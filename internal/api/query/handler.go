package query

import (
	"context"
	"encoding/json"
	"strings"

	"creator-coach/config"
	corequery "creator-coach/internal/core/query"
	"creator-coach/pkg/apperror"
	"creator-coach/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

type Runner interface {
	Run(ctx context.Context, req corequery.Request) (corequery.Response, error)
}

type Handler struct {
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

func (h *Handler) HandleQuery(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	var req corequery.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperror.BadRequest(config.ModuleQuery, c, status.InvalidRequestBody, err.Error())
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return apperror.BadRequest(config.ModuleQuery, c, status.MissingParams, "question is empty")
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = config.Cfg.Advice.TitlePrefix
	}

	resp, err := h.runner.Run(c.Context(), req)
	if err != nil {
		return apperror.Coded(config.ModuleQuery, c, err)
	}

	return apperror.Success(config.ModuleQuery, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "query ok",
		TrackingID: trackingID,
		Data:       resp,
	})
}
