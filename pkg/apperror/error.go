package apperror

import (
	"creator-coach/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

// HTTPStatus maps a stable error code onto the response status the client sees.
func HTTPStatus(code status.ErrorCode) int {
	switch code {
	case status.IngestFileTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case status.IngestTooManyChunks, status.IngestChunkingProducedNothing:
		return fiber.StatusUnprocessableEntity
	case status.IngestUnsupportedMediaType:
		return fiber.StatusUnsupportedMediaType
	case status.AdviceSourceNotConfigured, status.NotFound:
		return fiber.StatusNotFound
	case status.AdviceExhausted:
		return fiber.StatusGone
	case status.IngestEmbeddingFailed, status.QueryCompletionFailed:
		return fiber.StatusBadGateway
	}
	if code.IsClient() {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
