package healthcheck

import (
	"context"
	"time"

	"creator-coach/config"
	"creator-coach/pkg/apperror"

	"github.com/gofiber/fiber/v3"
	malvus "github.com/milvus-io/milvus-sdk-go/v2/client"
)

// Pinger reports whether a backing service answers.
type Pinger func(ctx context.Context) error

type Handler struct {
	database   Pinger
	milvus     malvus.Client
	collection string
}

// NewHandler takes the database ping (nil for the in-memory store) and the
// shared Milvus client (nil when Milvus is disabled).
func NewHandler(database Pinger, milvus malvus.Client, collection string) *Handler {
	return &Handler{database: database, milvus: milvus, collection: collection}
}

func ApiHealthCheck(c fiber.Ctx) error {
	return c.SendString("ok")
}

func (h *Handler) DatabaseHealthCheck(c fiber.Ctx) error {
	if h.database == nil {
		return c.SendString("ok (memory)")
	}
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := h.database(ctx); err != nil {
		return apperror.InternalError(config.ModuleDatabase, c, err)
	}
	return c.SendString("ok")
}

func (h *Handler) MilvusHealthCheck(c fiber.Ctx) error {
	if h.milvus == nil {
		return c.SendString("disabled")
	}
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if _, err := h.milvus.HasCollection(ctx, h.collection); err != nil {
		return apperror.InternalError(config.ModuleMilvus, c, err)
	}
	return c.SendString("ok")
}
