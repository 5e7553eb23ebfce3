package documents

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRoutes registers document routes on the provided router.
func RegisterRoutes(r fiber.Router, h *Handler) {
	grp := r.Group("/documents")

	grp.Post("/", h.HandleUpload)
	grp.Get("/", h.HandleList)
	grp.Delete("/:id", h.HandleDelete)
}
