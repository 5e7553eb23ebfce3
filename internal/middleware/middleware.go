package middleware

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"creator-coach/config"
	"creator-coach/internal/services/ingest"
	"creator-coach/pkg/apperror"
	"creator-coach/pkg/apperror/status"
	"creator-coach/pkg/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// ConnectionLimiter limits the number of concurrent requests
type ConnectionLimiter struct {
	limit    int
	waitlist chan struct{}
}

func NewConnectionLimiter(limit int) *ConnectionLimiter {
	if limit < 1 {
		limit = 1
	}
	return &ConnectionLimiter{
		limit:    limit,
		waitlist: make(chan struct{}, limit),
	}
}

func (cl *ConnectionLimiter) Acquire() bool {
	select {
	case cl.waitlist <- struct{}{}:
		return true
	default:
		return false
	}
}

func (cl *ConnectionLimiter) Release() {
	select {
	case <-cl.waitlist:
	default:
	}
}

// ConnectionLimit rejects requests with 503 while limiter is full.
func ConnectionLimit(limiter *ConnectionLimiter) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !limiter.Acquire() {
			return apperror.WriteError(config.ModuleServer, c, fiber.StatusServiceUnavailable,
				apperror.Code(status.Internal), "server is at maximum capacity")
		}
		defer limiter.Release()
		return c.Next()
	}
}

// RequestID makes sure every request carries an X-Request-ID, used as tracking id in responses.
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request().Header.Set(RequestIDHeader, id)
		}
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// Timeout bounds the request context. Handlers pass c.Context() to blocking calls,
// which then fail once the budget is spent.
func Timeout(d time.Duration) fiber.Handler {
	return func(c fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.Context(), d)
		defer cancel()
		c.SetContext(ctx)
		return c.Next()
	}
}

// PanicRecovery turns a handler panic into a 500 and logs the stack.
func PanicRecovery() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"panic":      r,
					"method":     c.Method(),
					"path":       c.Path(),
					"ip":         c.IP(),
					"user_agent": c.Get("User-Agent"),
					"stack":      string(debug.Stack()),
				}).Error("panic recovered")

				err = c.Status(fiber.StatusInternalServerError).JSON(apperror.ErrorResponse{
					Error:     "an unexpected error occurred",
					ErrorCode: apperror.Code(status.Internal),
				})
			}
		}()
		return c.Next()
	}
}

// ErrorHandler writes errors that escape the handler chain, including those fiber
// raises before any handler runs, in the JSON error envelope. A body over
// server.body_limit is reported like any other oversized upload.
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return apperror.Coded(config.ModuleServer, c, err)
	}
	switch {
	case fe.Code == fiber.StatusRequestEntityTooLarge:
		return apperror.Coded(config.ModuleServer, c, &ingest.Error{
			Kind:    ingest.KindFileTooLarge,
			Message: "request body exceeds the upload size limit",
		})
	case fe.Code == fiber.StatusNotFound:
		return apperror.WriteError(config.ModuleServer, c, fe.Code, apperror.Code(status.NotFound), fe.Message)
	case fe.Code < fiber.StatusInternalServerError:
		return apperror.WriteError(config.ModuleServer, c, fe.Code, apperror.Code(status.InvalidRequestBody), fe.Message)
	}
	return apperror.WriteError(config.ModuleServer, c, fe.Code, apperror.Code(status.Internal), fe.Message)
}
