package apperror

import (
	"creator-coach/config"
	"creator-coach/pkg/apperror/status"
	"creator-coach/pkg/logger"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

// ErrorResponse is the standardized HTTP error payload
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

type FiberSuccessMessage struct {
	Code       status.SuccessCode `json:"code"`
	Message    string             `json:"message"`
	TrackingID string             `json:"tracking_id"`
	Data       any                `json:"data"`
}

// Code renders an error code the way clients see it.
func Code(code status.ErrorCode) string {
	return fmt.Sprintf("AI-%d", code)
}

// WriteError logs a structured warning and returns a standardized JSON error
func WriteError(module config.Module, c fiber.Ctx, httpStatus int, code string, message string) error {
	logger.Module(module).WithFields(map[string]interface{}{
		"status_code":   httpStatus,
		"error_code":    code,
		"error_message": message,
		"http_method":   c.Method(),
		"path":          c.Path(),
		"url":           c.OriginalURL(),
		"ip":            c.IP(),
		"tracking_id":   c.Get("X-Request-ID"),
	}).Warnf("http error")

	return c.Status(httpStatus).JSON(ErrorResponse{
		Error:     message,
		ErrorCode: code,
	})
}

// BadRequest writes a 400 with the given client code.
func BadRequest(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	return WriteError(module, c, fiber.StatusBadRequest, Code(code), message)
}

// InternalError writes a 500 carrying the error text.
func InternalError(module config.Module, c fiber.Ctx, err error) error {
	return WriteError(module, c, fiber.StatusInternalServerError, Code(status.Internal), err.Error())
}

// Coded inspects err for a status.CodedError and writes the matching status and code.
// Anything uncoded is reported as an internal error.
func Coded(module config.Module, c fiber.Ctx, err error) error {
	var coded status.CodedError
	if errors.As(err, &coded) {
		code := coded.ErrorCode()
		return WriteError(module, c, HTTPStatus(code), Code(code), coded.Error())
	}
	return InternalError(module, c, err)
}

// Success writes a standardized JSON success response
func Success(module config.Module, c fiber.Ctx, response FiberSuccessMessage) error {
	httpStatus := fiber.StatusOK
	if response.Code == status.Created {
		httpStatus = fiber.StatusCreated
	}
	logger.Module(module).WithField("path", c.Path()).Debug(response.Message)
	return c.Status(httpStatus).JSON(response)
}
