package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"sheetlens/internal/http/middleware"
	"sheetlens/internal/model"
	"sheetlens/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeErrorFields(c, status, code, message, nil)
}

func writeErrorFields(c *fiber.Ctx, status int, code, message string, fields map[string]string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Fields:  fields,
		},
	}
	return c.Status(status).JSON(res)
}

func writeValidationError(c *fiber.Ctx, fields map[string]string) error {
	return writeErrorFields(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", fields)
}

// writeInternal hands err to the request logger and answers with a generic 500.
func writeInternal(c *fiber.Ctx, err error) error {
	c.Locals(middleware.ErrorLocalKey, err)
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// writeServiceError maps service errors onto the standardized responses.
// Missing and foreign analyses produce the same 404 body.
func writeServiceError(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return writeValidationError(c, verr.Fields)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrForbidden):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "analysis not found")
	case errors.Is(err, service.ErrNotChartable):
		return writeError(c, fiber.StatusUnprocessableEntity, "NOT_CHARTABLE", "analysis has no rows to plot for the selected axes")
	case errors.Is(err, service.ErrOwnerRequired):
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
	case errors.Is(err, model.ErrNotScalar):
		return writeValidationError(c, map[string]string{"data": "values must be strings, numbers, booleans or null"})
	default:
		return writeInternal(c, err)
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", fe.Message)
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeInternal(c, err)
		}
	}
}
