package serverutils

import (
	"errors"
	"net/http"

	"ai-tutor-be/pkg/learning"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error onto an HTTP status
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	var le *learning.Error
	if !errors.As(err, &le) {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, learning.ErrSessionNotFound):
		return http.StatusNotFound
	case le.Kind == learning.KindInput:
		return http.StatusBadRequest
	case le.Kind == learning.KindFatal:
		return http.StatusServiceUnavailable
	case errors.Is(err, learning.ErrQueryCancelled):
		return http.StatusConflict
	case errors.Is(err, learning.ErrDownstreamUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorHandlerMiddleware turns returned errors into the public error
// payload. Upstream causes and identifiers never reach the client.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusFor(err)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ctx.Status(status).JSON(learning.Payload{
				Error:      "request_error",
				Message:    fe.Message,
				Suggestion: "Check the request and try again.",
			})
		}
		return ctx.Status(status).JSON(learning.Public(err))
	}
}
