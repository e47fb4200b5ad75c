package serverutils

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// HttpError carries a status code through the service layer to the error middleware.
type HttpError struct {
	Code    int
	Message string
}

func (e *HttpError) Error() string {
	return e.Message
}

func NewBadRequest(message string) *HttpError {
	return &HttpError{Code: fiber.StatusBadRequest, Message: message}
}

func NewNotFound(message string) *HttpError {
	return &HttpError{Code: fiber.StatusNotFound, Message: message}
}

// ErrorHandlerMiddleware turns handler errors into BaseResponse bodies. Anything it does not
// recognise is logged and reported as a generic 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var httpErr *HttpError
		if errors.As(err, &httpErr) {
			return ctx.Status(httpErr.Code).JSON(ErrorResponse(httpErr.Code, httpErr.Message))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		log.Printf("[ERROR] %s %s: %v", ctx.Method(), ctx.Path(), err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal Error"))
	}
}
