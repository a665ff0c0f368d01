package serverutils

import (
	"errors"

	"ai-plugin-engine/pkg/rag/engineerr"

	"github.com/gofiber/fiber/v2"
)

type errorDetail struct {
	Kind string `json:"kind"`
	Op   string `json:"op,omitempty"`
}

// StatusFor maps an engine error kind to its HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch engineerr.KindOf(err) {
	case engineerr.KindValidation:
		return fiber.StatusBadRequest
	case engineerr.KindAccessDenied:
		return fiber.StatusNotFound
	case engineerr.KindRetrieval, engineerr.KindGeneration, engineerr.KindTreeEvaluation:
		return fiber.StatusBadGateway
	case engineerr.KindSessionFailure, engineerr.KindPartialCollab:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns handler errors into the JSON error envelope.
// Internal errors are reported without their message.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusFor(err)
		message := err.Error()
		detail := errorDetail{Kind: string(engineerr.KindOf(err))}

		var fe *fiber.Error
		var ee *engineerr.Error
		switch {
		case errors.As(err, &fe):
			message = fe.Message
			detail.Kind = "http_error"
		case errors.As(err, &ee):
			detail.Op = ee.Op
		default:
			message = "Internal server error"
		}
		return ctx.Status(status).JSON(ErrorResponse(message, detail))
	}
}

// ErrorHandler is the fiber.Config fallback for errors raised outside the
// middleware chain, such as unmatched routes.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	status := StatusFor(err)
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message = fe.Message
	}
	return ctx.Status(status).JSON(ErrorResponse(message, errorDetail{Kind: "http_error"}))
}
