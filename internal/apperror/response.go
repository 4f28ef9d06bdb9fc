package apperror

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"go.uber.org/zap"
)

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindValidation, KindEmptyCart:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindInsufficientStock, KindConflict:
		return fiber.StatusConflict
	case KindPaymentDeclined:
		return fiber.StatusPaymentRequired
	case KindTransient:
		return fiber.StatusServiceUnavailable
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes err as {"error": {...}}. Internal details stay in the log.
func Respond(c *fiber.Ctx, err error) error {
	kind := KindOf(err)
	body := fiber.Map{"kind": kind}

	var fe *fiber.Error
	ae, typed := As(err)
	switch {
	case typed && kind != KindInternal && kind != KindTransient:
		body["message"] = ae.Message
		if len(ae.Details) > 0 {
			body["details"] = ae.Details
		}
	case !typed && errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"error": fiber.Map{"kind": KindValidation, "message": fe.Message}})
	case kind == KindTransient:
		logging.FromContext(c.UserContext()).Warn("request_transient_failure", zap.Error(err))
		body["message"] = "temporary infrastructure failure, please retry"
	default:
		logging.FromContext(c.UserContext()).Error("request_internal_error", zap.Error(err))
		body["message"] = "internal error"
	}

	return c.Status(Status(kind)).JSON(fiber.Map{"error": body})
}

// BadRequest is a shortcut for handlers rejecting a malformed body or param.
func BadRequest(c *fiber.Ctx, msg string) error {
	return Respond(c, Validation(msg))
}
