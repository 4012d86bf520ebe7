package controllers

import (
	"errors"
	"studiomanager_go/services"
	"studiomanager_go/services/ledger"

	"github.com/gofiber/fiber/v2"
)

// respondServiceError maps service layer errors onto HTTP responses so
// every controller reports the same shapes.
func respondServiceError(c *fiber.Ctx, err error) error {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": vErr.Message,
			"field": vErr.Field,
		})
	}
	var lvErr *ledger.ValidationError
	if errors.As(err, &lvErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": lvErr.Message,
			"field": lvErr.Field,
		})
	}
	var noticeErr *services.CancellationNoticeError
	if errors.As(err, &noticeErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":          noticeErr.Error(),
			"required_hours": noticeErr.RequiredHours,
			"shortfall":      noticeErr.ShortfallHours,
		})
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Time slot conflicts with an existing appointment",
		})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Invalid status transition",
		})
	case errors.Is(err, ledger.ErrDuplicateDeduction):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Session already deducted for this appointment",
		})
	case errors.Is(err, ledger.ErrNoActiveSessions), errors.Is(err, ledger.ErrInsufficientBalance):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "No remaining sessions",
		})
	case errors.Is(err, ledger.ErrBlockNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session block not found",
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
