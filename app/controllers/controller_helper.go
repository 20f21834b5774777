package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cryptogate/cryptogate/internal/pkg/alerts"
	"github.com/cryptogate/cryptogate/internal/pkg/billing"
	"github.com/cryptogate/cryptogate/internal/pkg/jobs"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

const requestTimeout = 15 * time.Second

var validate = validator.New()

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), requestTimeout)
}

func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// bindJSON decodes the body into out and runs struct validation.
func bindJSON(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return nil
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	case errors.Is(err, billing.ErrClientNotFound),
		errors.Is(err, billing.ErrPackageNotFound),
		errors.Is(err, alerts.ErrClientNotFound),
		errors.Is(err, usage.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, billing.ErrDuplicateSlug),
		errors.Is(err, jobs.ErrAlreadyRunning):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, billing.ErrMarginBelowFloor),
		errors.Is(err, billing.ErrInvalidVolumeCap),
		errors.Is(err, billing.ErrInvalidPackage),
		errors.Is(err, billing.ErrPackageInactive),
		errors.Is(err, alerts.ErrInvalidThreshold),
		errors.Is(err, alerts.ErrNotApplicable):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Errorf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
}
