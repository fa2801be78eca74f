package web

import (
	"errors"

	"github.com/creatorkit/maestro/pkg/dispatcher"
	"github.com/creatorkit/maestro/pkg/registry"
	"github.com/creatorkit/maestro/pkg/scheduling"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps orchestrator errors onto problem responses.
func handleDomainError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, registry.ErrUnknownWorkflow):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("workflow_not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case errors.Is(err, dispatcher.ErrRunNotFound):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("run_not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case errors.Is(err, scheduling.ErrInsufficientData):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("insufficient_data").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	default:
		return internalError(c, err)
	}
}
