package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursework-api/internal/grading"
	"github.com/noah-isme/coursework-api/internal/service"
	"github.com/noah-isme/coursework-api/internal/utils"
)

// respondError maps service and policy errors onto the API status taxonomy.
// Anything unrecognised is logged and reported as a generic 500.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors service.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, "validation failed", validationErrors)
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrSectionNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "you do not have access to this resource")
	case errors.Is(err, service.ErrNotEnrolled):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, grading.ErrDeadlinePassed),
		errors.Is(err, grading.ErrAttemptLimitReached),
		errors.Is(err, grading.ErrAlreadyGraded),
		errors.Is(err, grading.ErrAlreadyPassed),
		errors.Is(err, grading.ErrInvalidTransition),
		errors.Is(err, service.ErrScoreExceedsMax):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConcurrentSubmission):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func invalidBody(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
}
