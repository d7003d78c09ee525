package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/middleware"
	"github.com/noah-isme/coursework-api/internal/service"
	"github.com/noah-isme/coursework-api/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SubmissionHandler exposes submit, listing, grading and export endpoints.
type SubmissionHandler struct {
	submissions service.SubmissionService
	grading     service.GradingService
	gradebook   service.GradebookService
	limiter     fiber.Handler
	logger      zerolog.Logger
}

// NewSubmissionHandler constructs a submission handler. limiter guards the
// submit route when non-nil.
func NewSubmissionHandler(
	submissions service.SubmissionService,
	grading service.GradingService,
	gradebook service.GradebookService,
	limiter fiber.Handler,
	logger zerolog.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		grading:     grading,
		gradebook:   gradebook,
		limiter:     limiter,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register mounts the submission routes on the assignment group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	instructor := middleware.AuthOptions{Role: middleware.AuthRoleInstructor}
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	submit := []fiber.Handler{middleware.WithAuth(h.submit, student)}
	if h.limiter != nil {
		submit = append([]fiber.Handler{h.limiter}, submit...)
	}

	router.Post("/submission/:submissionId/grade", middleware.WithAuth(h.grade, instructor))
	router.Post("/:assignmentId/submit", submit...)
	router.Get("/:assignmentId/submissions", middleware.WithAuth(h.listOwn, student))
	router.Get("/:assignmentId/all-submissions/export", middleware.WithAuth(h.export, instructor))
	router.Get("/:assignmentId/all-submissions", middleware.WithAuth(h.listAll, instructor))
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return invalidBody(c)
		}
	}

	submission, err := h.submissions.Submit(requestContext(c), assignmentID, userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", submission)
}

func (h *SubmissionHandler) listOwn(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.submissions.ListOwn(requestContext(c), assignmentID, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) listAll(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.submissions.ListForAssignment(requestContext(c), assignmentID, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) export(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	content, filename, err := h.gradebook.Export(requestContext(c), assignmentID, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(content)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	submission, err := h.grading.Grade(requestContext(c), submissionID, userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("submission_id", submissionID).
		Int("score", submission.Score).
		Msg("submission graded")

	return utils.SendSuccess(c, "submission graded", submission)
}
