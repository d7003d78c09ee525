package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/middleware"
	"github.com/noah-isme/coursework-api/internal/service"
	"github.com/noah-isme/coursework-api/internal/utils"
)

// AssignmentHandler exposes assignment authoring and listing endpoints.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register mounts the assignment routes. Static paths are registered before
// the :assignmentId catch-all.
func (h *AssignmentHandler) Register(router fiber.Router) {
	instructor := middleware.AuthOptions{Role: middleware.AuthRoleInstructor}
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}
	anyUser := middleware.AuthOptions{Role: middleware.AuthRoleAny}

	router.Post("/create", middleware.WithAuth(h.create, instructor))
	router.Get("/instructor", middleware.WithAuth(h.listOwned, instructor))
	router.Get("/course/:courseId", middleware.WithAuth(h.listByCourse, anyUser))
	router.Get("/student/enrolled", middleware.WithAuth(h.listEnrolled, student))
	router.Get("/:assignmentId", middleware.WithAuth(h.get, anyUser))
	router.Put("/:assignmentId", middleware.WithAuth(h.update, instructor))
	router.Delete("/:assignmentId", middleware.WithAuth(h.delete, instructor))
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	assignment, err := h.service.Create(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) listOwned(c *fiber.Ctx) error {
	assignments, err := h.service.ListByInstructor(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) listByCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignments, err := h.service.ListByCourse(requestContext(c), courseID, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) listEnrolled(c *fiber.Ctx) error {
	assignments, err := h.service.ListEnrolled(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Get(requestContext(c), id, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}

	assignment, err := h.service.Update(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), id, userIDFromContext(c)); err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment deleted", fiber.Map{"id": id})
}
