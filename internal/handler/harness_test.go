package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/coursework-api/internal/config"
	"github.com/noah-isme/coursework-api/internal/database"
	"github.com/noah-isme/coursework-api/internal/handler"
	"github.com/noah-isme/coursework-api/internal/middleware"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/repository"
	"github.com/noah-isme/coursework-api/internal/router"
	"github.com/noah-isme/coursework-api/internal/service"
)

const testJWTSecret = "handler-test-secret"

type harness struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB

	instructor models.User
	student    models.User
	outsider   models.User
	course     models.Course
	section    models.Section

	notifications service.NotificationService
	envelope      *jsonschema.Schema
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	schema, err := jsonschema.NewCompiler().Compile("file://" + filepath.ToSlash(path))
	require.NoError(t, err)
	return schema
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h := &harness{t: t, db: db, envelope: compileSchema(t, "envelope.schema.json")}
	h.instructor = h.createUser("Ada", "Lovelace", models.RoleInstructor)
	h.student = h.createUser("Grace", "Hopper", models.RoleStudent)
	h.outsider = h.createUser("Alan", "Turing", models.RoleStudent)

	h.course = models.Course{Title: "Algorithms", InstructorID: h.instructor.ID}
	require.NoError(t, db.Create(&h.course).Error)
	h.section = models.Section{CourseID: h.course.ID, Title: "Sorting"}
	require.NoError(t, db.Create(&h.section).Error)
	require.NoError(t, db.Create(&models.CourseEnrollment{CourseID: h.course.ID, StudentID: h.student.ID}).Error)

	log := zerolog.New(io.Discard)
	validate := service.NewValidator()

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	assignmentService := service.NewAssignmentService(assignmentRepo, submissionRepo, courseRepo, nil, nil, validate, log)
	submissionService := service.NewSubmissionService(assignmentRepo, submissionRepo, courseRepo, nil, nil, validate, log)
	gradingService := service.NewGradingService(submissionRepo, userRepo, nil, nil, validate, log)
	gradebookService := service.NewGradebookService(assignmentRepo, submissionRepo, log)
	h.notifications = service.NewNotificationService(notificationRepo, nil, "", nil, validate, log)

	h.app = fiber.New()
	middleware.Register(h.app, middleware.Config{Logger: &log})
	router.Register(h.app, config.Config{AppName: "coursework-test", JWTSecret: testJWTSecret}, router.Dependencies{
		AssignmentHandler:   handler.NewAssignmentHandler(assignmentService, log),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, gradingService, gradebookService, middleware.RateLimit("submit", 100, time.Minute), log),
		NotificationHandler: handler.NewNotificationHandler(h.notifications, log, 2*time.Second),
		Health:              handler.HealthDependencies{DB: db},
		JWTMiddleware:       middleware.JWTProtected(testJWTSecret),
	})

	return h
}

func (h *harness) createUser(first, last, role string) models.User {
	h.t.Helper()
	user := models.User{FirstName: first, LastName: last, Email: first + "@example.com", Role: role}
	require.NoError(h.t, h.db.Create(&user).Error)
	return user
}

func (h *harness) token(user models.User) string {
	h.t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"role": user.Role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(h.t, err)
	return signed
}

// response is a decoded API envelope plus the raw body.
type response struct {
	status int
	header http.Header
	raw    []byte
	body   map[string]interface{}
}

func (r response) data() map[string]interface{} {
	data, _ := r.body["data"].(map[string]interface{})
	return data
}

func (r response) list() []interface{} {
	items, _ := r.body["data"].([]interface{})
	return items
}

// do sends a request as user (anonymous when nil) and validates JSON bodies
// against the envelope schema.
func (h *harness) do(method, path string, user *models.User, payload interface{}) response {
	h.t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(h.t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if user != nil {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+h.token(*user))
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	result := response{status: resp.StatusCode, header: resp.Header, raw: raw}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var decoded interface{}
		require.NoError(h.t, json.Unmarshal(raw, &decoded))
		require.NoError(h.t, h.envelope.Validate(decoded), string(raw))
		result.body = decoded.(map[string]interface{})
	}
	return result
}

// number reads a JSON number field as an int.
func number(t *testing.T, values map[string]interface{}, key string) int {
	t.Helper()
	value, ok := values[key].(float64)
	require.True(t, ok, "%s is not a number", key)
	return int(value)
}

func (h *harness) createQuiz(due time.Time) map[string]interface{} {
	h.t.Helper()
	resp := h.do(http.MethodPost, "/api/v1/assignment/create", &h.instructor, map[string]interface{}{
		"title":        "Sorting quiz",
		"description":  "Pick the right algorithm",
		"kind":         "Quiz",
		"course_id":    h.course.ID,
		"section_id":   h.section.ID,
		"max_marks":    10,
		"due_date":     due.UTC().Format(time.RFC3339),
		"instructions": "One answer per question",
		"status":       "Published",
		"questions": []map[string]interface{}{
			{"prompt": "Stable sort?", "options": []string{"quick", "merge"}, "correct_answer": 1, "marks": 5},
			{"prompt": "In-place sort?", "options": []string{"heap", "merge"}, "correct_answer": 0, "marks": 5},
		},
	})
	require.Equal(h.t, http.StatusCreated, resp.status, string(resp.raw))
	return resp.data()
}

func (h *harness) createEssay(due time.Time) map[string]interface{} {
	h.t.Helper()
	resp := h.do(http.MethodPost, "/api/v1/assignment/create", &h.instructor, map[string]interface{}{
		"title":        "Essay",
		"description":  "Compare merge sort and quicksort",
		"kind":         "Assignment",
		"course_id":    h.course.ID,
		"section_id":   h.section.ID,
		"max_marks":    10,
		"due_date":     due.UTC().Format(time.RFC3339),
		"instructions": "Upload a PDF",
		"attachments":  []map[string]string{{"file_name": "rubric.pdf", "file_url": "https://files.example.com/rubric.pdf"}},
	})
	require.Equal(h.t, http.StatusCreated, resp.status, string(resp.raw))
	return resp.data()
}
