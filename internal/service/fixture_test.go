package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func intPtr(v int) *int { return &v }

// fixture wires the coursework services over one in-memory store with an
// instructor who owns a course and a student enrolled in it.
type fixture struct {
	store          *memoryStore
	submissionRepo *fakeSubmissionRepo
	notifier       *recordingNotifier

	instructor models.User
	student    models.User
	course     models.Course
	section    models.Section

	assignments AssignmentService
	submissions SubmissionService
	grading     GradingService
}

func newFixture(t *testing.T, cache *StatusCache) *fixture {
	t.Helper()

	store := newMemoryStore()
	f := &fixture{
		store:          store,
		submissionRepo: &fakeSubmissionRepo{store: store},
		notifier:       &recordingNotifier{},
	}
	f.instructor = store.addUser("Ada", "Lovelace", models.RoleInstructor)
	f.student = store.addUser("Grace", "Hopper", models.RoleStudent)
	f.course, f.section = store.addCourse(f.instructor.ID)
	store.enroll(f.course.ID, f.student.ID)

	validate := NewValidator()
	assignments := fakeAssignmentRepo{store: store}
	courses := fakeCourseRepo{store: store}

	f.assignments = NewAssignmentService(assignments, f.submissionRepo, courses, f.notifier, cache, validate, testLogger())
	f.assignments.(*assignmentService).now = clock
	f.submissions = NewSubmissionService(assignments, f.submissionRepo, courses, f.notifier, cache, validate, testLogger())
	f.submissions.(*submissionService).now = clock
	f.grading = NewGradingService(f.submissionRepo, fakeUserRepo{store: store}, f.notifier, cache, validate, testLogger())
	f.grading.(*gradingService).now = clock

	return f
}

// addQuiz stores a published quiz with one question per mark value. Option 1
// is always the correct answer.
func (f *fixture) addQuiz(due time.Time, marks ...int) models.Assignment {
	if len(marks) == 0 {
		marks = []int{5, 5}
	}
	total := 0
	questions := make([]models.Question, 0, len(marks))
	for idx, mark := range marks {
		question := models.Question{
			ID:            uuid.NewString(),
			Position:      idx,
			Prompt:        fmt.Sprintf("Question %d", idx+1),
			CorrectOption: 1,
			Marks:         mark,
		}
		question.SetOptions([]string{"first", "second", "third"})
		questions = append(questions, question)
		total += mark
	}

	return f.store.putAssignment(models.Assignment{
		Title:        "Sorting quiz",
		Description:  "Pick the right algorithm",
		Kind:         models.AssignmentKindQuiz,
		CourseID:     f.course.ID,
		SectionID:    f.section.ID,
		MaxMarks:     total,
		DueDate:      due,
		Instructions: "One answer per question",
		CreatedBy:    f.instructor.ID,
		Status:       models.AssignmentStatusPublished,
		Questions:    questions,
	})
}

func (f *fixture) addEssay(due time.Time) models.Assignment {
	return f.store.putAssignment(models.Assignment{
		Title:        "Essay",
		Description:  "Compare merge sort and quicksort",
		Kind:         models.AssignmentKindAssignment,
		CourseID:     f.course.ID,
		SectionID:    f.section.ID,
		MaxMarks:     10,
		DueDate:      due,
		Instructions: "Upload a PDF",
		CreatedBy:    f.instructor.ID,
		Status:       models.AssignmentStatusPublished,
	})
}

// answers answers the quiz questions in order, correctly for the listed
// positions and wrong for the rest.
func answers(quiz models.Assignment, correct ...int) []dto.AnswerPayload {
	right := make(map[int]bool, len(correct))
	for _, idx := range correct {
		right[idx] = true
	}

	payloads := make([]dto.AnswerPayload, 0, len(quiz.Questions))
	for idx, question := range quiz.Questions {
		selected := 0
		if right[idx] {
			selected = question.CorrectOption
		}
		payloads = append(payloads, dto.AnswerPayload{QuestionID: question.ID, SelectedOption: intPtr(selected)})
	}
	return payloads
}
