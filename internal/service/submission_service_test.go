package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/events"
	"github.com/noah-isme/coursework-api/internal/grading"
	"github.com/noah-isme/coursework-api/internal/models"
)

func TestSubmissionServiceQuizAutoGradedThenPassed(t *testing.T) {
	f := newFixture(t, nil)
	quiz := f.addQuiz(fixedNow.Add(48 * time.Hour))
	ctx := context.Background()

	result, err := f.submissions.Submit(ctx, quiz.ID, f.student.ID, dto.SubmitRequest{Answers: answers(quiz, 0, 1)})
	require.NoError(t, err)
	require.Equal(t, 10, result.Score)
	require.Equal(t, 10, result.MaxScore)
	require.True(t, result.IsGraded)
	require.Equal(t, string(models.SubmissionStateAutoGraded), result.State)
	require.Equal(t, 1, result.AttemptNumber)
	require.Nil(t, result.GradedBy)
	require.Len(t, result.Answers, 2)
	require.True(t, result.Answers[0].IsCorrect)
	require.NotNil(t, result.Assignment)

	confirmed := f.notifier.byKind("confirmed")
	require.Len(t, confirmed, 1)
	require.Equal(t, result.ID, confirmed[0].ID)

	_, err = f.submissions.Submit(ctx, quiz.ID, f.student.ID, dto.SubmitRequest{Answers: answers(quiz, 0, 1)})
	require.ErrorIs(t, err, grading.ErrAlreadyPassed)
	require.Equal(t, 1, f.store.submissionCount())
}

func TestSubmissionServiceQuizAnswersByPosition(t *testing.T) {
	f := newFixture(t, nil)
	quiz := f.addQuiz(fixedNow.Add(time.Hour))

	result, err := f.submissions.Submit(context.Background(), quiz.ID, f.student.ID, dto.SubmitRequest{
		Answers: []dto.AnswerPayload{
			{QuestionID: "1", SelectedOption: intPtr(1)},
			{QuestionID: "missing", SelectedOption: intPtr(1)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 5, result.Score)
	require.Len(t, result.Answers, 1)
	require.Equal(t, "1", result.Answers[0].QuestionID)
}

func TestSubmissionServiceAssignmentGradedBlocksResubmit(t *testing.T) {
	f := newFixture(t, nil)
	essay := f.addEssay(fixedNow.Add(48 * time.Hour))
	ctx := context.Background()

	submitted, err := f.submissions.Submit(ctx, essay.ID, f.student.ID, dto.SubmitRequest{
		SubmissionText: "Merge sort is stable.<script>alert(1)</script>",
		Attachments: []dto.SubmittedFile{
			{FileName: "report.PDF", FileURL: "https://files.example.com/report.pdf"},
			{FileName: "payload.exe", FileURL: "https://files.example.com/payload.exe"},
			{FileName: "notes.txt", FileURL: ""},
		},
	})
	require.NoError(t, err)
	require.False(t, submitted.IsGraded)
	require.Equal(t, string(models.SubmissionStateSubmitted), submitted.State)
	require.Equal(t, 0, submitted.Score)
	require.Contains(t, submitted.SubmissionText, "Merge sort is stable.")
	require.NotContains(t, submitted.SubmissionText, "script")
	require.Len(t, submitted.Attachments, 1)
	require.Equal(t, "report.PDF", submitted.Attachments[0].FileName)

	graded, err := f.grading.Grade(ctx, submitted.ID, f.instructor.ID, dto.GradeRequest{Score: intPtr(7), Feedback: "Good"})
	require.NoError(t, err)
	require.True(t, graded.IsGraded)
	require.Equal(t, 7, graded.Score)
	require.Equal(t, "Good", graded.Feedback)
	require.NotNil(t, graded.GradedBy)
	require.Equal(t, f.instructor.ID, *graded.GradedBy)
	require.NotNil(t, graded.GradedAt)
	require.Equal(t, string(models.SubmissionStateManuallyGraded), graded.State)

	notices := f.notifier.byKind("graded")
	require.Len(t, notices, 1)
	require.Equal(t, 7, notices[0].Score)
	require.Equal(t, "Good", notices[0].Feedback)
	require.Equal(t, "Ada Lovelace", notices[0].GraderName)

	_, err = f.submissions.Submit(ctx, essay.ID, f.student.ID, dto.SubmitRequest{SubmissionText: "second try"})
	require.ErrorIs(t, err, grading.ErrAlreadyGraded)
}

func TestSubmissionServiceRejectsUnenrolledStudent(t *testing.T) {
	f := newFixture(t, nil)
	quiz := f.addQuiz(fixedNow.Add(time.Hour))
	outsider := f.store.addUser("Alan", "Turing", models.RoleStudent)

	_, err := f.submissions.Submit(context.Background(), quiz.ID, outsider.ID, dto.SubmitRequest{Answers: answers(quiz, 0)})
	require.ErrorIs(t, err, ErrNotEnrolled)
	require.Equal(t, 0, f.store.submissionCount())
	require.Empty(t, f.notifier.byKind("confirmed"))
}

func TestSubmissionServiceAttemptLimit(t *testing.T) {
	f := newFixture(t, nil)
	essay := f.addEssay(fixedNow.Add(time.Hour))
	ctx := context.Background()

	for attempt := 1; attempt <= models.MaxAttempts; attempt++ {
		result, err := f.submissions.Submit(ctx, essay.ID, f.student.ID, dto.SubmitRequest{SubmissionText: "draft"})
		require.NoError(t, err)
		require.Equal(t, attempt, result.AttemptNumber)
	}

	_, err := f.submissions.Submit(ctx, essay.ID, f.student.ID, dto.SubmitRequest{SubmissionText: "draft"})
	require.ErrorIs(t, err, grading.ErrAttemptLimitReached)
	require.Equal(t, models.MaxAttempts, f.store.submissionCount())
}

func TestSubmissionServiceQuizRetakeBelowThreshold(t *testing.T) {
	f := newFixture(t, nil)
	// max 10, threshold 5
	quiz := f.addQuiz(fixedNow.Add(time.Hour), 4, 1, 5)
	ctx := context.Background()

	first, err := f.submissions.Submit(ctx, quiz.ID, f.student.ID, dto.SubmitRequest{Answers: answers(quiz, 0)})
	require.NoError(t, err)
	require.Equal(t, 4, first.Score)

	second, err := f.submissions.Submit(ctx, quiz.ID, f.student.ID, dto.SubmitRequest{Answers: answers(quiz, 0, 1)})
	require.NoError(t, err)
	require.Equal(t, 5, second.Score)
	require.Equal(t, 2, second.AttemptNumber)

	_, err = f.submissions.Submit(ctx, quiz.ID, f.student.ID, dto.SubmitRequest{Answers: answers(quiz, 0, 1, 2)})
	require.ErrorIs(t, err, grading.ErrAlreadyPassed)
}

func TestSubmissionServiceDeadline(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	late := f.addEssay(fixedNow.Add(-time.Minute))
	_, err := f.submissions.Submit(ctx, late.ID, f.student.ID, dto.SubmitRequest{SubmissionText: "late"})
	require.ErrorIs(t, err, grading.ErrDeadlinePassed)

	onTime := f.addEssay(fixedNow)
	_, err = f.submissions.Submit(ctx, onTime.ID, f.student.ID, dto.SubmitRequest{SubmissionText: "just in time"})
	require.NoError(t, err)
}

func TestSubmissionServiceValidatesPayloadBeforeLookup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.submissions.Submit(ctx, 9999, f.student.ID, dto.SubmitRequest{
		Answers: []dto.AnswerPayload{{QuestionID: "1"}},
	})
	var validationErrs ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	require.Equal(t, "answers[0].selected_option", validationErrs[0].Field)

	_, err = f.submissions.Submit(ctx, 9999, f.student.ID, dto.SubmitRequest{})
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestSubmissionServiceConcurrentAttemptConflict(t *testing.T) {
	f := newFixture(t, nil)
	essay := f.addEssay(fixedNow.Add(time.Hour))

	var once sync.Once
	f.submissionRepo.beforeCreate = func(pending models.Submission) {
		once.Do(func() {
			f.store.putSubmission(models.Submission{
				AssignmentID:  pending.AssignmentID,
				StudentID:     pending.StudentID,
				CourseID:      pending.CourseID,
				AttemptNumber: pending.AttemptNumber,
				MaxScore:      pending.MaxScore,
				State:         models.SubmissionStateSubmitted,
				SubmittedAt:   fixedNow,
			})
		})
	}

	_, err := f.submissions.Submit(context.Background(), essay.ID, f.student.ID, dto.SubmitRequest{SubmissionText: "racing"})
	require.ErrorIs(t, err, ErrConcurrentSubmission)
	require.Equal(t, 1, f.store.submissionCount())
	require.Empty(t, f.notifier.byKind("confirmed"))
}

func TestSubmissionServiceConcurrentSubmitsRespectLimit(t *testing.T) {
	f := newFixture(t, nil)
	essay := f.addEssay(fixedNow.Add(time.Hour))

	const workers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		attempts []int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.submissions.Submit(context.Background(), essay.ID, f.student.ID, dto.SubmitRequest{SubmissionText: "burst"})
			if err != nil {
				if !errors.Is(err, ErrConcurrentSubmission) && !errors.Is(err, grading.ErrAttemptLimitReached) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			attempts = append(attempts, result.AttemptNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.NotEmpty(t, attempts)
	require.LessOrEqual(t, len(attempts), models.MaxAttempts)
	seen := map[int]bool{}
	for _, attempt := range attempts {
		require.False(t, seen[attempt], "attempt %d recorded twice", attempt)
		require.GreaterOrEqual(t, attempt, 1)
		require.LessOrEqual(t, attempt, models.MaxAttempts)
		seen[attempt] = true
	}
	require.Equal(t, len(attempts), f.store.submissionCount())
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error {
	return errors.New("broker unavailable")
}

func (failingPublisher) Close() error { return nil }

func TestSubmissionServiceSurvivesNotificationFailure(t *testing.T) {
	store := newMemoryStore()
	instructor := store.addUser("Ada", "Lovelace", models.RoleInstructor)
	student := store.addUser("Grace", "Hopper", models.RoleStudent)
	course, section := store.addCourse(instructor.ID)
	store.enroll(course.ID, student.ID)
	essay := store.putAssignment(models.Assignment{
		Title:     "Essay",
		Kind:      models.AssignmentKindAssignment,
		CourseID:  course.ID,
		SectionID: section.ID,
		MaxMarks:  10,
		DueDate:   fixedNow.Add(time.Hour),
		CreatedBy: instructor.ID,
	})

	dispatcher := events.NewDispatcher(failingPublisher{}, "", testLogger())
	svc := NewSubmissionService(fakeAssignmentRepo{store: store}, &fakeSubmissionRepo{store: store}, fakeCourseRepo{store: store}, dispatcher, nil, NewValidator(), testLogger())
	svc.(*submissionService).now = clock

	result, err := svc.Submit(context.Background(), essay.ID, student.ID, dto.SubmitRequest{SubmissionText: "done"})
	require.NoError(t, err)
	require.Equal(t, 1, result.AttemptNumber)

	dispatcher.Close()
	require.Equal(t, 1, store.submissionCount())
}

func TestSubmissionServiceListings(t *testing.T) {
	f := newFixture(t, nil)
	essay := f.addEssay(fixedNow.Add(time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.submissions.Submit(ctx, essay.ID, f.student.ID, dto.SubmitRequest{SubmissionText: "attempt"})
		require.NoError(t, err)
	}

	own, err := f.submissions.ListOwn(ctx, essay.ID, f.student.ID)
	require.NoError(t, err)
	require.Len(t, own, 2)
	require.Equal(t, 1, own[0].AttemptNumber)
	require.Equal(t, 2, own[1].AttemptNumber)

	all, err := f.submissions.ListForAssignment(ctx, essay.ID, f.instructor.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].Student)
	require.Equal(t, "Grace Hopper", all[0].Student.Name)

	other := f.store.addUser("Edsger", "Dijkstra", models.RoleInstructor)
	_, err = f.submissions.ListForAssignment(ctx, essay.ID, other.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.submissions.ListOwn(ctx, 9999, f.student.ID)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestSubmissionServiceKeepsPlainTextVerbatim(t *testing.T) {
	f := newFixture(t, nil)
	essay := f.addEssay(fixedNow.Add(time.Hour))
	ctx := context.Background()
	text := `if (a < b && c > d) { return "x"; }`

	submitted, err := f.submissions.Submit(ctx, essay.ID, f.student.ID, dto.SubmitRequest{SubmissionText: text})
	require.NoError(t, err)
	require.Equal(t, text, submitted.SubmissionText)

	own, err := f.submissions.ListOwn(ctx, essay.ID, f.student.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, text, own[0].SubmissionText)
}
