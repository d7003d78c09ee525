package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// memoryStore backs the repository fakes used by service tests.
type memoryStore struct {
	mu            sync.Mutex
	users         map[uint]models.User
	courses       map[uint]models.Course
	sections      map[uint]models.Section
	enrollments   map[uint]map[uint]bool
	assignments   map[uint]models.Assignment
	submissions   map[uint]models.Submission
	notifications map[uint]models.Notification
	nextID        uint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:         map[uint]models.User{},
		courses:       map[uint]models.Course{},
		sections:      map[uint]models.Section{},
		enrollments:   map[uint]map[uint]bool{},
		assignments:   map[uint]models.Assignment{},
		submissions:   map[uint]models.Submission{},
		notifications: map[uint]models.Notification{},
	}
}

func (m *memoryStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) addUser(first, last, role string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := models.User{ID: m.id(), FirstName: first, LastName: last, Email: first + "@example.com", Role: role}
	m.users[user.ID] = user
	return user
}

func (m *memoryStore) addCourse(instructorID uint) (models.Course, models.Section) {
	m.mu.Lock()
	defer m.mu.Unlock()
	course := models.Course{ID: m.id(), Title: "Course", InstructorID: instructorID}
	section := models.Section{ID: m.id(), CourseID: course.ID, Title: "Section"}
	m.courses[course.ID] = course
	m.sections[section.ID] = section
	return course, section
}

func (m *memoryStore) enroll(courseID, studentID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enrollments[courseID] == nil {
		m.enrollments[courseID] = map[uint]bool{}
	}
	m.enrollments[courseID][studentID] = true
}

func (m *memoryStore) putAssignment(assignment models.Assignment) models.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if assignment.ID == 0 {
		assignment.ID = m.id()
	}
	for i := range assignment.Questions {
		assignment.Questions[i].AssignmentID = assignment.ID
	}
	m.assignments[assignment.ID] = assignment
	return assignment
}

func (m *memoryStore) putSubmission(submission models.Submission) models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	if submission.ID == 0 {
		submission.ID = m.id()
	}
	submission.Assignment = models.Assignment{}
	submission.Student = models.User{}
	m.submissions[submission.ID] = submission
	return submission
}

func (m *memoryStore) submissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

func (m *memoryStore) withRelations(submission models.Submission) models.Submission {
	assignment := m.assignments[submission.AssignmentID]
	assignment.Questions = append([]models.Question(nil), assignment.Questions...)
	submission.Assignment = assignment
	submission.Student = m.users[submission.StudentID]
	return submission
}

type fakeAssignmentRepo struct{ store *memoryStore }

func (r fakeAssignmentRepo) GetByID(_ context.Context, id uint) (models.Assignment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	assignment, ok := r.store.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	assignment.Questions = append([]models.Question(nil), assignment.Questions...)
	return assignment, nil
}

// list mirrors the repository ordering: newest first.
func (r fakeAssignmentRepo) list(match func(models.Assignment) bool) []models.Assignment {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	items := make([]models.Assignment, 0)
	for _, assignment := range r.store.assignments {
		if match(assignment) {
			items = append(items, assignment)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items
}

func (r fakeAssignmentRepo) ListByCourse(_ context.Context, courseID uint) ([]models.Assignment, error) {
	return r.list(func(a models.Assignment) bool { return a.CourseID == courseID }), nil
}

func (r fakeAssignmentRepo) ListByCourses(_ context.Context, courseIDs []uint) ([]models.Assignment, error) {
	wanted := map[uint]bool{}
	for _, id := range courseIDs {
		wanted[id] = true
	}
	return r.list(func(a models.Assignment) bool { return wanted[a.CourseID] }), nil
}

func (r fakeAssignmentRepo) ListByCreator(_ context.Context, instructorID uint) ([]models.Assignment, error) {
	return r.list(func(a models.Assignment) bool { return a.CreatedBy == instructorID }), nil
}

func (r fakeAssignmentRepo) ListDueBetween(_ context.Context, from, to time.Time) ([]models.Assignment, error) {
	items := r.list(func(a models.Assignment) bool { return !a.DueDate.Before(from) && !a.DueDate.After(to) })
	sort.Slice(items, func(i, j int) bool { return items[i].DueDate.Before(items[j].DueDate) })
	return items, nil
}

func (r fakeAssignmentRepo) Create(_ context.Context, assignment *models.Assignment) error {
	*assignment = r.store.putAssignment(*assignment)
	return nil
}

func (r fakeAssignmentRepo) Update(_ context.Context, assignment *models.Assignment, replaceQuestions bool) error {
	r.store.mu.Lock()
	existing, ok := r.store.assignments[assignment.ID]
	r.store.mu.Unlock()
	if !ok {
		return gorm.ErrRecordNotFound
	}
	updated := *assignment
	if !replaceQuestions {
		updated.Questions = existing.Questions
	}
	r.store.putAssignment(updated)
	return nil
}

func (r fakeAssignmentRepo) DeleteCascade(_ context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.assignments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.store.assignments, id)
	for key, submission := range r.store.submissions {
		if submission.AssignmentID == id {
			delete(r.store.submissions, key)
		}
	}
	return nil
}

type fakeSubmissionRepo struct {
	store *memoryStore
	// beforeCreate runs ahead of the uniqueness check, simulating a racing writer.
	beforeCreate func(submission models.Submission)
}

func (r *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	submission, ok := r.store.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return r.store.withRelations(submission), nil
}

func (r *fakeSubmissionRepo) filter(match func(models.Submission) bool, less func(a, b models.Submission) bool) []models.Submission {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	items := make([]models.Submission, 0)
	for _, submission := range r.store.submissions {
		if match(submission) {
			items = append(items, r.store.withRelations(submission))
		}
	}
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
	return items
}

func (r *fakeSubmissionRepo) ListForPair(_ context.Context, assignmentID, studentID uint) ([]models.Submission, error) {
	return r.filter(
		func(s models.Submission) bool { return s.AssignmentID == assignmentID && s.StudentID == studentID },
		func(a, b models.Submission) bool { return a.AttemptNumber > b.AttemptNumber },
	), nil
}

func (r *fakeSubmissionRepo) ListByAssignment(_ context.Context, assignmentID uint) ([]models.Submission, error) {
	return r.filter(
		func(s models.Submission) bool { return s.AssignmentID == assignmentID },
		func(a, b models.Submission) bool { return a.ID > b.ID },
	), nil
}

func (r *fakeSubmissionRepo) ListByStudent(_ context.Context, studentID uint, assignmentIDs []uint) ([]models.Submission, error) {
	var wanted map[uint]bool
	if assignmentIDs != nil {
		wanted = map[uint]bool{}
		for _, id := range assignmentIDs {
			wanted[id] = true
		}
	}
	return r.filter(
		func(s models.Submission) bool {
			return s.StudentID == studentID && (wanted == nil || wanted[s.AssignmentID])
		},
		func(a, b models.Submission) bool {
			if a.AssignmentID != b.AssignmentID {
				return a.AssignmentID < b.AssignmentID
			}
			return a.AttemptNumber > b.AttemptNumber
		},
	), nil
}

func (r *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	if r.beforeCreate != nil {
		r.beforeCreate(*submission)
	}
	r.store.mu.Lock()
	for _, existing := range r.store.submissions {
		if existing.AssignmentID == submission.AssignmentID &&
			existing.StudentID == submission.StudentID &&
			existing.AttemptNumber == submission.AttemptNumber {
			r.store.mu.Unlock()
			return gorm.ErrDuplicatedKey
		}
	}
	submission.ID = r.store.id()
	stored := *submission
	stored.Assignment = models.Assignment{}
	stored.Student = models.User{}
	r.store.submissions[stored.ID] = stored
	r.store.mu.Unlock()
	return nil
}

func (r *fakeSubmissionRepo) UpdateGrade(_ context.Context, submission *models.Submission) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *submission
	stored.Assignment = models.Assignment{}
	stored.Student = models.User{}
	r.store.submissions[stored.ID] = stored
	return nil
}

type fakeCourseRepo struct{ store *memoryStore }

func (r fakeCourseRepo) GetByID(_ context.Context, id uint) (models.Course, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	course, ok := r.store.courses[id]
	if !ok {
		return models.Course{}, gorm.ErrRecordNotFound
	}
	return course, nil
}

func (r fakeCourseRepo) GetSection(_ context.Context, id uint) (models.Section, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	section, ok := r.store.sections[id]
	if !ok {
		return models.Section{}, gorm.ErrRecordNotFound
	}
	return section, nil
}

func (r fakeCourseRepo) IsEnrolled(_ context.Context, courseID, studentID uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.enrollments[courseID][studentID], nil
}

func (r fakeCourseRepo) EnrolledCourseIDs(_ context.Context, studentID uint) ([]uint, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ids := []uint{}
	for courseID, students := range r.store.enrollments {
		if students[studentID] {
			ids = append(ids, courseID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r fakeCourseRepo) EnrolledStudentIDs(_ context.Context, courseID uint) ([]uint, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ids := []uint{}
	for studentID, ok := range r.store.enrollments[courseID] {
		if ok {
			ids = append(ids, studentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type fakeUserRepo struct{ store *memoryStore }

func (r fakeUserRepo) GetByID(_ context.Context, id uint) (models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r fakeUserRepo) ListByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	users := []models.User{}
	for _, id := range ids {
		if user, ok := r.store.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

type fakeNotificationRepo struct {
	store *memoryStore
	err   error
}

func (r *fakeNotificationRepo) CreateBatch(_ context.Context, notifications []models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range notifications {
		notifications[i].ID = r.store.id()
		notifications[i].CreatedAt = time.Now().UTC()
		r.store.notifications[notifications[i].ID] = notifications[i]
	}
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	items := []models.Notification{}
	for _, notification := range r.store.notifications {
		if notification.UserID == userID && (!unreadOnly || !notification.Read) {
			items = append(items, notification)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	if offset > len(items) {
		return []models.Notification{}, nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, userID uint) (models.Notification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	notification, ok := r.store.notifications[id]
	if !ok || notification.UserID != userID {
		return models.Notification{}, gorm.ErrRecordNotFound
	}
	notification.Read = true
	r.store.notifications[id] = notification
	return notification, nil
}

func (r *fakeNotificationRepo) forUser(userID uint) []models.Notification {
	items, _ := r.ListByUser(context.Background(), userID, false, 0, 0)
	return items
}

type notifierCall struct {
	Kind          string
	ID            uint
	Score         int
	Feedback      string
	GraderName    string
	DaysRemaining int
}

// recordingNotifier captures dispatched notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (n *recordingNotifier) record(call notifierCall) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, call)
}

func (n *recordingNotifier) SubmissionConfirmed(_ context.Context, submissionID uint) {
	n.record(notifierCall{Kind: "confirmed", ID: submissionID})
}

func (n *recordingNotifier) Graded(_ context.Context, submissionID uint, score int, feedback, graderName string) {
	n.record(notifierCall{Kind: "graded", ID: submissionID, Score: score, Feedback: feedback, GraderName: graderName})
}

func (n *recordingNotifier) NewAssignment(_ context.Context, assignmentID uint) {
	n.record(notifierCall{Kind: "new_assignment", ID: assignmentID})
}

func (n *recordingNotifier) DueSoon(_ context.Context, assignmentID uint) {
	n.record(notifierCall{Kind: "due_soon", ID: assignmentID})
}

func (n *recordingNotifier) Pending(_ context.Context, assignmentID uint, daysRemaining int) {
	n.record(notifierCall{Kind: "pending", ID: assignmentID, DaysRemaining: daysRemaining})
}

func (n *recordingNotifier) byKind(kind string) []notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var matched []notifierCall
	for _, call := range n.calls {
		if call.Kind == kind {
			matched = append(matched, call)
		}
	}
	return matched
}
