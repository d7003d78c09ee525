package grading

import (
	"strconv"
	"strings"

	"github.com/noah-isme/coursework-api/internal/models"
)

// Resolution records how a submitted answer was matched to a question.
type Resolution int

const (
	// ResolveByID matched the answer against a stored question id.
	ResolveByID Resolution = iota + 1
	// ResolveByIndex matched the answer by positional index.
	ResolveByIndex
)

func (r Resolution) String() string {
	switch r {
	case ResolveByID:
		return "id"
	case ResolveByIndex:
		return "index"
	default:
		return "unresolved"
	}
}

// SubmittedAnswer is a raw answer as sent by the client.
type SubmittedAnswer struct {
	QuestionID     string
	SelectedOption int
}

// GradedAnswer is a resolved answer annotated with correctness.
type GradedAnswer struct {
	QuestionID     string
	SelectedOption int
	IsCorrect      bool
	Resolution     Resolution
}

// Result is the output of grading a quiz attempt.
type Result struct {
	Score   int
	Answers []GradedAnswer
	// Dropped lists question ids that resolved to no question.
	Dropped []string
}

// ModelAnswers converts graded answers into their persisted form.
func (r Result) ModelAnswers() []models.Answer {
	answers := make([]models.Answer, 0, len(r.Answers))
	for _, answer := range r.Answers {
		answers = append(answers, models.Answer{
			QuestionID:     answer.QuestionID,
			SelectedOption: answer.SelectedOption,
			IsCorrect:      answer.IsCorrect,
		})
	}
	return answers
}

// Grade scores answers against the quiz questions. Questions are resolved by
// stored id first and by positional index second; anything else is dropped.
// Output order follows input order.
func Grade(questions []models.Question, answers []SubmittedAnswer) Result {
	byID := make(map[string]int, len(questions))
	for idx, question := range questions {
		byID[question.ID] = idx
	}

	result := Result{Answers: make([]GradedAnswer, 0, len(answers))}
	for _, answer := range answers {
		idx, resolution, ok := resolve(byID, len(questions), answer.QuestionID)
		if !ok {
			result.Dropped = append(result.Dropped, answer.QuestionID)
			continue
		}

		question := questions[idx]
		correct := answer.SelectedOption == question.CorrectOption
		if correct {
			result.Score += question.Marks
		}

		result.Answers = append(result.Answers, GradedAnswer{
			QuestionID:     answer.QuestionID,
			SelectedOption: answer.SelectedOption,
			IsCorrect:      correct,
			Resolution:     resolution,
		})
	}

	return result
}

func resolve(byID map[string]int, count int, questionID string) (int, Resolution, bool) {
	if idx, ok := byID[questionID]; ok {
		return idx, ResolveByID, true
	}

	index, err := strconv.Atoi(strings.TrimSpace(questionID))
	if err != nil || index < 0 || index >= count {
		return 0, 0, false
	}
	return index, ResolveByIndex, true
}
