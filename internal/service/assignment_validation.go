package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
)

// authoringInput is the normalized view of create and update payloads that
// the authoring rules run against.
type authoringInput struct {
	kind      models.AssignmentKind
	maxMarks  int
	dueDate   string
	questions []dto.QuestionPayload
	checkQuiz bool
}

// validateAuthoring applies the cross-field authoring rules and returns every
// violation. Field-level tag validation is expected to have run already.
func validateAuthoring(input authoringInput, now time.Time, errs *ValidationErrors) time.Time {
	var dueDate time.Time
	if input.dueDate != "" {
		parsed, err := time.Parse(dto.DateLayout, input.dueDate)
		switch {
		case err != nil:
			// reported by tag validation
		case !parsed.After(now):
			errs.Add("due_date", "must be in the future")
		default:
			dueDate = parsed
		}
	}

	if !input.checkQuiz {
		return dueDate
	}

	if input.kind != models.AssignmentKindQuiz {
		if len(input.questions) > 0 {
			errs.Add("questions", "only quizzes can define questions")
		}
		return dueDate
	}

	if len(input.questions) == 0 {
		errs.Add("questions", "a quiz requires at least one question")
		return dueDate
	}

	total := 0
	seen := make(map[string]struct{}, len(input.questions))
	for idx, question := range input.questions {
		field := fmt.Sprintf("questions[%d]", idx)
		// empty values were already reported by tag validation
		if question.Prompt != "" && strings.TrimSpace(question.Prompt) == "" {
			errs.Add(field+".prompt", "is required")
		}
		for optIdx, option := range question.Options {
			if option != "" && strings.TrimSpace(option) == "" {
				errs.Add(fmt.Sprintf("%s.options[%d]", field, optIdx), "is required")
			}
		}
		if question.CorrectAnswer != nil && *question.CorrectAnswer >= len(question.Options) {
			errs.Add(field+".correct_answer", "must reference one of the options")
		}
		if id := strings.TrimSpace(question.ID); id != "" {
			if _, dup := seen[id]; dup {
				errs.Add(field+".id", "duplicates another question")
			}
			seen[id] = struct{}{}
		}
		total += question.Marks
	}

	if input.maxMarks > 0 && total > input.maxMarks {
		errs.Add("questions", fmt.Sprintf("total marks %d exceed max_marks %d", total, input.maxMarks))
	}

	return dueDate
}

// buildQuestions converts payloads into models. Ids already stored on the
// assignment are kept; anything else gets a fresh uuid so positional answer
// indices never collide with stored ids.
func buildQuestions(payloads []dto.QuestionPayload, existing []models.Question) []models.Question {
	known := make(map[string]struct{}, len(existing))
	for _, question := range existing {
		known[question.ID] = struct{}{}
	}

	questions := make([]models.Question, 0, len(payloads))
	for idx, payload := range payloads {
		id := strings.TrimSpace(payload.ID)
		if _, ok := known[id]; !ok || id == "" {
			id = uuid.NewString()
		}

		question := models.Question{
			ID:       id,
			Position: idx,
			Prompt:   strings.TrimSpace(payload.Prompt),
			Marks:    payload.Marks,
		}
		if payload.CorrectAnswer != nil {
			question.CorrectOption = *payload.CorrectAnswer
		}
		options := make([]string, 0, len(payload.Options))
		for _, option := range payload.Options {
			options = append(options, strings.TrimSpace(option))
		}
		question.SetOptions(options)
		questions = append(questions, question)
	}
	return questions
}

func buildAttachments(payloads []dto.AttachmentPayload) []models.Attachment {
	attachments := make([]models.Attachment, 0, len(payloads))
	for _, payload := range payloads {
		attachments = append(attachments, models.Attachment{
			FileName: strings.TrimSpace(payload.FileName),
			FileURL:  strings.TrimSpace(payload.FileURL),
		})
	}
	return attachments
}
