package validator

import (
	"github.com/testing-system/testing-service/internal/errors"
	"github.com/testing-system/testing-service/internal/models"
)

// QuestionValidator checks that a question's content matches the shape its
// type requires. Choice-based types must carry choices and at least one
// correct answer drawn from them; text questions carry neither.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateContent validates choices/correct answers against the question type.
func (qv *QuestionValidator) ValidateContent(qType models.QuestionType, choices, correctAnswers []string) error {
	var errs errors.ValidationErrors

	switch qType {
	case models.QuestionSingle:
		errs = append(errs, qv.validateChoices(choices, correctAnswers)...)
		if len(correctAnswers) > 1 {
			errs = append(errs, errors.ValidationError{
				Field:   "correct_answers",
				Message: "single-answer question must have exactly one correct answer",
				Value:   len(correctAnswers),
			})
		}
	case models.QuestionMultiple:
		errs = append(errs, qv.validateChoices(choices, correctAnswers)...)
	case models.QuestionText:
		// Free-text questions carry no fixed choices; the correct set is
		// optional reference material for manual review.
	default:
		errs = append(errs, errors.ValidationError{
			Field:   "question_type",
			Message: "must be a valid question type (single, multiple, text)",
			Value:   string(qType),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (qv *QuestionValidator) validateChoices(choices, correctAnswers []string) errors.ValidationErrors {
	var errs errors.ValidationErrors

	if len(choices) < 2 {
		errs = append(errs, errors.ValidationError{
			Field:   "choices",
			Message: "must have at least 2 choices",
			Value:   len(choices),
		})
	}
	if len(correctAnswers) == 0 {
		errs = append(errs, errors.ValidationError{
			Field:   "correct_answers",
			Message: "must specify at least one correct answer",
		})
	}

	return errs
}
