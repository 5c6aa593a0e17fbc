package services

import (
	"context"
	"log/slog"

	"github.com/testing-system/testing-service/internal/errors"
	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
	"github.com/testing-system/testing-service/internal/validator"
)

// QuestionService owns standalone question lifecycle. Questions are shared
// rows; unlinking from one test never touches what other tests see.
type QuestionService interface {
	Create(ctx context.Context, req *CreateQuestionRequest, actorID uint) (*models.Question, error)
	Update(ctx context.Context, questionID uint, req *UpdateQuestionRequest, actorID uint) (*models.Question, error)
	Delete(ctx context.Context, questionID uint, actorID uint) error

	GetByID(ctx context.Context, questionID uint) (*models.Question, error)
	List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error)
}

type CreateQuestionRequest struct {
	Text           string              `json:"text" validate:"required,min=1"`
	Type           models.QuestionType `json:"question_type" validate:"required,question_type"`
	Choices        []string            `json:"choices"`
	CorrectAnswers []string            `json:"correct_answers"`
}

type UpdateQuestionRequest struct {
	Text           *string  `json:"text,omitempty" validate:"omitempty,min=1"`
	Choices        []string `json:"choices,omitempty"`
	CorrectAnswers []string `json:"correct_answers,omitempty"`
}

type questionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		logger:    logger,
		validator: v,
	}
}

func (s *questionService) Create(ctx context.Context, req *CreateQuestionRequest, actorID uint) (*models.Question, error) {
	s.logger.Info("Creating question", "type", req.Type, "actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID, 0, "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, WrapValidation(err)
	}
	if err := s.validator.Question().ValidateContent(req.Type, req.Choices, req.CorrectAnswers); err != nil {
		return nil, err
	}

	question := &models.Question{
		Text:           req.Text,
		Type:           req.Type,
		Choices:        req.Choices,
		CorrectAnswers: req.CorrectAnswers,
	}
	if err := s.repo.Questions().Create(ctx, question); err != nil {
		return nil, err
	}

	s.logger.Info("Question created", "question_id", question.ID)
	return question, nil
}

// Update rewrites question content. The type is immutable after creation;
// grades already derived from the old content converge on the next recompute.
func (s *questionService) Update(ctx context.Context, questionID uint, req *UpdateQuestionRequest, actorID uint) (*models.Question, error) {
	s.logger.Info("Updating question", "question_id", questionID, "actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID, questionID, "update"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, WrapValidation(err)
	}

	question, err := s.repo.Questions().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Choices != nil {
		question.Choices = req.Choices
	}
	if req.CorrectAnswers != nil {
		question.CorrectAnswers = req.CorrectAnswers
	}

	if err := s.validator.Question().ValidateContent(question.Type, question.Choices, question.CorrectAnswers); err != nil {
		return nil, err
	}
	if err := s.repo.Questions().Update(ctx, question); err != nil {
		return nil, err
	}
	return question, nil
}

// Delete removes a question that no test references anymore.
func (s *questionService) Delete(ctx context.Context, questionID uint, actorID uint) error {
	s.logger.Info("Deleting question", "question_id", questionID, "actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID, questionID, "delete"); err != nil {
		return err
	}

	refs, err := s.repo.TestQuestions().CountByQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if refs > 0 {
		return errors.NewValidationError("question_id",
			"question is still linked to tests and cannot be deleted", questionID)
	}

	if err := s.repo.Questions().Delete(ctx, questionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return err
	}
	return nil
}

func (s *questionService) GetByID(ctx context.Context, questionID uint) (*models.Question, error) {
	question, err := s.repo.Questions().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return question, nil
}

func (s *questionService) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	return s.repo.Questions().List(ctx, filters)
}

func (s *questionService) requireAdmin(ctx context.Context, actorID, resourceID uint, action string) error {
	user, err := s.repo.Users().GetByID(ctx, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.IsAdmin() {
		return NewPermissionError(actorID, resourceID, "question", action, "admin role required")
	}
	return nil
}
