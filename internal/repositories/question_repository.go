package repositories

import (
	"context"

	"github.com/testing-system/testing-service/internal/models"
)

// QuestionFilters narrows and pages question listings.
type QuestionFilters struct {
	Type   *models.QuestionType `json:"type"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// QuestionRepository interface for question-specific operations
type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error

	List(ctx context.Context, filters QuestionFilters) ([]*models.Question, int64, error)

	// FindByFingerprint returns all questions with identical content, oldest
	// first, so duplicate resolution is deterministic.
	FindByFingerprint(ctx context.Context, fingerprint string) ([]*models.Question, error)
}
