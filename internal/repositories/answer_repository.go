package repositories

import (
	"context"

	"github.com/testing-system/testing-service/internal/models"
)

// UserAnswerRepository interface for the (user, test, question) answer rows.
type UserAnswerRepository interface {
	// Upsert writes the answer for the unique triple, overwriting any prior
	// submission and resetting verification state.
	Upsert(ctx context.Context, answer *models.UserAnswer) error
	Save(ctx context.Context, answer *models.UserAnswer) error

	GetByID(ctx context.Context, id uint) (*models.UserAnswer, error)
	GetByTriple(ctx context.Context, userID, testID, questionID uint) (*models.UserAnswer, error)
	ListByUserAndTest(ctx context.Context, userID, testID uint) ([]*models.UserAnswer, error)
	ListByQuestion(ctx context.Context, questionID uint, userID *uint) ([]*models.UserAnswer, error)
}
