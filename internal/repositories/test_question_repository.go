package repositories

import (
	"context"

	"github.com/testing-system/testing-service/internal/models"
)

// QuestionOrder pairs a question with its target position for bulk reorders.
type QuestionOrder struct {
	QuestionID uint `json:"question_id" validate:"required"`
	Order      int  `json:"order" validate:"min=0"`
}

// TestQuestionRepository interface for the test-question link entity. The
// shift helpers exist for the ordering service; nothing else writes the
// order column.
type TestQuestionRepository interface {
	Create(ctx context.Context, link *models.TestQuestion) error
	Save(ctx context.Context, link *models.TestQuestion) error
	Delete(ctx context.Context, id uint) error

	GetByTestAndQuestion(ctx context.Context, testID, questionID uint) (*models.TestQuestion, error)
	GetByTestOrdered(ctx context.Context, testID uint) ([]*models.TestQuestion, error)
	GetByTestOrderedWithQuestions(ctx context.Context, testID uint) ([]*models.TestQuestion, error)

	// ListFromOrder returns links with order >= from, highest order first,
	// excluding excludeID when non-zero.
	ListFromOrder(ctx context.Context, testID uint, from int, excludeID uint) ([]*models.TestQuestion, error)
	// ListAfterOrder returns links with order > after, lowest order first.
	ListAfterOrder(ctx context.Context, testID uint, after int) ([]*models.TestQuestion, error)
	// UpdateOrder moves a single link to a new position.
	UpdateOrder(ctx context.Context, linkID uint, order int) error

	HasOrderConflict(ctx context.Context, testID uint, order int, excludeID uint) (bool, error)
	Exists(ctx context.Context, testID, questionID uint) (bool, error)
	CountByQuestion(ctx context.Context, questionID uint) (int64, error)
	CountByTest(ctx context.Context, testID uint) (int64, error)
	DeleteByTest(ctx context.Context, testID uint) error
}
