package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/testing-system/testing-service/internal/models"
)

type UserAnswerPostgreSQL struct {
	db *gorm.DB
}

// Upsert writes the answer for the (user, test, question) triple. A resubmit
// overwrites the previous answer and clears any manual verification.
func (a *UserAnswerPostgreSQL) Upsert(ctx context.Context, answer *models.UserAnswer) error {
	if err := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "test_id"}, {Name: "question_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"answer":      answer.Answer,
				"is_correct":  answer.IsCorrect,
				"is_verified": answer.IsVerified,
			}),
		}).
		Create(answer).Error; err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

// Save persists changes to an existing answer row
func (a *UserAnswerPostgreSQL) Save(ctx context.Context, answer *models.UserAnswer) error {
	if err := a.db.WithContext(ctx).Save(answer).Error; err != nil {
		return fmt.Errorf("failed to save answer %d: %w", answer.ID, err)
	}
	return nil
}

// GetByID retrieves an answer by ID
func (a *UserAnswerPostgreSQL) GetByID(ctx context.Context, id uint) (*models.UserAnswer, error) {
	var answer models.UserAnswer
	if err := a.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get answer %d: %w", id, err)
	}
	return &answer, nil
}

// GetByTriple retrieves the answer for a (user, test, question) triple
func (a *UserAnswerPostgreSQL) GetByTriple(ctx context.Context, userID, testID, questionID uint) (*models.UserAnswer, error) {
	var answer models.UserAnswer
	if err := a.db.WithContext(ctx).
		Where("user_id = ? AND test_id = ? AND question_id = ?", userID, testID, questionID).
		First(&answer).Error; err != nil {
		return nil, fmt.Errorf("failed to get answer for user %d test %d question %d: %w", userID, testID, questionID, err)
	}
	return &answer, nil
}

// ListByUserAndTest retrieves all answers a user submitted for a test
func (a *UserAnswerPostgreSQL) ListByUserAndTest(ctx context.Context, userID, testID uint) ([]*models.UserAnswer, error) {
	var answers []*models.UserAnswer
	if err := a.db.WithContext(ctx).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to list answers for user %d test %d: %w", userID, testID, err)
	}
	return answers, nil
}

// ListByQuestion retrieves answers to a question, optionally for one user
func (a *UserAnswerPostgreSQL) ListByQuestion(ctx context.Context, questionID uint, userID *uint) ([]*models.UserAnswer, error) {
	query := a.db.WithContext(ctx).Where("question_id = ?", questionID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var answers []*models.UserAnswer
	if err := query.Order("id ASC").Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to list answers for question %d: %w", questionID, err)
	}
	return answers, nil
}
