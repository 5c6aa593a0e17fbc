package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/testing-system/testing-service/internal/models"
)

type TestQuestionPostgreSQL struct {
	db *gorm.DB
}

// Create creates a new test-question link
func (tq *TestQuestionPostgreSQL) Create(ctx context.Context, link *models.TestQuestion) error {
	if err := tq.db.WithContext(ctx).Create(link).Error; err != nil {
		return fmt.Errorf("failed to create test question link: %w", err)
	}
	return nil
}

// Save persists changes to an existing link
func (tq *TestQuestionPostgreSQL) Save(ctx context.Context, link *models.TestQuestion) error {
	if err := tq.db.WithContext(ctx).Save(link).Error; err != nil {
		return fmt.Errorf("failed to save test question link %d: %w", link.ID, err)
	}
	return nil
}

// Delete removes a link by ID
func (tq *TestQuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := tq.db.WithContext(ctx).Delete(&models.TestQuestion{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete test question link %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("test question link %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetByTestAndQuestion retrieves the link for a (test, question) pair
func (tq *TestQuestionPostgreSQL) GetByTestAndQuestion(ctx context.Context, testID, questionID uint) (*models.TestQuestion, error) {
	var link models.TestQuestion
	if err := tq.db.WithContext(ctx).
		Where("test_id = ? AND question_id = ?", testID, questionID).
		First(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to get link for test %d question %d: %w", testID, questionID, err)
	}
	return &link, nil
}

// GetByTestOrdered retrieves all links of a test sorted by position
func (tq *TestQuestionPostgreSQL) GetByTestOrdered(ctx context.Context, testID uint) ([]*models.TestQuestion, error) {
	var links []*models.TestQuestion
	if err := tq.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("\"order\" ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to get ordered links for test %d: %w", testID, err)
	}
	return links, nil
}

// GetByTestOrderedWithQuestions retrieves ordered links with questions preloaded
func (tq *TestQuestionPostgreSQL) GetByTestOrderedWithQuestions(ctx context.Context, testID uint) ([]*models.TestQuestion, error) {
	var links []*models.TestQuestion
	if err := tq.db.WithContext(ctx).
		Preload("Question").
		Where("test_id = ?", testID).
		Order("\"order\" ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to get ordered links with questions for test %d: %w", testID, err)
	}
	return links, nil
}

// ListFromOrder retrieves links with order >= from, highest first, so the
// ordering service can shift them up without transient collisions.
func (tq *TestQuestionPostgreSQL) ListFromOrder(ctx context.Context, testID uint, from int, excludeID uint) ([]*models.TestQuestion, error) {
	query := tq.db.WithContext(ctx).
		Where("test_id = ? AND \"order\" >= ?", testID, from)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var links []*models.TestQuestion
	if err := query.Order("\"order\" DESC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list links from order %d for test %d: %w", from, testID, err)
	}
	return links, nil
}

// ListAfterOrder retrieves links with order > after, lowest first, so the
// ordering service can close a gap after a removal.
func (tq *TestQuestionPostgreSQL) ListAfterOrder(ctx context.Context, testID uint, after int) ([]*models.TestQuestion, error) {
	var links []*models.TestQuestion
	if err := tq.db.WithContext(ctx).
		Where("test_id = ? AND \"order\" > ?", testID, after).
		Order("\"order\" ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list links after order %d for test %d: %w", after, testID, err)
	}
	return links, nil
}

// UpdateOrder moves a single link to a new position
func (tq *TestQuestionPostgreSQL) UpdateOrder(ctx context.Context, linkID uint, order int) error {
	result := tq.db.WithContext(ctx).
		Model(&models.TestQuestion{}).
		Where("id = ?", linkID).
		Update("order", order)
	if result.Error != nil {
		return fmt.Errorf("failed to update order for link %d: %w", linkID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("test question link %d: %w", linkID, gorm.ErrRecordNotFound)
	}
	return nil
}

// HasOrderConflict checks whether another link of the test holds the position
func (tq *TestQuestionPostgreSQL) HasOrderConflict(ctx context.Context, testID uint, order int, excludeID uint) (bool, error) {
	query := tq.db.WithContext(ctx).
		Model(&models.TestQuestion{}).
		Where("test_id = ? AND \"order\" = ?", testID, order)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check order conflict: %w", err)
	}
	return count > 0, nil
}

// Exists checks if a (test, question) link exists
func (tq *TestQuestionPostgreSQL) Exists(ctx context.Context, testID, questionID uint) (bool, error) {
	var count int64
	if err := tq.db.WithContext(ctx).
		Model(&models.TestQuestion{}).
		Where("test_id = ? AND question_id = ?", testID, questionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check link existence: %w", err)
	}
	return count > 0, nil
}

// CountByQuestion counts how many tests still reference a question
func (tq *TestQuestionPostgreSQL) CountByQuestion(ctx context.Context, questionID uint) (int64, error) {
	var count int64
	if err := tq.db.WithContext(ctx).
		Model(&models.TestQuestion{}).
		Where("question_id = ?", questionID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count links for question %d: %w", questionID, err)
	}
	return count, nil
}

// CountByTest counts the questions linked to a test
func (tq *TestQuestionPostgreSQL) CountByTest(ctx context.Context, testID uint) (int64, error) {
	var count int64
	if err := tq.db.WithContext(ctx).
		Model(&models.TestQuestion{}).
		Where("test_id = ?", testID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count links for test %d: %w", testID, err)
	}
	return count, nil
}

// DeleteByTest removes all links of a test
func (tq *TestQuestionPostgreSQL) DeleteByTest(ctx context.Context, testID uint) error {
	if err := tq.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Delete(&models.TestQuestion{}).Error; err != nil {
		return fmt.Errorf("failed to delete links for test %d: %w", testID, err)
	}
	return nil
}
