package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

// Create creates a new question, refreshing its fingerprint first
func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	question.RefreshFingerprint()
	if err := q.db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// GetByID retrieves a question by ID
func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get question %d: %w", id, err)
	}
	return &question, nil
}

// GetByIDs retrieves questions for a set of IDs
func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var questions []*models.Question
	if err := q.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by ids: %w", err)
	}
	return questions, nil
}

// Update updates a question, refreshing its fingerprint
func (q *QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	question.RefreshFingerprint()
	if err := q.db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question %d: %w", question.ID, err)
	}
	return nil
}

// Delete removes a question
func (q *QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := q.db.WithContext(ctx).Delete(&models.Question{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete question %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("question %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// List retrieves questions with filtering and pagination
func (q *QuestionPostgreSQL) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	query := q.db.WithContext(ctx).Model(&models.Question{})

	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	query = query.Order("id ASC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var questions []*models.Question
	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, total, nil
}

// FindByFingerprint retrieves content-identical questions, oldest first
func (q *QuestionPostgreSQL) FindByFingerprint(ctx context.Context, fingerprint string) ([]*models.Question, error) {
	var questions []*models.Question
	if err := q.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to find questions by fingerprint: %w", err)
	}
	return questions, nil
}
