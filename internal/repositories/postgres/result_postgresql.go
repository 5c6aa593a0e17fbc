package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/testing-system/testing-service/internal/models"
)

type TestResultPostgreSQL struct {
	db *gorm.DB
}

// Create creates a new result row
func (r *TestResultPostgreSQL) Create(ctx context.Context, result *models.TestResult) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create result: %w", err)
	}
	return nil
}

// Save persists changes to an existing result row
func (r *TestResultPostgreSQL) Save(ctx context.Context, result *models.TestResult) error {
	if err := r.db.WithContext(ctx).Save(result).Error; err != nil {
		return fmt.Errorf("failed to save result %d: %w", result.ID, err)
	}
	return nil
}

// GetByUserAndTest retrieves the result for a (user, test) pair
func (r *TestResultPostgreSQL) GetByUserAndTest(ctx context.Context, userID, testID uint) (*models.TestResult, error) {
	var result models.TestResult
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND test_id = ?", userID, testID).
		First(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to get result for user %d test %d: %w", userID, testID, err)
	}
	return &result, nil
}

// GetByUserAndTestForUpdate retrieves the result with a row lock. Only
// meaningful inside a transaction.
func (r *TestResultPostgreSQL) GetByUserAndTestForUpdate(ctx context.Context, userID, testID uint) (*models.TestResult, error) {
	var result models.TestResult
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND test_id = ?", userID, testID).
		First(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to lock result for user %d test %d: %w", userID, testID, err)
	}
	return &result, nil
}

// ListByUser retrieves all results of a user, newest recompute first
func (r *TestResultPostgreSQL) ListByUser(ctx context.Context, userID uint) ([]*models.TestResult, error) {
	var results []*models.TestResult
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("recomputed_at DESC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to list results for user %d: %w", userID, err)
	}
	return results, nil
}
