package repositories

import (
	"context"

	"github.com/testing-system/testing-service/internal/models"
)

// TestResultRepository interface for derived score rows.
type TestResultRepository interface {
	Create(ctx context.Context, result *models.TestResult) error
	Save(ctx context.Context, result *models.TestResult) error

	GetByUserAndTest(ctx context.Context, userID, testID uint) (*models.TestResult, error)
	// GetByUserAndTestForUpdate row-locks the result so concurrent recomputes
	// for the same (user, test) pair serialize inside their transactions.
	GetByUserAndTestForUpdate(ctx context.Context, userID, testID uint) (*models.TestResult, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.TestResult, error)
}
