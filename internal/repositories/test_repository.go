package repositories

import (
	"context"

	"github.com/testing-system/testing-service/internal/models"
)

// TestFilters narrows and pages test listings.
type TestFilters struct {
	Title     *string `json:"title"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
	SortBy    string  `json:"sort_by"`    // "created_at", "title"
	SortOrder string  `json:"sort_order"` // "asc", "desc"
}

// TestRepository interface for test-specific operations
type TestRepository interface {
	Create(ctx context.Context, test *models.Test) error
	GetByID(ctx context.Context, id uint) (*models.Test, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) // links ordered by position
	GetByTitle(ctx context.Context, title string) (*models.Test, error)
	Update(ctx context.Context, test *models.Test) error
	Delete(ctx context.Context, id uint) error

	List(ctx context.Context, filters TestFilters) ([]*models.Test, int64, error)
	GetStartedByUser(ctx context.Context, userID uint) ([]*models.Test, error)

	ExistsByTitle(ctx context.Context, title string, excludeID *uint) (bool, error)
}
