package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
)

type TestPostgreSQL struct {
	db *gorm.DB
}

// Create creates a new test
func (t *TestPostgreSQL) Create(ctx context.Context, test *models.Test) error {
	if err := t.db.WithContext(ctx).Create(test).Error; err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}
	return nil
}

// GetByID retrieves a test by ID
func (t *TestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	var test models.Test
	if err := t.db.WithContext(ctx).First(&test, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get test %d: %w", id, err)
	}
	return &test, nil
}

// GetByIDWithQuestions retrieves a test with its question links in position order
func (t *TestPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) {
	var test models.Test
	if err := t.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"order\" ASC")
		}).
		Preload("Questions.Question").
		First(&test, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get test %d with questions: %w", id, err)
	}
	test.QuestionsCount = len(test.Questions)
	return &test, nil
}

// GetByTitle retrieves a test by its unique title
func (t *TestPostgreSQL) GetByTitle(ctx context.Context, title string) (*models.Test, error) {
	var test models.Test
	if err := t.db.WithContext(ctx).
		Where("title = ?", title).
		First(&test).Error; err != nil {
		return nil, fmt.Errorf("failed to get test by title %q: %w", title, err)
	}
	return &test, nil
}

// Update updates a test
func (t *TestPostgreSQL) Update(ctx context.Context, test *models.Test) error {
	if err := t.db.WithContext(ctx).Save(test).Error; err != nil {
		return fmt.Errorf("failed to update test %d: %w", test.ID, err)
	}
	return nil
}

// Delete removes a test. Its question links cascade; shared questions stay.
func (t *TestPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := t.db.WithContext(ctx).Delete(&models.Test{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete test %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("test %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// List retrieves tests with filtering and pagination
func (t *TestPostgreSQL) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	query := t.db.WithContext(ctx).Model(&models.Test{})

	if filters.Title != nil {
		query = query.Where("title ILIKE ?", "%"+*filters.Title+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tests: %w", err)
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := filters.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var tests []*models.Test
	if err := query.Find(&tests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tests: %w", err)
	}
	return tests, total, nil
}

// GetStartedByUser retrieves tests the user has at least one answer for
func (t *TestPostgreSQL) GetStartedByUser(ctx context.Context, userID uint) ([]*models.Test, error) {
	var tests []*models.Test
	if err := t.db.WithContext(ctx).
		Distinct("tests.*").
		Joins("JOIN user_answers ua ON ua.test_id = tests.id").
		Where("ua.user_id = ?", userID).
		Order("tests.created_at DESC").
		Find(&tests).Error; err != nil {
		return nil, fmt.Errorf("failed to get tests started by user %d: %w", userID, err)
	}
	return tests, nil
}

// ExistsByTitle checks title uniqueness, optionally excluding one test
func (t *TestPostgreSQL) ExistsByTitle(ctx context.Context, title string, excludeID *uint) (bool, error) {
	query := t.db.WithContext(ctx).
		Model(&models.Test{}).
		Where("title = ?", title)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check test title existence: %w", err)
	}
	return count > 0, nil
}
