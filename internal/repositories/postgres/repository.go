package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/testing-system/testing-service/internal/repositories"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a PostgreSQL-backed repository aggregate.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Tests() repositories.TestRepository {
	return &TestPostgreSQL{db: r.db}
}

func (r *gormRepository) Questions() repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: r.db}
}

func (r *gormRepository) TestQuestions() repositories.TestQuestionRepository {
	return &TestQuestionPostgreSQL{db: r.db}
}

func (r *gormRepository) Answers() repositories.UserAnswerRepository {
	return &UserAnswerPostgreSQL{db: r.db}
}

func (r *gormRepository) Results() repositories.TestResultRepository {
	return &TestResultPostgreSQL{db: r.db}
}

func (r *gormRepository) Users() repositories.UserRepository {
	return &UserPostgreSQL{db: r.db}
}

// WithTransaction runs fn against a repository bound to a single transaction.
// Nested calls reuse the already-open transaction, so services can compose.
func (r *gormRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *gormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}
