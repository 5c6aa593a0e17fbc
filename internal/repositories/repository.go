package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates all entity repositories. WithTransaction hands the
// callback a Repository bound to the transaction; every mutating operation of
// the ordering, scoring and import services runs through it so a failure
// mid-shift rolls back to the prior consistent state.
type Repository interface {
	Tests() TestRepository
	Questions() QuestionRepository
	TestQuestions() TestQuestionRepository
	Answers() UserAnswerRepository
	Results() TestResultRepository
	Users() UserRepository

	WithTransaction(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}

// IsNotFoundError checks if error represents a "record not found" condition
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError checks if error represents a unique constraint breach
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
