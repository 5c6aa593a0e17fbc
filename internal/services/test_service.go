package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/testing-system/testing-service/internal/cache"
	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
	"github.com/testing-system/testing-service/internal/validator"
)

// TestService owns test lifecycle and read views.
type TestService interface {
	Create(ctx context.Context, req *CreateTestRequest, actorID uint) (*models.Test, error)
	Update(ctx context.Context, testID uint, req *UpdateTestRequest, actorID uint) (*models.Test, error)
	Delete(ctx context.Context, testID uint, actorID uint) error

	GetByID(ctx context.Context, testID uint) (*models.Test, error)
	List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error)
	GetStartedByUser(ctx context.Context, userID uint) ([]*models.Test, error)
	GetUserResults(ctx context.Context, userID uint) ([]*models.TestResult, error)
}

type CreateTestRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=255"`
	Description *string `json:"description,omitempty"`
}

type UpdateTestRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
}

type testService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	cache     cache.CacheService
}

func NewTestService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, cacheService cache.CacheService) TestService {
	return &testService{
		repo:      repo,
		logger:    logger,
		validator: v,
		cache:     cacheService,
	}
}

// ===== LIFECYCLE =====

func (s *testService) Create(ctx context.Context, req *CreateTestRequest, actorID uint) (*models.Test, error) {
	s.logger.Info("Creating test", "title", req.Title, "actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID, 0, "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, WrapValidation(err)
	}

	exists, err := s.repo.Tests().ExistsByTitle(ctx, req.Title, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrTestDuplicateTitle
	}

	test := &models.Test{
		Title:       req.Title,
		Description: req.Description,
	}
	if err := s.repo.Tests().Create(ctx, test); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrTestDuplicateTitle
		}
		return nil, err
	}

	s.logger.Info("Test created", "test_id", test.ID, "title", test.Title)
	return test, nil
}

func (s *testService) Update(ctx context.Context, testID uint, req *UpdateTestRequest, actorID uint) (*models.Test, error) {
	s.logger.Info("Updating test", "test_id", testID, "actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID, testID, "update"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, WrapValidation(err)
	}

	test, err := s.repo.Tests().GetByID(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}

	if req.Title != nil && *req.Title != test.Title {
		exists, err := s.repo.Tests().ExistsByTitle(ctx, *req.Title, &testID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrTestDuplicateTitle
		}
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = req.Description
	}

	if err := s.repo.Tests().Update(ctx, test); err != nil {
		return nil, err
	}

	s.invalidateTestCache(ctx, testID)
	return test, nil
}

// Delete removes a test and its question links. Questions shared with other
// tests survive; results and answers for the test are left as history.
func (s *testService) Delete(ctx context.Context, testID uint, actorID uint) error {
	s.logger.Info("Deleting test", "test_id", testID, "actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID, testID, "delete"); err != nil {
		return err
	}

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := tx.Tests().GetByID(ctx, testID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTestNotFound
			}
			return err
		}
		if err := tx.TestQuestions().DeleteByTest(ctx, testID); err != nil {
			return err
		}
		return tx.Tests().Delete(ctx, testID)
	})
	if err != nil {
		return err
	}

	s.invalidateTestCache(ctx, testID)
	return nil
}

// ===== READS =====

// GetByID returns a test with its questions in position order, serving from
// cache when possible.
func (s *testService) GetByID(ctx context.Context, testID uint) (*models.Test, error) {
	if s.cache != nil {
		var cached models.Test
		if err := s.cache.Get(ctx, cache.TestDetailKey(testID), &cached); err == nil {
			return &cached, nil
		}
	}

	test, err := s.repo.Tests().GetByIDWithQuestions(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.TestDetailKey(testID), test, 10*time.Minute); err != nil {
			s.logger.Warn("Failed to cache test detail", "test_id", testID, "error", err)
		}
	}
	return test, nil
}

func (s *testService) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	return s.repo.Tests().List(ctx, filters)
}

func (s *testService) GetStartedByUser(ctx context.Context, userID uint) ([]*models.Test, error) {
	if _, err := s.repo.Users().GetByID(ctx, userID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.repo.Tests().GetStartedByUser(ctx, userID)
}

func (s *testService) GetUserResults(ctx context.Context, userID uint) ([]*models.TestResult, error) {
	if _, err := s.repo.Users().GetByID(ctx, userID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.repo.Results().ListByUser(ctx, userID)
}

// ===== HELPERS =====

func (s *testService) requireAdmin(ctx context.Context, actorID, testID uint, action string) error {
	user, err := s.repo.Users().GetByID(ctx, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.IsAdmin() {
		return NewPermissionError(actorID, testID, "test", action, "admin role required")
	}
	return nil
}

func (s *testService) invalidateTestCache(ctx context.Context, testID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.TestDetailKey(testID)); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Failed to invalidate test cache", "test_id", testID, "error", err)
	}
}
