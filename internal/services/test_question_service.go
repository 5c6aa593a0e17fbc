package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/testing-system/testing-service/internal/cache"
	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
	"github.com/testing-system/testing-service/internal/validator"
)

// TestQuestionService maintains the ordered question list of a test. Every
// mutation leaves the list a contiguous 0..N-1 permutation with no duplicate
// positions.
type TestQuestionService interface {
	AddQuestion(ctx context.Context, testID, questionID uint, order *int, actorID uint) (*models.TestQuestion, error)
	RemoveQuestion(ctx context.Context, testID, questionID uint, actorID uint) error
	Reorder(ctx context.Context, testID uint, questionIDs []uint, actorID uint) error
	GetOrderedQuestions(ctx context.Context, testID uint) ([]*models.TestQuestion, error)
}

type testQuestionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	cache     cache.CacheService

	// Per-test locks so concurrent order mutations on the same test
	// serialize in-process before they reach the transaction.
	testLocks sync.Map
}

func NewTestQuestionService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, cacheService cache.CacheService) TestQuestionService {
	return &testQuestionService{
		repo:      repo,
		logger:    logger,
		validator: v,
		cache:     cacheService,
	}
}

func (s *testQuestionService) lockTest(testID uint) func() {
	mu, _ := s.testLocks.LoadOrStore(testID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// ===== ORDER MUTATIONS =====

// AddQuestion links a question to a test at the requested position. A nil
// order appends; an occupied order shifts the occupant and everything after
// it one position up. Desired positions clamp into [0, N].
func (s *testQuestionService) AddQuestion(ctx context.Context, testID, questionID uint, order *int, actorID uint) (*models.TestQuestion, error) {
	s.logger.Info("Adding question to test",
		"test_id", testID,
		"question_id", questionID,
		"actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID, testID, "modify"); err != nil {
		return nil, err
	}

	unlock := s.lockTest(testID)
	defer unlock()

	var link *models.TestQuestion
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := tx.Tests().GetByID(ctx, testID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTestNotFound
			}
			return fmt.Errorf("failed to get test: %w", err)
		}
		if _, err := tx.Questions().GetByID(ctx, questionID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("failed to get question: %w", err)
		}

		exists, err := tx.TestQuestions().Exists(ctx, testID, questionID)
		if err != nil {
			return err
		}
		if exists {
			return ErrQuestionDuplicateLink
		}

		count, err := tx.TestQuestions().CountByTest(ctx, testID)
		if err != nil {
			return err
		}

		position := int(count)
		if order != nil {
			position = *order
			if position < 0 {
				position = 0
			}
			if position > int(count) {
				position = int(count)
			}
		}

		if position < int(count) {
			if err := s.shiftUpFrom(ctx, tx, testID, position, 0); err != nil {
				return err
			}
		}

		link = &models.TestQuestion{
			TestID:     testID,
			QuestionID: questionID,
			Order:      position,
		}
		return tx.TestQuestions().Create(ctx, link)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTestCache(ctx, testID)
	s.logger.Info("Question added to test",
		"test_id", testID,
		"question_id", questionID,
		"order", link.Order)
	return link, nil
}

// RemoveQuestion unlinks a question and closes the gap it leaves. The
// question row itself survives; other tests may still reference it.
func (s *testQuestionService) RemoveQuestion(ctx context.Context, testID, questionID uint, actorID uint) error {
	s.logger.Info("Removing question from test",
		"test_id", testID,
		"question_id", questionID,
		"actor_id", actorID)

	if err := s.requireAdmin(ctx, actorID, testID, "modify"); err != nil {
		return err
	}

	unlock := s.lockTest(testID)
	defer unlock()

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		link, err := tx.TestQuestions().GetByTestAndQuestion(ctx, testID, questionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return err
		}

		if err := tx.TestQuestions().Delete(ctx, link.ID); err != nil {
			return err
		}
		return s.shiftDownAfter(ctx, tx, testID, link.Order)
	})
	if err != nil {
		return err
	}

	s.invalidateTestCache(ctx, testID)
	return nil
}

// Reorder rewrites the whole order from an explicit question ID sequence.
// The sequence must contain exactly the questions linked to the test.
func (s *testQuestionService) Reorder(ctx context.Context, testID uint, questionIDs []uint, actorID uint) error {
	s.logger.Info("Reordering test questions",
		"test_id", testID,
		"actor_id", actorID,
		"count", len(questionIDs))

	if err := s.requireAdmin(ctx, actorID, testID, "modify"); err != nil {
		return err
	}

	unlock := s.lockTest(testID)
	defer unlock()

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		links, err := tx.TestQuestions().GetByTestOrdered(ctx, testID)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			if _, err := tx.Tests().GetByID(ctx, testID); err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrTestNotFound
				}
				return err
			}
		}

		if len(questionIDs) != len(links) {
			return NewValidationError("question_ids",
				fmt.Sprintf("expected %d question ids, got %d", len(links), len(questionIDs)),
				questionIDs)
		}

		byQuestion := make(map[uint]*models.TestQuestion, len(links))
		for _, link := range links {
			byQuestion[link.QuestionID] = link
		}

		ordered := make([]*models.TestQuestion, 0, len(questionIDs))
		for _, qid := range questionIDs {
			link, ok := byQuestion[qid]
			if !ok {
				return NewValidationError("question_ids",
					fmt.Sprintf("question %d is not linked to test %d", qid, testID), qid)
			}
			delete(byQuestion, qid)
			ordered = append(ordered, link)
		}

		// Two passes keep the unique (test_id, order) index satisfied at
		// every step: park all rows beyond the valid range, then assign.
		for i, link := range ordered {
			if err := tx.TestQuestions().UpdateOrder(ctx, link.ID, len(ordered)+i); err != nil {
				return err
			}
		}
		for i, link := range ordered {
			if err := tx.TestQuestions().UpdateOrder(ctx, link.ID, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateTestCache(ctx, testID)
	return nil
}

// GetOrderedQuestions returns the question links of a test in position order.
func (s *testQuestionService) GetOrderedQuestions(ctx context.Context, testID uint) ([]*models.TestQuestion, error) {
	if _, err := s.repo.Tests().GetByID(ctx, testID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	return s.repo.TestQuestions().GetByTestOrderedWithQuestions(ctx, testID)
}

// ===== HELPERS =====

// shiftUpFrom moves every link with order >= from one position up, walking
// from the highest order down so no two rows ever collide.
func (s *testQuestionService) shiftUpFrom(ctx context.Context, tx repositories.Repository, testID uint, from int, excludeID uint) error {
	links, err := tx.TestQuestions().ListFromOrder(ctx, testID, from, excludeID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := tx.TestQuestions().UpdateOrder(ctx, link.ID, link.Order+1); err != nil {
			return err
		}
	}
	return nil
}

// shiftDownAfter closes the gap left at the removed position, walking from
// the lowest order up.
func (s *testQuestionService) shiftDownAfter(ctx context.Context, tx repositories.Repository, testID uint, removed int) error {
	links, err := tx.TestQuestions().ListAfterOrder(ctx, testID, removed)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := tx.TestQuestions().UpdateOrder(ctx, link.ID, link.Order-1); err != nil {
			return err
		}
	}
	return nil
}

func (s *testQuestionService) requireAdmin(ctx context.Context, actorID, testID uint, action string) error {
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

func (s *testQuestionService) invalidateTestCache(ctx context.Context, testID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.TestDetailKey(testID)); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Failed to invalidate test cache", "test_id", testID, "error", err)
	}
}
