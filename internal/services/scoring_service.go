package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/testing-system/testing-service/internal/cache"
	"github.com/testing-system/testing-service/internal/events"
	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
	"github.com/testing-system/testing-service/internal/validator"
)

// ScoringService grades submitted answers and keeps the per-(user, test)
// result row current. Scores are always recomputed from the full answer set,
// never incremented, so a recompute after any mutation converges to the same
// value.
type ScoringService interface {
	SubmitAnswer(ctx context.Context, userID, testID, questionID uint, rawAnswer interface{}) (*models.UserAnswer, error)
	SubmitAllAnswers(ctx context.Context, userID, testID uint, answers map[uint]interface{}) (*ScoreReport, error)
	ComputeScore(ctx context.Context, userID, testID uint) (*models.TestResult, error)
	VerifyTextAnswer(ctx context.Context, userID, testID, questionID uint, isCorrect bool, actorID uint) (*models.UserAnswer, error)
	GetResult(ctx context.Context, userID, testID uint) (*ScoreReport, error)
	ListQuestionAnswers(ctx context.Context, questionID uint, filterUserID *uint, actorID uint) ([]*models.UserAnswer, error)
}

// ScoreReport is the user-facing view of a result with per-question detail.
type ScoreReport struct {
	UserID       uint             `json:"user_id"`
	TestID       uint             `json:"test_id"`
	Score        float64          `json:"score"`
	IsCompleted  bool             `json:"is_completed"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	RecomputedAt time.Time        `json:"recomputed_at"`
	Total        int              `json:"total_questions"`
	Answered     int              `json:"answered_questions"`
	Correct      int              `json:"correct_questions"`
	Questions    []QuestionResult `json:"questions"`
}

// QuestionResult describes one question inside a score report. Both answer
// fields carry the normalized form; an unanswered question shows an empty
// user answer and counts as incorrect. A submitted but unverified text
// answer is incorrect with NeedsReview set.
type QuestionResult struct {
	QuestionID    uint                `json:"question_id"`
	Order         int                 `json:"order"`
	Text          string              `json:"text"`
	Type          models.QuestionType `json:"type"`
	Answered      bool                `json:"answered"`
	UserAnswer    []string            `json:"user_answer"`
	CorrectAnswer []string            `json:"correct_answer"`
	IsCorrect     bool                `json:"is_correct"`
	NeedsReview   bool                `json:"needs_review"`
}

type scoringService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	cache     cache.CacheService
	publisher events.EventPublisher
}

func NewScoringService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, cacheService cache.CacheService, publisher events.EventPublisher) ScoringService {
	return &scoringService{
		repo:      repo,
		logger:    logger,
		validator: v,
		cache:     cacheService,
		publisher: publisher,
	}
}

// ===== ANSWER SUBMISSION =====

// SubmitAnswer stores one answer and recomputes the result. The question
// must be linked to the test; otherwise nothing is written.
func (s *scoringService) SubmitAnswer(ctx context.Context, userID, testID, questionID uint, rawAnswer interface{}) (*models.UserAnswer, error) {
	s.logger.Info("Submitting answer",
		"user_id", userID,
		"test_id", testID,
		"question_id", questionID)

	var answer *models.UserAnswer
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		question, err := s.requireLinkedQuestion(ctx, tx, testID, questionID)
		if err != nil {
			return err
		}

		a, err := s.buildAnswer(userID, testID, question, rawAnswer)
		if err != nil {
			return err
		}
		if err := tx.Answers().Upsert(ctx, a); err != nil {
			return err
		}
		answer = a

		_, err = s.recompute(ctx, tx, userID, testID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx, userID, testID)
	return answer, nil
}

// SubmitAllAnswers stores a batch of answers atomically and returns the
// resulting score report. If any answer targets a question outside the
// test, the whole batch is rejected and nothing is written.
func (s *scoringService) SubmitAllAnswers(ctx context.Context, userID, testID uint, answers map[uint]interface{}) (*ScoreReport, error) {
	s.logger.Info("Submitting all answers",
		"user_id", userID,
		"test_id", testID,
		"count", len(answers))

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		links, err := tx.TestQuestions().GetByTestOrderedWithQuestions(ctx, testID)
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

		questionsByID := make(map[uint]*models.Question, len(links))
		for _, link := range links {
			if link.Question != nil {
				questionsByID[link.QuestionID] = link.Question
			}
		}

		// Validate the whole batch before the first write.
		for questionID := range answers {
			if _, ok := questionsByID[questionID]; !ok {
				return fmt.Errorf("question %d: %w", questionID, ErrUnrelatedQuestion)
			}
		}

		for questionID, raw := range answers {
			a, err := s.buildAnswer(userID, testID, questionsByID[questionID], raw)
			if err != nil {
				return err
			}
			if err := tx.Answers().Upsert(ctx, a); err != nil {
				return err
			}
		}

		_, err = s.recompute(ctx, tx, userID, testID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx, userID, testID)
	return s.GetResult(ctx, userID, testID)
}

// ComputeScore recomputes the result for a (user, test) pair from scratch.
func (s *scoringService) ComputeScore(ctx context.Context, userID, testID uint) (*models.TestResult, error) {
	var result *models.TestResult
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := tx.Tests().GetByID(ctx, testID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTestNotFound
			}
			return err
		}
		var err error
		result, err = s.recompute(ctx, tx, userID, testID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx, userID, testID)
	return result, nil
}

// VerifyTextAnswer records an admin verdict on a text answer and recomputes
// the result. Only text questions accept manual verification.
func (s *scoringService) VerifyTextAnswer(ctx context.Context, userID, testID, questionID uint, isCorrect bool, actorID uint) (*models.UserAnswer, error) {
	s.logger.Info("Verifying text answer",
		"user_id", userID,
		"test_id", testID,
		"question_id", questionID,
		"actor_id", actorID)

	actor, err := s.repo.Users().GetByID(ctx, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, NewPermissionError(actorID, questionID, "answer", "verify", "admin role required")
	}

	var answer *models.UserAnswer
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		question, err := tx.Questions().GetByID(ctx, questionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return err
		}
		if question.Type != models.QuestionText {
			return ErrAnswerNotVerifiable
		}

		a, err := tx.Answers().GetByTriple(ctx, userID, testID, questionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAnswerNotFound
			}
			return err
		}

		a.IsVerified = true
		a.IsCorrect = &isCorrect
		if err := tx.Answers().Save(ctx, a); err != nil {
			return err
		}
		answer = a

		_, err = s.recompute(ctx, tx, userID, testID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx, userID, testID)
	return answer, nil
}

// ===== RESULT READS =====

// GetResult assembles the score report for a (user, test) pair, serving
// from cache when possible.
func (s *scoringService) GetResult(ctx context.Context, userID, testID uint) (*ScoreReport, error) {
	if s.cache != nil {
		var cached ScoreReport
		if err := s.cache.Get(ctx, cache.ScoreReportKey(userID, testID), &cached); err == nil {
			return &cached, nil
		}
	}

	links, err := s.repo.TestQuestions().GetByTestOrderedWithQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		if _, err := s.repo.Tests().GetByID(ctx, testID); err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrTestNotFound
			}
			return nil, err
		}
	}

	result, err := s.repo.Results().GetByUserAndTest(ctx, userID, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}

	answers, err := s.repo.Answers().ListByUserAndTest(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	answersByQuestion := make(map[uint]*models.UserAnswer, len(answers))
	for _, a := range answers {
		answersByQuestion[a.QuestionID] = a
	}

	report := &ScoreReport{
		UserID:       userID,
		TestID:       testID,
		Score:        result.Score,
		IsCompleted:  result.IsCompleted,
		CompletedAt:  result.CompletedAt,
		RecomputedAt: result.RecomputedAt,
		Total:        len(links),
		Questions:    make([]QuestionResult, 0, len(links)),
	}

	for _, link := range links {
		qr := QuestionResult{
			QuestionID: link.QuestionID,
			Order:      link.Order,
			UserAnswer: []string{},
		}
		if link.Question != nil {
			qr.Text = link.Question.Text
			qr.Type = link.Question.Type
			qr.CorrectAnswer = NormalizeAnswer([]string(link.Question.CorrectAnswers))
		}
		if a, ok := answersByQuestion[link.QuestionID]; ok {
			qr.Answered = true
			report.Answered++
			qr.UserAnswer = []string(a.Answer)
			qr.NeedsReview = qr.Type == models.QuestionText && !a.IsVerified
			if link.Question != nil && s.isCorrect(link.Question, a) {
				qr.IsCorrect = true
				report.Correct++
			}
		}
		report.Questions = append(report.Questions, qr)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.ScoreReportKey(userID, testID), report, 5*time.Minute); err != nil {
			s.logger.Warn("Failed to cache score report", "error", err)
		}
	}
	return report, nil
}

// ListQuestionAnswers returns submitted answers to a question. Admins see
// every answer; other users only their own.
func (s *scoringService) ListQuestionAnswers(ctx context.Context, questionID uint, filterUserID *uint, actorID uint) ([]*models.UserAnswer, error) {
	actor, err := s.repo.Users().GetByID(ctx, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !actor.IsAdmin() {
		if filterUserID != nil && *filterUserID != actorID {
			return nil, NewPermissionError(actorID, questionID, "answer", "list", "can only list own answers")
		}
		filterUserID = &actorID
	}

	if _, err := s.repo.Questions().GetByID(ctx, questionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return s.repo.Answers().ListByQuestion(ctx, questionID, filterUserID)
}

// ===== GRADING CORE =====

// buildAnswer normalizes a raw submission into an answer row and grades it
// when the question type allows automatic scoring. Text answers stay
// unverified until an admin reviews them; resubmission resets the verdict.
func (s *scoringService) buildAnswer(userID, testID uint, question *models.Question, raw interface{}) (*models.UserAnswer, error) {
	normalized := NormalizeAnswer(raw)

	answer := &models.UserAnswer{
		UserID:     userID,
		TestID:     testID,
		QuestionID: question.ID,
		Answer:     normalized,
		IsVerified: false,
	}

	if question.Type.AutoScored() {
		correct := AnswerSetsEqual(normalized, question.CorrectAnswers)
		answer.IsCorrect = &correct
		answer.IsVerified = true
	}
	return answer, nil
}

// recompute regrades every answer of the pair and rewrites the result row.
// The row is locked for the duration so concurrent recomputes serialize.
func (s *scoringService) recompute(ctx context.Context, tx repositories.Repository, userID, testID uint) (*models.TestResult, error) {
	links, err := tx.TestQuestions().GetByTestOrderedWithQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}

	answers, err := tx.Answers().ListByUserAndTest(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	answersByQuestion := make(map[uint]*models.UserAnswer, len(answers))
	for _, a := range answers {
		answersByQuestion[a.QuestionID] = a
	}

	total := len(links)
	correct := 0
	for _, link := range links {
		a, ok := answersByQuestion[link.QuestionID]
		if !ok {
			continue
		}
		if link.Question == nil {
			continue
		}
		if s.isCorrect(link.Question, a) {
			correct++
		}
	}

	score := 0.0
	if total > 0 {
		score = math.Round(100*float64(correct)/float64(total)*100) / 100
	}

	now := time.Now()
	result, err := tx.Results().GetByUserAndTestForUpdate(ctx, userID, testID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, err
		}
		result = &models.TestResult{
			UserID: userID,
			TestID: testID,
		}
		if err := tx.Results().Create(ctx, result); err != nil {
			return nil, err
		}
	}

	// Every scoring pass marks the result completed; CompletedAt keeps the
	// first completion time across recomputes.
	result.Score = score
	result.IsCompleted = true
	result.RecomputedAt = now
	if result.CompletedAt == nil {
		result.CompletedAt = &now
	}
	if err := tx.Results().Save(ctx, result); err != nil {
		return nil, err
	}

	s.publishResultComputed(ctx, result)
	return result, nil
}

// isCorrect applies the grading rule for one answered question. Auto-scored
// types compare normalized answer sets; text counts only after an admin
// verified it as correct.
func (s *scoringService) isCorrect(question *models.Question, answer *models.UserAnswer) bool {
	if question.Type.AutoScored() {
		return AnswerSetsEqual(answer.Answer, question.CorrectAnswers)
	}
	return answer.IsVerified && answer.IsCorrect != nil && *answer.IsCorrect
}

func (s *scoringService) publishResultComputed(ctx context.Context, result *models.TestResult) {
	if s.publisher == nil {
		return
	}
	event := events.NewResultComputedEvent(result)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish result event",
			"user_id", result.UserID,
			"test_id", result.TestID,
			"error", err)
	}
}

func (s *scoringService) invalidateReportCache(ctx context.Context, userID, testID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.ScoreReportKey(userID, testID)); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Failed to invalidate score report cache",
			"user_id", userID,
			"test_id", testID,
			"error", err)
	}
}

// requireLinkedQuestion loads the question and confirms it belongs to the
// test, returning ErrUnrelatedQuestion when it does not.
func (s *scoringService) requireLinkedQuestion(ctx context.Context, tx repositories.Repository, testID, questionID uint) (*models.Question, error) {
	if _, err := tx.Tests().GetByID(ctx, testID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	question, err := tx.Questions().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	linked, err := tx.TestQuestions().Exists(ctx, testID, questionID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, fmt.Errorf("question %d: %w", questionID, ErrUnrelatedQuestion)
	}
	return question, nil
}
