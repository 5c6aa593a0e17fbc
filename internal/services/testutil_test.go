package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
	"github.com/testing-system/testing-service/internal/validator"
)

// fakeRepo is an in-memory Repository used by the service tests. It mirrors
// the persistence semantics the services rely on: not-found errors wrap
// gorm.ErrRecordNotFound, WithTransaction rolls every table back on error,
// and the ordered-link queries sort exactly like their SQL counterparts.
type fakeRepo struct {
	tests     map[uint]*models.Test
	questions map[uint]*models.Question
	links     map[uint]*models.TestQuestion
	answers   map[uint]*models.UserAnswer
	results   map[uint]*models.TestResult
	users     map[uint]*models.User
	nextID    uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tests:     make(map[uint]*models.Test),
		questions: make(map[uint]*models.Question),
		links:     make(map[uint]*models.TestQuestion),
		answers:   make(map[uint]*models.UserAnswer),
		results:   make(map[uint]*models.TestResult),
		users:     make(map[uint]*models.User),
	}
}

func (f *fakeRepo) id() uint {
	f.nextID++
	return f.nextID
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, gorm.ErrRecordNotFound)
}

func (f *fakeRepo) Tests() repositories.TestRepository                 { return &fakeTests{f} }
func (f *fakeRepo) Questions() repositories.QuestionRepository         { return &fakeQuestions{f} }
func (f *fakeRepo) TestQuestions() repositories.TestQuestionRepository { return &fakeLinks{f} }
func (f *fakeRepo) Answers() repositories.UserAnswerRepository         { return &fakeAnswers{f} }
func (f *fakeRepo) Results() repositories.TestResultRepository         { return &fakeResults{f} }
func (f *fakeRepo) Users() repositories.UserRepository                 { return &fakeUsers{f} }

func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	snapshot := f.clone()
	if err := fn(f); err != nil {
		f.restore(snapshot)
		return err
	}
	return nil
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

func (f *fakeRepo) clone() *fakeRepo {
	c := newFakeRepo()
	c.nextID = f.nextID
	for id, v := range f.tests {
		cp := *v
		c.tests[id] = &cp
	}
	for id, v := range f.questions {
		cp := *v
		c.questions[id] = &cp
	}
	for id, v := range f.links {
		cp := *v
		c.links[id] = &cp
	}
	for id, v := range f.answers {
		cp := *v
		c.answers[id] = &cp
	}
	for id, v := range f.results {
		cp := *v
		c.results[id] = &cp
	}
	for id, v := range f.users {
		cp := *v
		c.users[id] = &cp
	}
	return c
}

func (f *fakeRepo) restore(snapshot *fakeRepo) {
	f.tests = snapshot.tests
	f.questions = snapshot.questions
	f.links = snapshot.links
	f.answers = snapshot.answers
	f.results = snapshot.results
	f.users = snapshot.users
	f.nextID = snapshot.nextID
}

// ===== SEED HELPERS =====

func (f *fakeRepo) seedUser(role models.UserRole) *models.User {
	u := &models.User{ID: f.id(), Username: fmt.Sprintf("user-%d", f.nextID), Role: role}
	f.users[u.ID] = u
	return u
}

func (f *fakeRepo) seedTest(title string) *models.Test {
	t := &models.Test{ID: f.id(), Title: title}
	f.tests[t.ID] = t
	return t
}

func (f *fakeRepo) seedQuestion(text string, qType models.QuestionType, choices, correct []string) *models.Question {
	q := &models.Question{
		ID:             f.id(),
		Text:           text,
		Type:           qType,
		Choices:        choices,
		CorrectAnswers: correct,
	}
	q.RefreshFingerprint()
	f.questions[q.ID] = q
	return q
}

func (f *fakeRepo) seedLink(testID, questionID uint, order int) *models.TestQuestion {
	l := &models.TestQuestion{ID: f.id(), TestID: testID, QuestionID: questionID, Order: order}
	f.links[l.ID] = l
	return l
}

// orders returns the current (questionID, order) layout of a test sorted by
// position, for asserting the contiguity invariant.
func (f *fakeRepo) orders(testID uint) []int {
	var links []*models.TestQuestion
	for _, l := range f.links {
		if l.TestID == testID {
			links = append(links, l)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Order < links[j].Order })
	out := make([]int, len(links))
	for i, l := range links {
		out[i] = l.Order
	}
	return out
}

func (f *fakeRepo) questionAt(testID uint, order int) uint {
	for _, l := range f.links {
		if l.TestID == testID && l.Order == order {
			return l.QuestionID
		}
	}
	return 0
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *validator.Validator {
	return validator.New()
}

// ===== TESTS =====

type fakeTests struct{ f *fakeRepo }

func (r *fakeTests) Create(ctx context.Context, test *models.Test) error {
	test.ID = r.f.id()
	r.f.tests[test.ID] = test
	return nil
}

func (r *fakeTests) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	t, ok := r.f.tests[id]
	if !ok {
		return nil, notFound("test")
	}
	return t, nil
}

func (r *fakeTests) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) {
	t, ok := r.f.tests[id]
	if !ok {
		return nil, notFound("test")
	}
	cp := *t
	links, _ := (&fakeLinks{r.f}).GetByTestOrderedWithQuestions(ctx, id)
	cp.Questions = make([]models.TestQuestion, len(links))
	for i, l := range links {
		cp.Questions[i] = *l
	}
	cp.QuestionsCount = len(cp.Questions)
	return &cp, nil
}

func (r *fakeTests) GetByTitle(ctx context.Context, title string) (*models.Test, error) {
	for _, t := range r.f.tests {
		if t.Title == title {
			return t, nil
		}
	}
	return nil, notFound("test")
}

func (r *fakeTests) Update(ctx context.Context, test *models.Test) error {
	if _, ok := r.f.tests[test.ID]; !ok {
		return notFound("test")
	}
	r.f.tests[test.ID] = test
	return nil
}

func (r *fakeTests) Delete(ctx context.Context, id uint) error {
	if _, ok := r.f.tests[id]; !ok {
		return notFound("test")
	}
	delete(r.f.tests, id)
	return nil
}

func (r *fakeTests) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	var tests []*models.Test
	for _, t := range r.f.tests {
		if filters.Title != nil && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(*filters.Title)) {
			continue
		}
		tests = append(tests, t)
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].ID < tests[j].ID })
	return tests, int64(len(tests)), nil
}

func (r *fakeTests) GetStartedByUser(ctx context.Context, userID uint) ([]*models.Test, error) {
	seen := make(map[uint]bool)
	var tests []*models.Test
	for _, a := range r.f.answers {
		if a.UserID != userID || seen[a.TestID] {
			continue
		}
		seen[a.TestID] = true
		if t, ok := r.f.tests[a.TestID]; ok {
			tests = append(tests, t)
		}
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].ID < tests[j].ID })
	return tests, nil
}

func (r *fakeTests) ExistsByTitle(ctx context.Context, title string, excludeID *uint) (bool, error) {
	for _, t := range r.f.tests {
		if t.Title == title && (excludeID == nil || t.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

// ===== QUESTIONS =====

type fakeQuestions struct{ f *fakeRepo }

func (r *fakeQuestions) Create(ctx context.Context, q *models.Question) error {
	q.RefreshFingerprint()
	q.ID = r.f.id()
	r.f.questions[q.ID] = q
	return nil
}

func (r *fakeQuestions) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	q, ok := r.f.questions[id]
	if !ok {
		return nil, notFound("question")
	}
	return q, nil
}

func (r *fakeQuestions) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	var out []*models.Question
	for _, id := range ids {
		if q, ok := r.f.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeQuestions) Update(ctx context.Context, q *models.Question) error {
	if _, ok := r.f.questions[q.ID]; !ok {
		return notFound("question")
	}
	q.RefreshFingerprint()
	r.f.questions[q.ID] = q
	return nil
}

func (r *fakeQuestions) Delete(ctx context.Context, id uint) error {
	if _, ok := r.f.questions[id]; !ok {
		return notFound("question")
	}
	delete(r.f.questions, id)
	return nil
}

func (r *fakeQuestions) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	var out []*models.Question
	for _, q := range r.f.questions {
		if filters.Type != nil && q.Type != *filters.Type {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeQuestions) FindByFingerprint(ctx context.Context, fingerprint string) ([]*models.Question, error) {
	var out []*models.Question
	for _, q := range r.f.questions {
		if q.Fingerprint == fingerprint {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== TEST QUESTION LINKS =====

type fakeLinks struct{ f *fakeRepo }

func (r *fakeLinks) byTest(testID uint) []*models.TestQuestion {
	var out []*models.TestQuestion
	for _, l := range r.f.links {
		if l.TestID == testID {
			out = append(out, l)
		}
	}
	return out
}

func (r *fakeLinks) Create(ctx context.Context, link *models.TestQuestion) error {
	link.ID = r.f.id()
	r.f.links[link.ID] = link
	return nil
}

func (r *fakeLinks) Save(ctx context.Context, link *models.TestQuestion) error {
	if _, ok := r.f.links[link.ID]; !ok {
		return notFound("test question link")
	}
	r.f.links[link.ID] = link
	return nil
}

func (r *fakeLinks) Delete(ctx context.Context, id uint) error {
	if _, ok := r.f.links[id]; !ok {
		return notFound("test question link")
	}
	delete(r.f.links, id)
	return nil
}

func (r *fakeLinks) GetByTestAndQuestion(ctx context.Context, testID, questionID uint) (*models.TestQuestion, error) {
	for _, l := range r.f.links {
		if l.TestID == testID && l.QuestionID == questionID {
			return l, nil
		}
	}
	return nil, notFound("test question link")
}

func (r *fakeLinks) GetByTestOrdered(ctx context.Context, testID uint) ([]*models.TestQuestion, error) {
	out := r.byTest(testID)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeLinks) GetByTestOrderedWithQuestions(ctx context.Context, testID uint) ([]*models.TestQuestion, error) {
	out, _ := r.GetByTestOrdered(ctx, testID)
	for _, l := range out {
		if q, ok := r.f.questions[l.QuestionID]; ok {
			l.Question = q
		}
	}
	return out, nil
}

func (r *fakeLinks) ListFromOrder(ctx context.Context, testID uint, from int, excludeID uint) ([]*models.TestQuestion, error) {
	var out []*models.TestQuestion
	for _, l := range r.byTest(testID) {
		if l.Order >= from && l.ID != excludeID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order > out[j].Order })
	return out, nil
}

func (r *fakeLinks) ListAfterOrder(ctx context.Context, testID uint, after int) ([]*models.TestQuestion, error) {
	var out []*models.TestQuestion
	for _, l := range r.byTest(testID) {
		if l.Order > after {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeLinks) UpdateOrder(ctx context.Context, linkID uint, order int) error {
	l, ok := r.f.links[linkID]
	if !ok {
		return notFound("test question link")
	}
	// The real table enforces unique (test_id, "order"); surface violations
	// here so ordering bugs fail tests instead of passing silently.
	for _, other := range r.f.links {
		if other.ID != linkID && other.TestID == l.TestID && other.Order == order {
			return fmt.Errorf("duplicate order %d for test %d", order, l.TestID)
		}
	}
	l.Order = order
	return nil
}

func (r *fakeLinks) HasOrderConflict(ctx context.Context, testID uint, order int, excludeID uint) (bool, error) {
	for _, l := range r.byTest(testID) {
		if l.Order == order && l.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLinks) Exists(ctx context.Context, testID, questionID uint) (bool, error) {
	_, err := r.GetByTestAndQuestion(ctx, testID, questionID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *fakeLinks) CountByQuestion(ctx context.Context, questionID uint) (int64, error) {
	var n int64
	for _, l := range r.f.links {
		if l.QuestionID == questionID {
			n++
		}
	}
	return n, nil
}

func (r *fakeLinks) CountByTest(ctx context.Context, testID uint) (int64, error) {
	return int64(len(r.byTest(testID))), nil
}

func (r *fakeLinks) DeleteByTest(ctx context.Context, testID uint) error {
	for id, l := range r.f.links {
		if l.TestID == testID {
			delete(r.f.links, id)
		}
	}
	return nil
}

// ===== ANSWERS =====

type fakeAnswers struct{ f *fakeRepo }

func (r *fakeAnswers) Upsert(ctx context.Context, answer *models.UserAnswer) error {
	for _, a := range r.f.answers {
		if a.UserID == answer.UserID && a.TestID == answer.TestID && a.QuestionID == answer.QuestionID {
			a.Answer = answer.Answer
			a.IsCorrect = answer.IsCorrect
			a.IsVerified = answer.IsVerified
			*answer = *a
			return nil
		}
	}
	answer.ID = r.f.id()
	r.f.answers[answer.ID] = answer
	return nil
}

func (r *fakeAnswers) Save(ctx context.Context, answer *models.UserAnswer) error {
	if _, ok := r.f.answers[answer.ID]; !ok {
		return notFound("answer")
	}
	r.f.answers[answer.ID] = answer
	return nil
}

func (r *fakeAnswers) GetByID(ctx context.Context, id uint) (*models.UserAnswer, error) {
	a, ok := r.f.answers[id]
	if !ok {
		return nil, notFound("answer")
	}
	return a, nil
}

func (r *fakeAnswers) GetByTriple(ctx context.Context, userID, testID, questionID uint) (*models.UserAnswer, error) {
	for _, a := range r.f.answers {
		if a.UserID == userID && a.TestID == testID && a.QuestionID == questionID {
			return a, nil
		}
	}
	return nil, notFound("answer")
}

func (r *fakeAnswers) ListByUserAndTest(ctx context.Context, userID, testID uint) ([]*models.UserAnswer, error) {
	var out []*models.UserAnswer
	for _, a := range r.f.answers {
		if a.UserID == userID && a.TestID == testID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAnswers) ListByQuestion(ctx context.Context, questionID uint, userID *uint) ([]*models.UserAnswer, error) {
	var out []*models.UserAnswer
	for _, a := range r.f.answers {
		if a.QuestionID != questionID {
			continue
		}
		if userID != nil && a.UserID != *userID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== RESULTS =====

type fakeResults struct{ f *fakeRepo }

func (r *fakeResults) Create(ctx context.Context, result *models.TestResult) error {
	result.ID = r.f.id()
	r.f.results[result.ID] = result
	return nil
}

func (r *fakeResults) Save(ctx context.Context, result *models.TestResult) error {
	if _, ok := r.f.results[result.ID]; !ok {
		return notFound("result")
	}
	r.f.results[result.ID] = result
	return nil
}

func (r *fakeResults) GetByUserAndTest(ctx context.Context, userID, testID uint) (*models.TestResult, error) {
	for _, res := range r.f.results {
		if res.UserID == userID && res.TestID == testID {
			return res, nil
		}
	}
	return nil, notFound("result")
}

func (r *fakeResults) GetByUserAndTestForUpdate(ctx context.Context, userID, testID uint) (*models.TestResult, error) {
	return r.GetByUserAndTest(ctx, userID, testID)
}

func (r *fakeResults) ListByUser(ctx context.Context, userID uint) ([]*models.TestResult, error) {
	var out []*models.TestResult
	for _, res := range r.f.results {
		if res.UserID == userID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== USERS =====

type fakeUsers struct{ f *fakeRepo }

func (r *fakeUsers) Create(ctx context.Context, user *models.User) error {
	user.ID = r.f.id()
	r.f.users[user.ID] = user
	return nil
}

func (r *fakeUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	u, ok := r.f.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return u, nil
}

func (r *fakeUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range r.f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, notFound("user")
}
