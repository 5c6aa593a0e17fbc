package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testing-system/testing-service/internal/models"
)

func newOrderingFixture(t *testing.T) (*fakeRepo, TestQuestionService, *models.User, *models.Test) {
	t.Helper()
	repo := newFakeRepo()
	admin := repo.seedUser(models.RoleAdmin)
	test := repo.seedTest("Geography")
	svc := NewTestQuestionService(repo, testLogger(), testValidator(), nil)
	return repo, svc, admin, test
}

func seedChoiceQuestion(repo *fakeRepo, text string) *models.Question {
	return repo.seedQuestion(text, models.QuestionSingle, []string{"a", "b"}, []string{"a"})
}

func TestAddQuestion_AppendsWhenNoOrderGiven(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	q2 := seedChoiceQuestion(repo, "q2")

	link1, err := svc.AddQuestion(ctx, test.ID, q1.ID, nil, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, link1.Order)

	link2, err := svc.AddQuestion(ctx, test.ID, q2.ID, nil, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, link2.Order)

	assert.Equal(t, []int{0, 1}, repo.orders(test.ID))
}

func TestAddQuestion_ShiftsOccupantsUp(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	q2 := seedChoiceQuestion(repo, "q2")
	q3 := seedChoiceQuestion(repo, "q3")
	repo.seedLink(test.ID, q1.ID, 0)
	repo.seedLink(test.ID, q2.ID, 1)

	desired := 0
	link, err := svc.AddQuestion(ctx, test.ID, q3.ID, &desired, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, link.Order)

	assert.Equal(t, []int{0, 1, 2}, repo.orders(test.ID))
	assert.Equal(t, q3.ID, repo.questionAt(test.ID, 0))
	assert.Equal(t, q1.ID, repo.questionAt(test.ID, 1))
	assert.Equal(t, q2.ID, repo.questionAt(test.ID, 2))
}

func TestAddQuestion_ClampsOrderIntoRange(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	repo.seedLink(test.ID, q1.ID, 0)

	q2 := seedChoiceQuestion(repo, "q2")
	tooHigh := 99
	link, err := svc.AddQuestion(ctx, test.ID, q2.ID, &tooHigh, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, link.Order)

	q3 := seedChoiceQuestion(repo, "q3")
	negative := -5
	link, err = svc.AddQuestion(ctx, test.ID, q3.ID, &negative, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, link.Order)

	assert.Equal(t, []int{0, 1, 2}, repo.orders(test.ID))
}

func TestAddQuestion_RejectsDuplicateLink(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	repo.seedLink(test.ID, q1.ID, 0)

	_, err := svc.AddQuestion(ctx, test.ID, q1.ID, nil, admin.ID)
	assert.ErrorIs(t, err, ErrQuestionDuplicateLink)
	assert.Equal(t, []int{0}, repo.orders(test.ID))
}

func TestAddQuestion_RequiresAdmin(t *testing.T) {
	repo, svc, _, test := newOrderingFixture(t)
	ctx := context.Background()

	student := repo.seedUser(models.RoleStudent)
	q1 := seedChoiceQuestion(repo, "q1")

	_, err := svc.AddQuestion(ctx, test.ID, q1.ID, nil, student.ID)
	assert.True(t, IsPermissionDenied(err))
}

func TestAddQuestion_UnknownTestAndQuestion(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")

	_, err := svc.AddQuestion(ctx, 9999, q1.ID, nil, admin.ID)
	assert.ErrorIs(t, err, ErrTestNotFound)

	_, err = svc.AddQuestion(ctx, test.ID, 9999, nil, admin.ID)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestRemoveQuestion_ClosesGap(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	q2 := seedChoiceQuestion(repo, "q2")
	q3 := seedChoiceQuestion(repo, "q3")
	repo.seedLink(test.ID, q1.ID, 0)
	repo.seedLink(test.ID, q2.ID, 1)
	repo.seedLink(test.ID, q3.ID, 2)

	require.NoError(t, svc.RemoveQuestion(ctx, test.ID, q2.ID, admin.ID))

	assert.Equal(t, []int{0, 1}, repo.orders(test.ID))
	assert.Equal(t, q1.ID, repo.questionAt(test.ID, 0))
	assert.Equal(t, q3.ID, repo.questionAt(test.ID, 1))

	// The question itself survives; only the link is gone.
	_, ok := repo.questions[q2.ID]
	assert.True(t, ok)
}

func TestRemoveQuestion_NotLinked(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")

	err := svc.RemoveQuestion(ctx, test.ID, q1.ID, admin.ID)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestReorder_AppliesPermutation(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	q2 := seedChoiceQuestion(repo, "q2")
	q3 := seedChoiceQuestion(repo, "q3")
	repo.seedLink(test.ID, q1.ID, 0)
	repo.seedLink(test.ID, q2.ID, 1)
	repo.seedLink(test.ID, q3.ID, 2)

	require.NoError(t, svc.Reorder(ctx, test.ID, []uint{q3.ID, q1.ID, q2.ID}, admin.ID))

	assert.Equal(t, []int{0, 1, 2}, repo.orders(test.ID))
	assert.Equal(t, q3.ID, repo.questionAt(test.ID, 0))
	assert.Equal(t, q1.ID, repo.questionAt(test.ID, 1))
	assert.Equal(t, q2.ID, repo.questionAt(test.ID, 2))
}

func TestReorder_RejectsWrongLength(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	q2 := seedChoiceQuestion(repo, "q2")
	repo.seedLink(test.ID, q1.ID, 0)
	repo.seedLink(test.ID, q2.ID, 1)

	err := svc.Reorder(ctx, test.ID, []uint{q1.ID}, admin.ID)
	assert.True(t, IsValidation(err))
	assert.Equal(t, q1.ID, repo.questionAt(test.ID, 0))
	assert.Equal(t, q2.ID, repo.questionAt(test.ID, 1))
}

func TestReorder_RejectsForeignQuestion(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	q2 := seedChoiceQuestion(repo, "q2")
	repo.seedLink(test.ID, q1.ID, 0)

	err := svc.Reorder(ctx, test.ID, []uint{q2.ID}, admin.ID)
	assert.True(t, IsValidation(err))
}

func TestReorder_UnknownTest(t *testing.T) {
	_, svc, admin, _ := newOrderingFixture(t)

	err := svc.Reorder(context.Background(), 9999, nil, admin.ID)
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestGetOrderedQuestions_ReturnsPositionOrder(t *testing.T) {
	repo, svc, _, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	q2 := seedChoiceQuestion(repo, "q2")
	repo.seedLink(test.ID, q2.ID, 1)
	repo.seedLink(test.ID, q1.ID, 0)

	links, err := svc.GetOrderedQuestions(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, q1.ID, links[0].QuestionID)
	assert.Equal(t, q2.ID, links[1].QuestionID)
	require.NotNil(t, links[0].Question)
	assert.Equal(t, "q1", links[0].Question.Text)
}

func TestOrdering_RepeatedMutationsStayContiguous(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 6; i++ {
		q := seedChoiceQuestion(repo, "q")
		ids = append(ids, q.ID)
	}

	front := 0
	for _, id := range ids {
		_, err := svc.AddQuestion(ctx, test.ID, id, &front, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, contiguous(len(repo.orders(test.ID))), repo.orders(test.ID))
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RemoveQuestion(ctx, test.ID, ids[i], admin.ID))
		assert.Equal(t, contiguous(len(repo.orders(test.ID))), repo.orders(test.ID))
	}
}

func contiguous(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestAddQuestion_RollsBackOnFailure(t *testing.T) {
	repo, svc, admin, test := newOrderingFixture(t)
	ctx := context.Background()

	q1 := seedChoiceQuestion(repo, "q1")
	repo.seedLink(test.ID, q1.ID, 0)

	// Unknown question fails after the test lookup succeeded; the existing
	// layout must be untouched.
	_, err := svc.AddQuestion(ctx, test.ID, 9999, nil, admin.ID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTestNotFound))
	assert.Equal(t, []int{0}, repo.orders(test.ID))
}
