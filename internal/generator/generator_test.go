package generator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-failedq/internal/db/testutil"
	"github.com/mind-engage/mindengage-failedq/internal/generator"
	"github.com/mind-engage/mindengage-failedq/internal/host"
	"github.com/mind-engage/mindengage-failedq/internal/ledger"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

func newGenerator(t *testing.T) (*generator.Generator, ledger.Store, *settings.Repo) {
	t.Helper()
	h := testutil.DB(t)
	testutil.SeedCategory(t, h, 1, "Historia")
	testutil.SeedCategory(t, h, 2, "Ciencia")
	testutil.SeedQuiz(t, h, 5, "Examen", false)

	l := ledger.NewSQLStore(h)
	s := settings.NewRepo(h)
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &generator.Generator{
		Ledger:   l,
		Catalog:  host.NewSQLCatalog(h, testutil.HostPrefix),
		Settings: s,
		Now:      func() time.Time { return fixed },
	}, l, s
}

func TestGenerateCategory(t *testing.T) {
	ctx := context.Background()
	g, l, _ := newGenerator(t)
	for _, q := range []int64{10, 11, 12} {
		_, err := l.UpsertFailure(ctx, "u1", 5, q, 1)
		require.NoError(t, err)
	}
	_, err := l.UpsertFailure(ctx, "u1", 5, 20, 2)
	require.NoError(t, err)

	d, err := g.Generate(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, "Test de preguntas falladas - Historia", d.Title)
	assert.Equal(t, generator.Description, d.Description)
	assert.ElementsMatch(t, []int64{10, 11, 12}, d.QuestionIDs)
	assert.Equal(t, int64(5), d.TemplateQuizID)
	assert.True(t, d.IsFailedQuestionsQuiz)
	assert.Equal(t, "u1", d.UserID)
}

func TestGenerateMixedHonoursMaxQuestions(t *testing.T) {
	ctx := context.Background()
	g, l, s := newGenerator(t)
	one := 1
	require.NoError(t, s.Save(ctx, settings.Partial{MaxQuestions: &one}))
	_, err := l.UpsertFailure(ctx, "u1", 5, 10, 1)
	require.NoError(t, err)
	_, err = l.UpsertFailure(ctx, "u1", 5, 20, 2)
	require.NoError(t, err)

	d, err := g.Generate(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, "Test de preguntas falladas - Mixto", d.Title)
	require.Len(t, d.QuestionIDs, 1)
	assert.Contains(t, []int64{10, 20}, d.QuestionIDs[0])
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()
	g, l, _ := newGenerator(t)

	_, err := g.Generate(ctx, "", 0)
	assert.ErrorIs(t, err, lifecycle.ErrPermissionDenied)

	_, err = g.Generate(ctx, "u1", 0)
	assert.ErrorIs(t, err, generator.ErrNoFailedQuestions)

	_, err = l.UpsertFailure(ctx, "u1", 5, 10, 1)
	require.NoError(t, err)
	_, err = g.Generate(ctx, "u1", 2)
	assert.ErrorIs(t, err, generator.ErrNoFailedQuestions)

	// every record points at a quiz the host no longer has
	_, err = l.UpsertFailure(ctx, "u2", 99, 10, 1)
	require.NoError(t, err)
	_, err = g.Generate(ctx, "u2", 0)
	assert.ErrorIs(t, err, generator.ErrNoTemplateQuiz)
}

func TestTemplateSkipsDeletedQuiz(t *testing.T) {
	ctx := context.Background()
	g, l, _ := newGenerator(t)
	_, err := l.UpsertFailure(ctx, "u1", 5, 10, 1)
	require.NoError(t, err)
	_, err = l.UpsertFailure(ctx, "u1", 99, 11, 1)
	require.NoError(t, err)

	d, err := g.Generate(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), d.TemplateQuizID)
}
