package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-failedq/internal/host"
	"github.com/mind-engage/mindengage-failedq/internal/ledger"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

var (
	ErrNoFailedQuestions = errors.New("no active failed questions")
	ErrNoTemplateQuiz    = errors.New("no template quiz available")
)

const (
	MixedLabel  = "Mixto"
	Description = "Este test contiene tus preguntas falladas anteriormente."
)

// Descriptor is a remedial quiz: the template quiz lends its rendering and
// grading configuration, the rest is overridden.
type Descriptor struct {
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	QuestionIDs           []int64   `json:"question_ids"`
	TemplateQuizID        int64     `json:"template_quiz_id"`
	IsFailedQuestionsQuiz bool      `json:"is_failed_questions_quiz"`
	UserID                string    `json:"user_id"`
	CategoryID            int64     `json:"category_id"`
	CreatedAt             time.Time `json:"created_at"`
}

type Generator struct {
	Ledger   ledger.Store
	Catalog  host.Catalog
	Settings settings.Source
	Now      func() time.Time
}

// Generate builds a remedial quiz from the user's active failed questions.
// categoryID 0 means all categories.
func (g *Generator) Generate(ctx context.Context, userID string, categoryID int64) (Descriptor, error) {
	if userID == "" {
		return Descriptor{}, lifecycle.ErrPermissionDenied
	}
	cfg, err := g.Settings.Get(ctx)
	if err != nil {
		return Descriptor{}, fmt.Errorf("load settings: %w", err)
	}

	ids, err := g.Ledger.SampleActiveQuestionIDs(ctx, userID, categoryID, cfg.MaxQuestions)
	if err != nil {
		return Descriptor{}, fmt.Errorf("sample questions: %w", err)
	}
	if len(ids) == 0 {
		return Descriptor{}, ErrNoFailedQuestions
	}

	templateID, err := g.templateQuiz(ctx, userID)
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		Title:                 g.title(ctx, cfg.DisplayTitle, categoryID),
		Description:           Description,
		QuestionIDs:           ids,
		TemplateQuizID:        templateID,
		IsFailedQuestionsQuiz: true,
		UserID:                userID,
		CategoryID:            categoryID,
		CreatedAt:             g.now(),
	}, nil
}

func (g *Generator) templateQuiz(ctx context.Context, userID string) (int64, error) {
	candidates, err := g.Ledger.TemplateQuizCandidates(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("template candidates: %w", err)
	}
	for _, id := range candidates {
		_, err := g.Catalog.Quiz(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, host.ErrNotFound) {
			return 0, fmt.Errorf("template quiz %d: %w", id, err)
		}
	}
	return 0, ErrNoTemplateQuiz
}

func (g *Generator) title(ctx context.Context, base string, categoryID int64) string {
	if categoryID <= 0 {
		return base + " - " + MixedLabel
	}
	name, err := g.Catalog.CategoryName(ctx, categoryID)
	if err != nil || name == "" {
		name = fmt.Sprintf("Categoría %d", categoryID)
	}
	return base + " - " + name
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}
