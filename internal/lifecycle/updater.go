package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-failedq/internal/capture"
	"github.com/mind-engage/mindengage-failedq/internal/host"
	"github.com/mind-engage/mindengage-failedq/internal/ledger"
	"github.com/mind-engage/mindengage-failedq/internal/logger"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

var ErrPermissionDenied = errors.New("permission denied: no user")

// Summary counts what one completion event did to the ledger.
type Summary struct {
	QuizID   int64  `json:"quiz_id"`
	Decoder  string `json:"decoder"`
	Remedial bool   `json:"remedial"`
	Failed   int    `json:"failed"`
	Advanced int    `json:"advanced"`
	Mastered int    `json:"mastered"`
	Reset    int    `json:"reset"`
	Ignored  int    `json:"ignored"`
	Skipped  int    `json:"skipped"`
	Errors   int    `json:"errors"`
}

type Updater struct {
	Ledger   ledger.Store
	Catalog  host.Catalog
	Settings settings.Source
	Log      *logger.Logger
}

// Apply records one completion event. Per-question failures are logged and
// counted, never returned; only an anonymous user or an undecodable event
// aborts the whole event.
func (u *Updater) Apply(ctx context.Context, e capture.Event) (Summary, error) {
	if e.UserID == "" {
		return Summary{}, ErrPermissionDenied
	}
	c, err := e.Completion()
	if err != nil {
		return Summary{}, err
	}
	cfg, err := u.Settings.Get(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load settings: %w", err)
	}

	log := u.Log.With("hook", e.Hook, "user_id", e.UserID, "quiz_id", c.QuizID)
	sum := Summary{QuizID: c.QuizID, Decoder: c.Decoder}
	sum.Remedial = e.IsFailedQuestionsQuiz || u.isRemedialQuiz(ctx, log, c.QuizID, cfg.DisplayTitle)

	for _, a := range c.Answers {
		if sum.Remedial {
			u.applyMastery(ctx, log, e.UserID, a, cfg.ConsecutiveNeeded, &sum)
			continue
		}
		categoryID, err := u.Catalog.QuestionCategory(ctx, a.QuestionID)
		if err != nil {
			log.Warn("skipping question without category", "question_id", a.QuestionID, "error", err)
			sum.Skipped++
			continue
		}
		if !a.Correct {
			if _, err := u.Ledger.UpsertFailure(ctx, e.UserID, c.QuizID, a.QuestionID, categoryID); err != nil {
				log.Error("record failure", "question_id", a.QuestionID, "error", err)
				sum.Errors++
				continue
			}
			sum.Failed++
			continue
		}
		p, err := u.Ledger.RecordCorrectAnswer(ctx, e.UserID, a.QuestionID, cfg.ConsecutiveNeeded)
		if err != nil {
			log.Error("record correct answer", "question_id", a.QuestionID, "error", err)
			sum.Errors++
			continue
		}
		countCorrect(p, &sum)
	}

	log.Info("completion applied",
		"decoder", sum.Decoder, "remedial", sum.Remedial,
		"failed", sum.Failed, "advanced", sum.Advanced, "mastered", sum.Mastered,
		"skipped", sum.Skipped, "errors", sum.Errors)
	return sum, nil
}

// Remedial quizzes only move existing records towards mastery.
func (u *Updater) applyMastery(ctx context.Context, log *logger.Logger, userID string, a capture.Answer, needed int, sum *Summary) {
	if a.Correct {
		p, err := u.Ledger.RecordCorrectAnswer(ctx, userID, a.QuestionID, needed)
		if err != nil {
			log.Error("record correct answer", "question_id", a.QuestionID, "error", err)
			sum.Errors++
			return
		}
		countCorrect(p, sum)
		return
	}
	p, err := u.Ledger.RecordIncorrectAnswer(ctx, userID, a.QuestionID)
	if err != nil {
		log.Error("record incorrect answer", "question_id", a.QuestionID, "error", err)
		sum.Errors++
		return
	}
	if p.Found {
		sum.Reset++
	} else {
		sum.Ignored++
	}
}

func countCorrect(p ledger.Progress, sum *Summary) {
	switch {
	case !p.Found:
		sum.Ignored++
	case p.Mastered:
		sum.Mastered++
	default:
		sum.Advanced++
	}
}

// The host flag is not stored consistently across versions, so the title is
// checked too.
func (u *Updater) isRemedialQuiz(ctx context.Context, log *logger.Logger, quizID int64, displayTitle string) bool {
	q, err := u.Catalog.Quiz(ctx, quizID)
	if err != nil {
		log.Warn("quiz lookup failed", "error", err)
		return false
	}
	if q.IsFailedQuestionsQuiz {
		return true
	}
	return displayTitle != "" && strings.Contains(q.Title, displayTitle)
}
