package ledger

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("failed question record not found")

// Store is the failed-question ledger. categoryID 0 means "all categories"
// wherever a category filter is accepted.
type Store interface {
	// UpsertFailure is the only operation that inserts rows. An existing
	// record is reactivated with its counter reset.
	UpsertFailure(ctx context.Context, userID string, quizID, questionID, categoryID int64) (Record, error)
	// RecordCorrectAnswer increments the counter of an active record and
	// deactivates it once the counter reaches needed. No active record: Found=false.
	RecordCorrectAnswer(ctx context.Context, userID string, questionID int64, needed int) (Progress, error)
	// RecordIncorrectAnswer resets the counter of an active record. It never inserts.
	RecordIncorrectAnswer(ctx context.Context, userID string, questionID int64) (Progress, error)

	Get(ctx context.Context, userID string, questionID int64) (Record, error)
	ListActiveByUser(ctx context.Context, userID string) ([]ActiveQuestion, error)
	CountActive(ctx context.Context, userID string, categoryID int64) (int, error)
	// SampleActiveQuestionIDs draws up to limit distinct active question ids
	// uniformly at random from the full active set.
	SampleActiveQuestionIDs(ctx context.Context, userID string, categoryID int64, limit int) ([]int64, error)
	ActiveByCategory(ctx context.Context, userID string) ([]CategoryCount, error)
	// TemplateQuizCandidates lists quizzes referenced by the user's records,
	// most recently touched first.
	TemplateQuizCandidates(ctx context.Context, userID string) ([]int64, error)

	Report(ctx context.Context) ([]ReportRow, error)
	QuizStats(ctx context.Context, quizID int64, top int) (QuizStats, error)
}
