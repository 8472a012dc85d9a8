// Package host reads the host quiz platform's quiz, question and category
// tables. The add-on never writes to them.
package host

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("host record not found")

type Quiz struct {
	ID    int64
	Title string
	// IsFailedQuestionsQuiz is false when the host schema has no such column.
	IsFailedQuestionsQuiz bool
}

type Catalog interface {
	QuestionCategory(ctx context.Context, questionID int64) (int64, error)
	CategoryName(ctx context.Context, categoryID int64) (string, error)
	QuestionText(ctx context.Context, questionID int64) (string, error)
	Quiz(ctx context.Context, quizID int64) (Quiz, error)
}

type SQLCatalog struct {
	db     *sql.DB
	prefix string
}

func NewSQLCatalog(db *sql.DB, tablePrefix string) *SQLCatalog {
	return &SQLCatalog{db: db, prefix: tablePrefix}
}

func (c *SQLCatalog) table(name string) string { return c.prefix + name }

// QuestionCategory returns ErrNotFound for unknown questions and for
// questions without a category.
func (c *SQLCatalog) QuestionCategory(ctx context.Context, questionID int64) (int64, error) {
	var cat sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		`SELECT category_id FROM `+c.table("questions")+` WHERE id=$1`, questionID).Scan(&cat)
	if errors.Is(err, sql.ErrNoRows) || err == nil && (!cat.Valid || cat.Int64 <= 0) {
		return 0, fmt.Errorf("category of question %d: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return cat.Int64, nil
}

func (c *SQLCatalog) CategoryName(ctx context.Context, categoryID int64) (string, error) {
	var title string
	err := c.db.QueryRowContext(ctx,
		`SELECT title FROM `+c.table("categories")+` WHERE id=$1`, categoryID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
	}
	return title, err
}

func (c *SQLCatalog) QuestionText(ctx context.Context, questionID int64) (string, error) {
	var text string
	err := c.db.QueryRowContext(ctx,
		`SELECT question FROM `+c.table("questions")+` WHERE id=$1`, questionID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("question %d: %w", questionID, ErrNotFound)
	}
	return text, err
}

func (c *SQLCatalog) Quiz(ctx context.Context, quizID int64) (Quiz, error) {
	var title string
	err := c.db.QueryRowContext(ctx,
		`SELECT title FROM `+c.table("quizes")+` WHERE id=$1`, quizID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, fmt.Errorf("quiz %d: %w", quizID, ErrNotFound)
	}
	if err != nil {
		return Quiz{}, err
	}
	q := Quiz{ID: quizID, Title: title}

	// Older host installs lack the flag column; any error reads as "not flagged".
	var flag sql.NullInt64
	if err := c.db.QueryRowContext(ctx,
		`SELECT is_failed_questions_quiz FROM `+c.table("quizes")+` WHERE id=$1`, quizID).Scan(&flag); err == nil {
		q.IsFailedQuestionsQuiz = flag.Valid && flag.Int64 != 0
	}
	return q, nil
}
