package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SQLStore works against both SQLite and Postgres; every statement uses $N
// placeholders and ON CONFLICT upserts, which both dialects accept.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// WithClock overrides the time source used for timestamps.
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	s.now = now
	return s
}

const recordColumns = `id,user_id,quiz_id,question_id,category_id,consecutive_correct,is_active,last_attempt_at,created_at`

func (s *SQLStore) UpsertFailure(ctx context.Context, userID string, quizID, questionID, categoryID int64) (Record, error) {
	// One statement so concurrent failures for the same pair cannot insert twice.
	row := s.db.QueryRowContext(ctx, `INSERT INTO failed_questions (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,0,TRUE,$6,$6)
		ON CONFLICT (user_id, question_id) DO UPDATE SET
			consecutive_correct=0,
			is_active=TRUE,
			quiz_id=EXCLUDED.quiz_id,
			category_id=EXCLUDED.category_id,
			last_attempt_at=EXCLUDED.last_attempt_at
		RETURNING `+recordColumns,
		uuid.NewString(), userID, quizID, questionID, categoryID, s.now().Unix())
	return scanRecord(row)
}

func (s *SQLStore) RecordCorrectAnswer(ctx context.Context, userID string, questionID int64, needed int) (Progress, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `UPDATE failed_questions SET
			consecutive_correct=consecutive_correct+1,
			is_active=CASE WHEN consecutive_correct+1 >= $1 THEN FALSE ELSE TRUE END,
			last_attempt_at=$2
		WHERE user_id=$3 AND question_id=$4 AND is_active=TRUE
		RETURNING consecutive_correct`,
		needed, s.now().Unix(), userID, questionID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, err
	}
	return progressAfterCorrect(count, needed), nil
}

func (s *SQLStore) RecordIncorrectAnswer(ctx context.Context, userID string, questionID int64) (Progress, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE failed_questions
		SET consecutive_correct=0, last_attempt_at=$1
		WHERE user_id=$2 AND question_id=$3 AND is_active=TRUE`,
		s.now().Unix(), userID, questionID)
	if err != nil {
		return Progress{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Progress{}, err
	}
	return Progress{Found: n > 0}, nil
}

func (s *SQLStore) Get(ctx context.Context, userID string, questionID int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM failed_questions
		WHERE user_id=$1 AND question_id=$2`, userID, questionID)
	return scanRecord(row)
}

func (s *SQLStore) ListActiveByUser(ctx context.Context, userID string) ([]ActiveQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category_id, question_id FROM failed_questions
		WHERE user_id=$1 AND is_active=TRUE
		ORDER BY category_id, question_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActiveQuestion
	for rows.Next() {
		var a ActiveQuestion
		if err := rows.Scan(&a.CategoryID, &a.QuestionID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountActive(ctx context.Context, userID string, categoryID int64) (int, error) {
	q := `SELECT COUNT(*) FROM failed_questions WHERE user_id=$1 AND is_active=TRUE`
	args := []any{userID}
	if categoryID > 0 {
		q += ` AND category_id=$2`
		args = append(args, categoryID)
	}
	var n int
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

func (s *SQLStore) SampleActiveQuestionIDs(ctx context.Context, userID string, categoryID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := `SELECT question_id FROM failed_questions WHERE user_id=$1 AND is_active=TRUE`
	args := []any{userID, limit}
	if categoryID > 0 {
		q += ` AND category_id=$3`
		args = append(args, categoryID)
	}
	q += ` ORDER BY RANDOM() LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) ActiveByCategory(ctx context.Context, userID string) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category_id, COUNT(*) FROM failed_questions
		WHERE user_id=$1 AND is_active=TRUE
		GROUP BY category_id
		ORDER BY category_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.CategoryID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) TemplateQuizCandidates(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT quiz_id FROM failed_questions
		WHERE user_id=$1
		GROUP BY quiz_id
		ORDER BY MAX(last_attempt_at) DESC, quiz_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) Report(ctx context.Context) ([]ReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, category_id,
			SUM(CASE WHEN is_active THEN 1 ELSE 0 END),
			SUM(CASE WHEN is_active THEN 0 ELSE 1 END)
		FROM failed_questions
		GROUP BY user_id, category_id
		ORDER BY user_id, category_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportRow
	for rows.Next() {
		var r ReportRow
		if err := rows.Scan(&r.UserID, &r.CategoryID, &r.ActiveCount, &r.MasteredCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) QuizStats(ctx context.Context, quizID int64, top int) (QuizStats, error) {
	st := QuizStats{QuizID: quizID}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT question_id), COUNT(DISTINCT user_id)
		FROM failed_questions WHERE quiz_id=$1`, quizID).Scan(&st.FailedQuestions, &st.Users); err != nil {
		return QuizStats{}, err
	}
	if top <= 0 {
		return st, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT question_id, COUNT(DISTINCT user_id) AS user_count
		FROM failed_questions WHERE quiz_id=$1
		GROUP BY question_id
		ORDER BY user_count DESC, question_id
		LIMIT $2`, quizID, top)
	if err != nil {
		return QuizStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var q QuestionFailures
		if err := rows.Scan(&q.QuestionID, &q.UserCount); err != nil {
			return QuizStats{}, err
		}
		st.Top = append(st.Top, q)
	}
	return st, rows.Err()
}

func scanRecord(row *sql.Row) (Record, error) {
	var r Record
	var last, created int64
	if err := row.Scan(&r.ID, &r.UserID, &r.QuizID, &r.QuestionID, &r.CategoryID,
		&r.ConsecutiveCorrect, &r.IsActive, &last, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	r.LastAttemptAt = time.Unix(last, 0).UTC()
	r.CreatedAt = time.Unix(created, 0).UTC()
	return r, nil
}
