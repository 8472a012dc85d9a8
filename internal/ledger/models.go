package ledger

import "time"

// Record is one row per (user, question) pair that has ever been failed.
type Record struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	QuizID             int64     `json:"quiz_id"`
	QuestionID         int64     `json:"question_id"`
	CategoryID         int64     `json:"category_id"`
	ConsecutiveCorrect int       `json:"consecutive_correct"`
	IsActive           bool      `json:"is_active"`
	LastAttemptAt      time.Time `json:"last_attempt_at"`
	CreatedAt          time.Time `json:"created_at"`
}

// Progress is the outcome of applying one answer to an active record.
// Found is false when there was no active record to update.
type Progress struct {
	Found              bool `json:"found"`
	ConsecutiveCorrect int  `json:"consecutive_correct"`
	Mastered           bool `json:"mastered"`
	Remaining          int  `json:"remaining"`
}

type ActiveQuestion struct {
	CategoryID int64 `json:"category_id"`
	QuestionID int64 `json:"question_id"`
}

type CategoryCount struct {
	CategoryID int64 `json:"category_id"`
	Count      int   `json:"count"`
}

// ReportRow aggregates one user's records in one category.
type ReportRow struct {
	UserID        string `json:"user_id"`
	CategoryID    int64  `json:"category_id"`
	ActiveCount   int    `json:"active_count"`
	MasteredCount int    `json:"mastered_count"`
}

type QuestionFailures struct {
	QuestionID int64 `json:"question_id"`
	UserCount  int   `json:"user_count"`
}

// QuizStats summarizes failures first observed (or last re-observed) in a quiz.
type QuizStats struct {
	QuizID          int64              `json:"quiz_id"`
	FailedQuestions int                `json:"total_failed_questions"`
	Users           int                `json:"total_users"`
	Top             []QuestionFailures `json:"top_questions"`
}

func progressAfterCorrect(count, needed int) Progress {
	p := Progress{Found: true, ConsecutiveCorrect: count}
	if count >= needed {
		p.Mastered = true
		return p
	}
	p.Remaining = needed - count
	return p
}
