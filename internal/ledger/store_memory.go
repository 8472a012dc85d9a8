package ledger

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pairKey struct {
	userID     string
	questionID int64
}

type memoryStore struct {
	mu      sync.RWMutex
	records map[pairKey]Record
	now     func() time.Time
}

// NewMemoryStore returns a process-local ledger. It is the test double for
// code written against Store; the service itself always runs on SQL.
func NewMemoryStore() Store {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) Store {
	return &memoryStore{records: map[pairKey]Record{}, now: now}
}

func (m *memoryStore) UpsertFailure(_ context.Context, userID string, quizID, questionID, categoryID int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().Truncate(time.Second).UTC()
	k := pairKey{userID, questionID}
	r, ok := m.records[k]
	if !ok {
		r = Record{ID: uuid.NewString(), UserID: userID, QuestionID: questionID, CreatedAt: now}
	}
	r.QuizID = quizID
	r.CategoryID = categoryID
	r.ConsecutiveCorrect = 0
	r.IsActive = true
	r.LastAttemptAt = now
	m.records[k] = r
	return r, nil
}

func (m *memoryStore) RecordCorrectAnswer(_ context.Context, userID string, questionID int64, needed int) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{userID, questionID}
	r, ok := m.records[k]
	if !ok || !r.IsActive {
		return Progress{}, nil
	}
	r.ConsecutiveCorrect++
	if r.ConsecutiveCorrect >= needed {
		r.IsActive = false
	}
	r.LastAttemptAt = m.now().Truncate(time.Second).UTC()
	m.records[k] = r
	return progressAfterCorrect(r.ConsecutiveCorrect, needed), nil
}

func (m *memoryStore) RecordIncorrectAnswer(_ context.Context, userID string, questionID int64) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{userID, questionID}
	r, ok := m.records[k]
	if !ok || !r.IsActive {
		return Progress{}, nil
	}
	r.ConsecutiveCorrect = 0
	r.LastAttemptAt = m.now().Truncate(time.Second).UTC()
	m.records[k] = r
	return Progress{Found: true}, nil
}

func (m *memoryStore) Get(_ context.Context, userID string, questionID int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[pairKey{userID, questionID}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryStore) active(userID string, categoryID int64) []Record {
	var out []Record
	for _, r := range m.records {
		if r.UserID != userID || !r.IsActive {
			continue
		}
		if categoryID > 0 && r.CategoryID != categoryID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategoryID != out[j].CategoryID {
			return out[i].CategoryID < out[j].CategoryID
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}

func (m *memoryStore) ListActiveByUser(_ context.Context, userID string) ([]ActiveQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ActiveQuestion
	for _, r := range m.active(userID, 0) {
		out = append(out, ActiveQuestion{CategoryID: r.CategoryID, QuestionID: r.QuestionID})
	}
	return out, nil
}

func (m *memoryStore) CountActive(_ context.Context, userID string, categoryID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active(userID, categoryID)), nil
}

func (m *memoryStore) SampleActiveQuestionIDs(_ context.Context, userID string, categoryID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	recs := m.active(userID, categoryID)
	m.mu.RUnlock()

	rand.Shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.QuestionID)
	}
	return ids, nil
}

func (m *memoryStore) ActiveByCategory(_ context.Context, userID string) ([]CategoryCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CategoryCount
	for _, r := range m.active(userID, 0) {
		if n := len(out); n > 0 && out[n-1].CategoryID == r.CategoryID {
			out[n-1].Count++
			continue
		}
		out = append(out, CategoryCount{CategoryID: r.CategoryID, Count: 1})
	}
	return out, nil
}

func (m *memoryStore) TemplateQuizCandidates(_ context.Context, userID string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := map[int64]time.Time{}
	for _, r := range m.records {
		if r.UserID != userID {
			continue
		}
		if t, ok := latest[r.QuizID]; !ok || r.LastAttemptAt.After(t) {
			latest[r.QuizID] = r.LastAttemptAt
		}
	}
	ids := make([]int64, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := latest[ids[i]], latest[ids[j]]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

func (m *memoryStore) Report(_ context.Context) ([]ReportRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type key struct {
		user string
		cat  int64
	}
	agg := map[key]*ReportRow{}
	for _, r := range m.records {
		k := key{r.UserID, r.CategoryID}
		row, ok := agg[k]
		if !ok {
			row = &ReportRow{UserID: r.UserID, CategoryID: r.CategoryID}
			agg[k] = row
		}
		if r.IsActive {
			row.ActiveCount++
		} else {
			row.MasteredCount++
		}
	}
	out := make([]ReportRow, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (m *memoryStore) QuizStats(_ context.Context, quizID int64, top int) (QuizStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := QuizStats{QuizID: quizID}
	users := map[string]bool{}
	perQuestion := map[int64]map[string]bool{}
	for _, r := range m.records {
		if r.QuizID != quizID {
			continue
		}
		users[r.UserID] = true
		if perQuestion[r.QuestionID] == nil {
			perQuestion[r.QuestionID] = map[string]bool{}
		}
		perQuestion[r.QuestionID][r.UserID] = true
	}
	st.Users = len(users)
	st.FailedQuestions = len(perQuestion)
	if top <= 0 {
		return st, nil
	}
	for qid, us := range perQuestion {
		st.Top = append(st.Top, QuestionFailures{QuestionID: qid, UserCount: len(us)})
	}
	sort.Slice(st.Top, func(i, j int) bool {
		if st.Top[i].UserCount != st.Top[j].UserCount {
			return st.Top[i].UserCount > st.Top[j].UserCount
		}
		return st.Top[i].QuestionID < st.Top[j].QuestionID
	})
	if len(st.Top) > top {
		st.Top = st.Top[:top]
	}
	return st, nil
}
