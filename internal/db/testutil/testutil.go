package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mind-engage/mindengage-failedq/internal/db"
)

// HostPrefix is the host table prefix used by every test database.
const HostPrefix = "wp_aysquiz_"

var seq atomic.Int64

// DB opens a private in-memory SQLite database with the add-on schema and the
// bootstrap host tables, closed when the test ends.
func DB(tb testing.TB) *sql.DB {
	tb.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	h, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	if err := db.EnsureHostSchema(ctx, h, HostPrefix); err != nil {
		tb.Fatalf("host schema: %v", err)
	}
	tb.Cleanup(func() { _ = h.Close() })
	return h
}

func SeedCategory(tb testing.TB, h *sql.DB, id int64, title string) {
	tb.Helper()
	if _, err := h.Exec(`INSERT INTO `+HostPrefix+`categories (id, title) VALUES ($1,$2)`, id, title); err != nil {
		tb.Fatalf("seed category: %v", err)
	}
}

func SeedQuestion(tb testing.TB, h *sql.DB, id, categoryID int64, text string) {
	tb.Helper()
	if _, err := h.Exec(`INSERT INTO `+HostPrefix+`questions (id, question, category_id) VALUES ($1,$2,$3)`, id, text, categoryID); err != nil {
		tb.Fatalf("seed question: %v", err)
	}
}

func SeedQuiz(tb testing.TB, h *sql.DB, id int64, title string, remedial bool) {
	tb.Helper()
	flag := 0
	if remedial {
		flag = 1
	}
	if _, err := h.Exec(`INSERT INTO `+HostPrefix+`quizes (id, title, is_failed_questions_quiz) VALUES ($1,$2,$3)`, id, title, flag); err != nil {
		tb.Fatalf("seed quiz: %v", err)
	}
}
