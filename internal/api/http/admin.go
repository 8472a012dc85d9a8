package http

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-failedq/internal/host"
	"github.com/mind-engage/mindengage-failedq/internal/ledger"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

const quizTabTopN = 10

type reportRow struct {
	UserID        string `json:"user_id"`
	CategoryID    int64  `json:"category_id"`
	Category      string `json:"category"`
	ActiveCount   int    `json:"active_count"`
	MasteredCount int    `json:"mastered_count"`
}

type adminPage struct {
	Settings settings.Settings
	Rows     []reportRow
	Saved    bool
	SaveURL  string
}

// GET /admin/failed-questions
func AdminPageHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cfg, err := d.Settings.Get(ctx)
		if err != nil {
			d.Log.Error("load settings", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		rows, err := reportRows(ctx, d.Ledger, d.Catalog)
		if err != nil {
			d.Log.Error("build report", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		renderHTML(w, "admin", adminPage{
			Settings: cfg,
			Rows:     rows,
			Saved:    r.URL.Query().Get("saved") == "1",
			SaveURL:  strings.TrimSuffix(r.URL.Path, "/") + "/settings",
		})
	}
}

// POST /admin/failed-questions/settings
// Only the submitted keys are stored; omitted keys fall back to defaults.
func SaveSettingsHandler(s SettingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestValues(r)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := s.Save(r.Context(), settings.FromForm(v)); err != nil {
			http.Error(w, "save settings failed", http.StatusInternalServerError)
			return
		}
		if isJSON(r) || r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
			ajaxOK(w, "Settings saved successfully")
			return
		}
		http.Redirect(w, r, path.Dir(r.URL.Path)+"?saved=1", http.StatusSeeOther)
	}
}

// GET /admin/failed-questions/report
func ReportHandler(store ledger.Store, catalog host.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := reportRows(r.Context(), store, catalog)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// reportRows resolves category names and orders rows by user, then category name.
func reportRows(ctx context.Context, store ledger.Store, catalog host.Catalog) ([]reportRow, error) {
	raw, err := store.Report(ctx)
	if err != nil {
		return nil, err
	}
	names := map[int64]string{}
	out := make([]reportRow, 0, len(raw))
	for _, rr := range raw {
		name, ok := names[rr.CategoryID]
		if !ok {
			if name, err = catalog.CategoryName(ctx, rr.CategoryID); err != nil {
				name = fmt.Sprintf("Categoría %d", rr.CategoryID)
			}
			names[rr.CategoryID] = name
		}
		out = append(out, reportRow{
			UserID:        rr.UserID,
			CategoryID:    rr.CategoryID,
			Category:      name,
			ActiveCount:   rr.ActiveCount,
			MasteredCount: rr.MasteredCount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// GET /admin/failed-questions/events?limit=N
func EventsHandler(audit AuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := settings.Intval(r.URL.Query().Get("limit"))
		entries, err := audit.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

type topQuestion struct {
	QuestionID int64  `json:"question_id"`
	Question   string `json:"question"`
	UserCount  int    `json:"user_count"`
}

type quizTab struct {
	Stats ledger.QuizStats `json:"stats"`
	Top   []topQuestion    `json:"top_questions"`
}

// GET /admin/quizzes/{quizID}/failed-questions[?format=json]
func QuizTabHandler(store ledger.Store, catalog host.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := strconv.ParseInt(chi.URLParam(r, "quizID"), 10, 64)
		if err != nil || quizID <= 0 {
			http.Error(w, "bad quiz id", http.StatusBadRequest)
			return
		}
		stats, err := store.QuizStats(r.Context(), quizID, quizTabTopN)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		tab := quizTab{Stats: stats, Top: make([]topQuestion, 0, len(stats.Top))}
		for _, q := range stats.Top {
			text, err := catalog.QuestionText(r.Context(), q.QuestionID)
			if err != nil {
				text = fmt.Sprintf("#%d", q.QuestionID)
			}
			tab.Top = append(tab.Top, topQuestion{
				QuestionID: q.QuestionID,
				Question:   truncateWords(text, 20),
				UserCount:  q.UserCount,
			})
		}
		if r.URL.Query().Get("format") == "json" {
			writeJSON(w, http.StatusOK, tab)
			return
		}
		renderHTML(w, "quiz_tab", tab)
	}
}
