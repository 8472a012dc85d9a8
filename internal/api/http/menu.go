package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/sessions"

	auth "github.com/mind-engage/mindengage-failedq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-failedq/internal/generator"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/rbac"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

const sessionName = "failedq-session"

const (
	msgLoginToTakeTest = "You must be logged in to take a failed questions test."
	msgNoFailed        = "No tienes preguntas falladas disponibles para esta categoría."
	msgNoTemplate      = "No se pudo encontrar un cuestionario como plantilla."
	msgGenerateFailed  = "No se pudo generar el test de preguntas falladas."
)

type menuCategory struct {
	ID    int64
	Title string
	Count int
}

type menuPage struct {
	Title      string
	LoggedIn   bool
	Flashes    []string
	Categories []menuCategory
	Total      int
	Settings   settings.Settings

	base string
}

func (p menuPage) StartURL(categoryID int64) string {
	return withQuery(p.base, "fq_action", "start_test", "category_id", strconv.FormatInt(categoryID, 10))
}

// GET /failed-questions
// GET /failed-questions?fq_action=start_test&category_id=N
func MenuHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.SubjectFromContext(ctx)
		if userID != "" && !rbac.Can(ctx, rbac.PermTake) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("fq_action") == "start_test" {
			startTest(d, w, r, userID)
			return
		}

		cfg, err := d.Settings.Get(ctx)
		if err != nil {
			d.Log.Error("load settings", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		page := menuPage{
			Title:    cfg.DisplayTitle,
			LoggedIn: userID != "",
			Settings: cfg,
			base:     menuBase(d, r),
		}
		page.Flashes = popFlashes(d.Sessions, w, r)
		if page.LoggedIn {
			page.Categories, page.Total, err = menuCategories(ctx, d, userID)
			if err != nil {
				d.Log.Error("list active failed questions", "user_id", userID, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}
		renderHTML(w, "menu", page)
	}
}

func menuCategories(ctx context.Context, d Deps, userID string) ([]menuCategory, int, error) {
	counts, err := d.Ledger.ActiveByCategory(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	out := make([]menuCategory, 0, len(counts))
	total := 0
	for _, c := range counts {
		title, err := d.Catalog.CategoryName(ctx, c.CategoryID)
		if err != nil {
			title = fmt.Sprintf("Categoría %d", c.CategoryID)
		}
		out = append(out, menuCategory{ID: c.CategoryID, Title: title, Count: c.Count})
		total += c.Count
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, total, nil
}

func startTest(d Deps, w http.ResponseWriter, r *http.Request, userID string) {
	menu := menuBase(d, r)
	categoryID := int64(settings.Intval(r.URL.Query().Get("category_id")))
	target, err := generateAndCache(r.Context(), d, userID, categoryID)
	if err != nil {
		msg, known := userMessage(err)
		if !known {
			d.Log.Error("generate remedial quiz", "user_id", userID, "category_id", categoryID, "error", err)
		}
		addFlash(d.Sessions, w, r, msg)
		http.Redirect(w, r, menu, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// POST /failed-questions/generate  category_id=N
func GenerateHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestValues(r)
		if err != nil {
			ajaxFail(w, http.StatusBadRequest, "bad request")
			return
		}
		userID := auth.SubjectFromContext(r.Context())
		categoryID := int64(settings.Intval(v.Get("category_id")))
		target, err := generateAndCache(r.Context(), d, userID, categoryID)
		switch {
		case err == nil:
			ajaxOK(w, map[string]string{"redirect": target})
		case errors.Is(err, lifecycle.ErrPermissionDenied):
			ajaxFail(w, http.StatusUnauthorized, msgLoginToTakeTest)
		default:
			msg, known := userMessage(err)
			if !known {
				d.Log.Error("generate remedial quiz", "user_id", userID, "category_id", categoryID, "error", err)
				ajaxFail(w, http.StatusInternalServerError, msg)
				return
			}
			ajaxFail(w, http.StatusOK, msg)
		}
	}
}

// generateAndCache returns the host URL that renders the new remedial quiz.
func generateAndCache(ctx context.Context, d Deps, userID string, categoryID int64) (string, error) {
	desc, err := d.Generator.Generate(ctx, userID, categoryID)
	if err != nil {
		return "", err
	}
	token, err := d.Cache.Put(ctx, desc)
	if err != nil {
		return "", fmt.Errorf("cache descriptor: %w", err)
	}
	return withQuery(d.HostQuizURL, "fq_quiz", token), nil
}

func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, lifecycle.ErrPermissionDenied):
		return msgLoginToTakeTest, true
	case errors.Is(err, generator.ErrNoFailedQuestions):
		return msgNoFailed, true
	case errors.Is(err, generator.ErrNoTemplateQuiz):
		return msgNoTemplate, true
	default:
		return msgGenerateFailed, false
	}
}

func menuBase(d Deps, r *http.Request) string {
	if d.MenuURL != "" {
		return d.MenuURL
	}
	return r.URL.Path
}

func addFlash(store sessions.Store, w http.ResponseWriter, r *http.Request, msg string) {
	if store == nil {
		return
	}
	session, _ := store.Get(r, sessionName)
	if session == nil {
		return
	}
	session.AddFlash(msg)
	_ = session.Save(r, w)
}

func popFlashes(store sessions.Store, w http.ResponseWriter, r *http.Request) []string {
	if store == nil {
		return nil
	}
	session, _ := store.Get(r, sessionName)
	if session == nil {
		return nil
	}
	flashes := session.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	_ = session.Save(r, w)
	out := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
