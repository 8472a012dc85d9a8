package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/mind-engage/mindengage-failedq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-failedq/internal/db/testutil"
	"github.com/mind-engage/mindengage-failedq/internal/eventlog"
	"github.com/mind-engage/mindengage-failedq/internal/events"
	"github.com/mind-engage/mindengage-failedq/internal/generator"
	"github.com/mind-engage/mindengage-failedq/internal/host"
	"github.com/mind-engage/mindengage-failedq/internal/ledger"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/logger"
	"github.com/mind-engage/mindengage-failedq/internal/quizcache"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

type testEnv struct {
	db       *sql.DB
	ledger   ledger.Store
	settings *settings.Repo
	auth     *auth.AuthService
	router   chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	h := testutil.DB(t)
	testutil.SeedCategory(t, h, 1, "Historia")
	testutil.SeedCategory(t, h, 2, "Ciencia")
	testutil.SeedQuestion(t, h, 10, 1, "¿En qué año terminó la Segunda Guerra Mundial?")
	testutil.SeedQuestion(t, h, 11, 1, "¿Quién pintó Las Meninas?")
	testutil.SeedQuestion(t, h, 20, 2, "¿Cuál es el símbolo químico del oro?")
	testutil.SeedQuiz(t, h, 5, "Examen", false)

	l := ledger.NewSQLStore(h)
	cat := host.NewSQLCatalog(h, testutil.HostPrefix)
	st := settings.NewRepo(h)
	u := &lifecycle.Updater{Ledger: l, Catalog: cat, Settings: st, Log: logger.NewNop()}
	audit := eventlog.NewRepo(h)
	a := auth.NewAuthService("test-secret")

	r := chi.NewRouter()
	r.Use(auth.Authenticate(a))
	Mount(r, Deps{
		Ledger:      l,
		Catalog:     cat,
		Settings:    st,
		Updater:     u,
		Generator:   &generator.Generator{Ledger: l, Catalog: cat, Settings: st},
		Cache:       quizcache.NewMemoryStore(time.Hour),
		Dispatcher:  events.NewDispatcher(u, audit, logger.NewNop()),
		Audit:       audit,
		Sessions:    sessions.NewCookieStore([]byte("test-session-key-0123456789abcdef")),
		Log:         logger.NewNop(),
		MenuURL:     "/failed-questions",
		HostQuizURL: "/quiz",
	})
	return &testEnv{db: h, ledger: l, settings: st, auth: a, router: r}
}

func (e *testEnv) token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := e.auth.IssueJWT(sub, role)
	require.NoError(t, err)
	return tok
}

type call struct {
	method  string
	target  string
	token   string
	json    string
	form    url.Values
	cookies []*http.Cookie
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch {
	case c.json != "":
		body = strings.NewReader(c.json)
	case c.form != nil:
		body = strings.NewReader(c.form.Encode())
	}
	req := httptest.NewRequest(c.method, c.target, body)
	switch {
	case c.json != "":
		req.Header.Set("Content-Type", "application/json")
	case c.form != nil:
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeAjax(t *testing.T, rec *httptest.ResponseRecorder) (bool, json.RawMessage) {
	t.Helper()
	var out struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out.Success, out.Data
}

func dataString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestCaptureMenuStartAndRender(t *testing.T) {
	e := newTestEnv(t)
	u1 := e.token(t, "u1", "")

	rec := e.do(t, call{method: http.MethodPost, target: "/hooks/ays_finish_quiz", token: u1,
		json: `{"quiz_id":5,"payload":{"questions_ids":[10,11,20],"correctness":[0,0,1]}}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ok, data := decodeAjax(t, rec)
	require.True(t, ok)
	var sum lifecycle.Summary
	require.NoError(t, json.Unmarshal(data, &sum))
	assert.Equal(t, 2, sum.Failed)

	rec = e.do(t, call{method: http.MethodGet, target: "/failed-questions", token: u1})
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Test Mixto")
	assert.Contains(t, page, "Historia")
	assert.Contains(t, page, "2 preguntas falladas")
	assert.Contains(t, page, "3 veces consecutivas")
	assert.NotContains(t, page, "Ciencia")

	rec = e.do(t, call{method: http.MethodGet, target: "/failed-questions?fq_action=start_test&category_id=1", token: u1})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/quiz", loc.Path)
	token := loc.Query().Get("fq_quiz")
	require.True(t, strings.HasPrefix(token, "fq_"), token)

	rec = e.do(t, call{method: http.MethodGet, target: "/remedial/" + token, token: u1})
	require.Equal(t, http.StatusOK, rec.Code)
	var ov struct {
		Title          string  `json:"title"`
		QuestionIDs    []int64 `json:"question_ids"`
		TemplateQuizID int64   `json:"template_quiz_id"`
		Remedial       bool    `json:"is_failed_questions_quiz"`
		ReturnURL      string  `json:"return_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ov))
	assert.Equal(t, "Test de preguntas falladas - Historia", ov.Title)
	assert.ElementsMatch(t, []int64{10, 11}, ov.QuestionIDs)
	assert.Equal(t, int64(5), ov.TemplateQuizID)
	assert.True(t, ov.Remedial)
	assert.Equal(t, "/failed-questions", ov.ReturnURL)

	rec = e.do(t, call{method: http.MethodGet, target: "/remedial/" + token, token: e.token(t, "u2", "")})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, call{method: http.MethodGet, target: "/remedial/fq_unknown", token: u1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartWithoutFailuresFlashesMessage(t *testing.T) {
	e := newTestEnv(t)
	u2 := e.token(t, "u2", "")

	rec := e.do(t, call{method: http.MethodGet, target: "/failed-questions?fq_action=start_test&category_id=2", token: u2})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/failed-questions", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = e.do(t, call{method: http.MethodGet, target: "/failed-questions", token: u2, cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, msgNoFailed)
	assert.Contains(t, page, "No tienes preguntas falladas disponibles. Realiza algunos cuestionarios")
}

func TestAnonymousMenu(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, call{method: http.MethodGet, target: "/failed-questions"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Debes iniciar sesión")
	assert.Contains(t, rec.Body.String(), "Test de preguntas falladas")

	rec = e.do(t, call{method: http.MethodGet, target: "/failed-questions?fq_action=start_test&category_id=0"})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = e.do(t, call{method: http.MethodGet, target: "/failed-questions", cookies: rec.Result().Cookies()})
	assert.Contains(t, rec.Body.String(), msgLoginToTakeTest)
}

func TestGenerateAjax(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.ledger.UpsertFailure(ctx, "u1", 5, 20, 2)
	require.NoError(t, err)

	rec := e.do(t, call{method: http.MethodPost, target: "/failed-questions/generate", token: e.token(t, "u1", ""),
		form: url.Values{"category_id": {"0"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	ok, data := decodeAjax(t, rec)
	require.True(t, ok)
	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, strings.HasPrefix(out["redirect"], "/quiz?fq_quiz=fq_"), out["redirect"])

	rec = e.do(t, call{method: http.MethodPost, target: "/failed-questions/generate", token: e.token(t, "u2", ""),
		json: `{"category_id":2}`})
	require.Equal(t, http.StatusOK, rec.Code)
	ok, data = decodeAjax(t, rec)
	assert.False(t, ok)
	assert.Equal(t, msgNoFailed, dataString(t, data))

	rec = e.do(t, call{method: http.MethodPost, target: "/failed-questions/generate", form: url.Values{}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProgress(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.ledger.UpsertFailure(context.Background(), "u1", 5, 10, 1)
	require.NoError(t, err)
	u1 := e.token(t, "u1", "")

	progress := func(form url.Values) (int, bool, string) {
		rec := e.do(t, call{method: http.MethodPost, target: "/failed-questions/progress", token: u1, form: form})
		ok, data := decodeAjax(t, rec)
		return rec.Code, ok, dataString(t, data)
	}

	code, ok, msg := progress(url.Values{"question_id": {"10"}, "is_correct": {"1"}})
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, ok)
	assert.Contains(t, msg, "¡Correcto!")
	assert.Contains(t, msg, "2 vez(ces)")

	_, ok, msg = progress(url.Values{"question_id": {"10"}, "is_correct": {"0"}})
	assert.True(t, ok)
	assert.Contains(t, msg, "Respuesta incorrecta")

	code, ok, msg = progress(url.Values{"question_id": {"0"}, "is_correct": {"1"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, ok)
	assert.Equal(t, "Invalid question ID.", msg)

	code, ok, msg = progress(url.Values{"question_id": {"99"}, "is_correct": {"1"}})
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, ok)
	assert.Equal(t, "Question not found in your failed questions list.", msg)
}

func TestHookCaptureVariants(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u1 := e.token(t, "u1", "")

	rec := e.do(t, call{method: http.MethodPost, target: "/hooks/quiz_maker_fq_capture_ajax", token: u1,
		form: url.Values{"quiz_id": {"5"}, "question_id": {"20"}, "is_correct": {"0"}, "user_id": {"u9"}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec1, err := e.ledger.Get(ctx, "u1", 20)
	require.NoError(t, err)
	assert.True(t, rec1.IsActive)
	_, err = e.ledger.Get(ctx, "u9", 20)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	rec = e.do(t, call{method: http.MethodPost, target: "/hooks/ays_finish_quiz", token: e.token(t, "svc", "service"),
		json: `{"user_id":"u9","quiz_id":5,"payload":{"question_id":11,"is_correct":false}}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err = e.ledger.Get(ctx, "u9", 11)
	assert.NoError(t, err)

	rec = e.do(t, call{method: http.MethodPost, target: "/hooks/ays_finish_quiz", token: u1,
		json: `{"quiz_id":0,"payload":{"question_id":11,"is_correct":false}}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, call{method: http.MethodPost, target: "/hooks/ays_finish_quiz", token: u1, json: `{`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, call{method: http.MethodPost, target: "/hooks/not_a_hook", token: u1,
		json: `{"quiz_id":5,"payload":{"question_id":11,"is_correct":false}}`})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, call{method: http.MethodPost, target: "/hooks/ays_finish_quiz",
		json: `{"user_id":"u1","quiz_id":5,"payload":{"question_id":11,"is_correct":false}}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, call{method: http.MethodGet, target: "/admin/failed-questions/events", token: e.token(t, "t1", "teacher")})
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []eventlog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	// Malformed bodies and unknown hooks never reach the dispatcher's log.
	require.Len(t, entries, 3)
	assert.Equal(t, "ays_finish_quiz", entries[0].Hook)
	assert.Contains(t, entries[0].DataJSON, "error")
	assert.Equal(t, "u9:5", entries[1].Key)
	assert.Equal(t, "quiz_maker_fq_capture_ajax", entries[2].Hook)
	assert.Equal(t, "u1:5", entries[2].Key)
}

func TestAdminAccess(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, call{method: http.MethodGet, target: "/admin/failed-questions"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = e.do(t, call{method: http.MethodGet, target: "/admin/failed-questions", token: e.token(t, "u1", "")})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, call{method: http.MethodGet, target: "/admin/failed-questions", token: e.token(t, "t1", "teacher")})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, call{method: http.MethodGet, target: "/admin/failed-questions", token: e.token(t, "admin", "admin")})
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Maximum Number of Questions")
	assert.Contains(t, page, `value="20"`)
	assert.Contains(t, page, "[quiz_maker_failed_questions]")
	assert.Contains(t, page, "No failed questions data found.")
}

func TestSaveSettingsKeepsOnlySubmittedKeys(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := e.token(t, "admin", "admin")

	rec := e.do(t, call{method: http.MethodPost, target: "/admin/failed-questions/settings", token: admin,
		form: url.Values{"max_questions": {"5"}, "shortcode_text": {"Repaso"}}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/failed-questions?saved=1", rec.Header().Get("Location"))
	cfg, err := e.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{MaxQuestions: 5, ConsecutiveNeeded: 3, DisplayTitle: "Repaso"}, cfg)

	rec = e.do(t, call{method: http.MethodPost, target: "/admin/failed-questions/settings", token: admin,
		json: `{"consecutive_correct_needed":"4"}`})
	require.Equal(t, http.StatusOK, rec.Code)
	ok, data := decodeAjax(t, rec)
	assert.True(t, ok)
	assert.Equal(t, "Settings saved successfully", dataString(t, data))
	cfg, err = e.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults().MaxQuestions, cfg.MaxQuestions)
	assert.Equal(t, 4, cfg.ConsecutiveNeeded)
}

func TestReportAndQuizTab(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for _, f := range []struct {
		user     string
		question int64
		category int64
	}{
		{"u2", 20, 2},
		{"u1", 10, 1},
		{"u1", 20, 2},
	} {
		_, err := e.ledger.UpsertFailure(ctx, f.user, 5, f.question, f.category)
		require.NoError(t, err)
	}
	_, err := e.ledger.RecordCorrectAnswer(ctx, "u1", 10, 1)
	require.NoError(t, err)
	teacher := e.token(t, "t1", "teacher")

	rec := e.do(t, call{method: http.MethodGet, target: "/admin/failed-questions/report", token: teacher})
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []reportRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, reportRow{UserID: "u1", CategoryID: 2, Category: "Ciencia", ActiveCount: 1}, rows[0])
	assert.Equal(t, reportRow{UserID: "u1", CategoryID: 1, Category: "Historia", MasteredCount: 1}, rows[1])
	assert.Equal(t, "u2", rows[2].UserID)

	rec = e.do(t, call{method: http.MethodGet, target: "/admin/quizzes/5/failed-questions?format=json", token: teacher})
	require.Equal(t, http.StatusOK, rec.Code)
	var tab quizTab
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tab))
	assert.Equal(t, 2, tab.Stats.FailedQuestions)
	assert.Equal(t, 2, tab.Stats.Users)
	require.Len(t, tab.Top, 2)
	assert.Equal(t, int64(20), tab.Top[0].QuestionID)
	assert.Equal(t, 2, tab.Top[0].UserCount)
	assert.Equal(t, "¿Cuál es el símbolo químico del oro?", tab.Top[0].Question)

	rec = e.do(t, call{method: http.MethodGet, target: "/admin/quizzes/5/failed-questions", token: teacher})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Most Failed Questions")

	rec = e.do(t, call{method: http.MethodGet, target: "/admin/quizzes/abc/failed-questions", token: teacher})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "uno dos", truncateWords("  uno   dos ", 20))
	assert.Equal(t, "a b…", truncateWords("a b c d", 2))
}
