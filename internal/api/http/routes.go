package http

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	auth "github.com/mind-engage/mindengage-failedq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-failedq/internal/eventlog"
	"github.com/mind-engage/mindengage-failedq/internal/events"
	"github.com/mind-engage/mindengage-failedq/internal/generator"
	"github.com/mind-engage/mindengage-failedq/internal/host"
	"github.com/mind-engage/mindengage-failedq/internal/ledger"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/logger"
	"github.com/mind-engage/mindengage-failedq/internal/quizcache"
	"github.com/mind-engage/mindengage-failedq/internal/rbac"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

type SettingsStore interface {
	settings.Source
	Save(ctx context.Context, p settings.Partial) error
}

type AuditLog interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Entry, error)
}

// Deps is everything the handlers need. MenuURL and HostQuizURL are absolute
// or root-relative URLs as seen by the browser.
type Deps struct {
	Ledger     ledger.Store
	Catalog    host.Catalog
	Settings   SettingsStore
	Updater    *lifecycle.Updater
	Generator  *generator.Generator
	Cache      quizcache.Store
	Dispatcher *events.Dispatcher
	Audit      AuditLog
	Sessions   sessions.Store
	Log        *logger.Logger

	MenuURL     string
	HostQuizURL string
}

// Mount registers the add-on routes. Requests must already have passed
// auth.Authenticate.
func Mount(r chi.Router, d Deps) {
	// Anonymous visitors get the in-page login message.
	r.Get("/failed-questions", MenuHandler(d))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSubject)

		pr.With(rbac.Require(rbac.PermTake)).
			Post("/failed-questions/generate", GenerateHandler(d))
		pr.With(rbac.Require(rbac.PermProgress)).
			Post("/failed-questions/progress", ProgressHandler(d.Updater))
		pr.With(rbac.Require(rbac.PermTake)).
			Get("/remedial/{token}", RemedialHandler(d.Cache, d.MenuURL))
		pr.With(rbac.Require(rbac.PermCapture)).
			Post("/hooks/{hook}", HookHandler(d.Dispatcher))
	})

	r.Group(func(ar chi.Router) {
		ar.Use(auth.RequireSubject)

		ar.With(rbac.Require(rbac.PermSettings)).
			Get("/admin/failed-questions", AdminPageHandler(d))
		ar.With(rbac.Require(rbac.PermSettings)).
			Post("/admin/failed-questions/settings", SaveSettingsHandler(d.Settings))
		ar.With(rbac.Require(rbac.PermReport)).
			Get("/admin/failed-questions/report", ReportHandler(d.Ledger, d.Catalog))
		ar.With(rbac.Require(rbac.PermEvents)).
			Get("/admin/failed-questions/events", EventsHandler(d.Audit))
		ar.With(rbac.Require(rbac.PermReport)).
			Get("/admin/quizzes/{quizID}/failed-questions", QuizTabHandler(d.Ledger, d.Catalog))
	})
}
