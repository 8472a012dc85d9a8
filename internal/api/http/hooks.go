package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-failedq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-failedq/internal/capture"
	"github.com/mind-engage/mindengage-failedq/internal/events"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/rbac"
)

const maxEventBytes = 1 << 20

// POST /hooks/{hook}
// Accepts a JSON envelope or the host's form-encoded AJAX payload. The user
// is the authenticated subject; only service tokens may name another user.
func HookHandler(d *events.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hook := chi.URLParam(r, "hook")
		subject := auth.SubjectFromContext(r.Context())
		r.Body = http.MaxBytesReader(w, r.Body, maxEventBytes)

		var e capture.Event
		if isJSON(r) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				ajaxFail(w, http.StatusBadRequest, "bad request")
				return
			}
			if e, err = capture.ParseEvent(body); err != nil {
				ajaxFail(w, http.StatusBadRequest, "Invalid data")
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				ajaxFail(w, http.StatusBadRequest, "bad request")
				return
			}
			e = capture.FromForm(hook, r.PostForm.Get("user_id"), r.PostForm)
		}
		e.Hook = hook
		if e.UserID == "" || rbac.RoleFromContext(r.Context()) != "service" {
			e.UserID = subject
		}

		sum, err := d.Dispatch(r.Context(), e)
		switch {
		case err == nil:
			ajaxOK(w, sum)
		case errors.Is(err, events.ErrUnknownHook):
			ajaxFail(w, http.StatusNotFound, "unknown hook")
		case errors.Is(err, capture.ErrInvalidRequest):
			ajaxFail(w, http.StatusBadRequest, "Invalid data")
		case errors.Is(err, lifecycle.ErrPermissionDenied):
			ajaxFail(w, http.StatusUnauthorized, "User not logged in")
		default:
			ajaxFail(w, http.StatusInternalServerError, "internal error")
		}
	}
}
