package http

import (
	"errors"
	"net/http"

	auth "github.com/mind-engage/mindengage-failedq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

// POST /failed-questions/progress  question_id=N&is_correct=0|1
func ProgressHandler(u *lifecycle.Updater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestValues(r)
		if err != nil {
			ajaxFail(w, http.StatusBadRequest, "bad request")
			return
		}
		questionID := int64(settings.Intval(v.Get("question_id")))
		if questionID <= 0 {
			ajaxFail(w, http.StatusBadRequest, "Invalid question ID.")
			return
		}
		correct := settings.Intval(v.Get("is_correct")) != 0 || v.Get("is_correct") == "true"

		fb, err := u.AnswerProgress(r.Context(), auth.SubjectFromContext(r.Context()), questionID, correct)
		switch {
		case err == nil:
			ajaxOK(w, fb.Message)
		case errors.Is(err, lifecycle.ErrPermissionDenied):
			ajaxFail(w, http.StatusUnauthorized, "You must be logged in to update your progress.")
		case errors.Is(err, lifecycle.ErrNotInFailedList):
			ajaxFail(w, http.StatusOK, "Question not found in your failed questions list.")
		default:
			u.Log.Error("update progress", "question_id", questionID, "error", err)
			ajaxFail(w, http.StatusInternalServerError, "internal error")
		}
	}
}
