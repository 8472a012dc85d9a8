package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-failedq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-failedq/internal/generator"
	"github.com/mind-engage/mindengage-failedq/internal/quizcache"
)

// renderOverride tells the host how to render the template quiz as a
// remedial quiz.
type renderOverride struct {
	generator.Descriptor
	ReturnURL string `json:"return_url"`
}

// GET /remedial/{token}
func RemedialHandler(cache quizcache.Store, menuURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := cache.Get(r.Context(), chi.URLParam(r, "token"))
		if errors.Is(err, quizcache.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		// Someone else's token is indistinguishable from an unknown one.
		if d.UserID != auth.SubjectFromContext(r.Context()) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, renderOverride{Descriptor: d, ReturnURL: menuURL})
	}
}
