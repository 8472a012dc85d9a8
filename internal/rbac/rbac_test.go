package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy
	assert.True(t, p.Allows("student", PermTake))
	assert.False(t, p.Allows("student", PermSettings))
	assert.True(t, p.Allows("teacher", PermReport))
	assert.False(t, p.Allows("service", PermTake))
	assert.True(t, p.Allows("admin", PermSettings))
	assert.False(t, p.Allows("nobody", PermTake))
	assert.True(t, p.AllowsAny("service", PermTake, PermCapture))
}

func TestWildcardPolicy(t *testing.T) {
	p := Policy{"ops": {"failedq:*"}}
	assert.True(t, p.Allows("ops", PermEvents))
	assert.False(t, p.Allows("ops", "exam:view"))
}

func TestRequire(t *testing.T) {
	h := Require(PermSettings)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{
		"":        http.StatusUnauthorized,
		"student": http.StatusForbidden,
		"admin":   http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if role != "" {
			req = req.WithContext(WithRole(req.Context(), role))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}

func TestCan(t *testing.T) {
	ctx := WithRole(context.Background(), "teacher")
	assert.True(t, Can(ctx, PermReport))
	assert.False(t, Can(ctx, PermSettings))
	assert.False(t, Can(context.Background(), PermTake))
}
