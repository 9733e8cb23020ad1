package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/oauth"
	"github.com/stretchr/testify/assert"
)

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(map[string]string{"roles": "admin"}, "admin"))
	assert.True(t, HasRole(map[string]string{"roles": "viewer, admin"}, "admin"))
	assert.False(t, HasRole(map[string]string{"roles": "administrator"}, "admin"))
	assert.False(t, HasRole(nil, "admin"))
}

func TestAdminRejectsOtherRoles(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	serve := func(claims map[string]string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(context.WithValue(r.Context(), oauth.ClaimsContext, claims))
		w := httptest.NewRecorder()
		admin(next).ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusTeapot, serve(map[string]string{"roles": "admin"}))
	assert.Equal(t, http.StatusForbidden, serve(map[string]string{"roles": "user"}))
	assert.Equal(t, http.StatusForbidden, serve(nil))
}

func TestAdminRequiresToken(t *testing.T) {
	h := Admin("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not be reached")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
