package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/oauth"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-form/store"
)

func TestLogStoreError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("create: %w", store.ErrExists), http.StatusConflict},
		{store.Unavailable("list_forms", errors.New("connection refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		LogStoreError(w, "test", c.err, "x")
		assert.Equal(t, c.status, w.Code, c.err.Error())
	}
}

func TestLogUnprocessable(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	LogUnprocessable(w, r, "test", map[string]any{"errors": []string{"title is empty"}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"errors":["title is empty"]}`, w.Body.String())
}

func TestProblems(t *testing.T) {
	var merr *multierror.Error
	merr = multierror.Append(merr, errors.New("a"), errors.New("b"))
	assert.Equal(t, []string{"a", "b"}, Problems(merr))
	assert.Equal(t, []string{"c"}, Problems(errors.New("c")))
}

func TestResponseBuffer(t *testing.T) {
	buf := NewResponseBuffer()
	buf.Header().Set("Content-Type", "application/json")
	buf.WriteHeader(http.StatusUnauthorized)
	buf.WriteHeader(http.StatusOK)
	buf.Write([]byte(`{}`))
	assert.Equal(t, http.StatusUnauthorized, buf.Status())

	w := httptest.NewRecorder()
	require.NoError(t, buf.Flush(w))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `{}`, w.Body.String())

	implicit := NewResponseBuffer()
	implicit.Write([]byte("ok"))
	assert.Equal(t, http.StatusOK, implicit.Status())
}

func TestCredentialsVerifier(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemory()
	hash, err := HashPassword("pa55")
	require.NoError(t, err)
	require.NoError(t, users.PutUser(ctx, "admin", hash))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cv := &credentialsVerifier{users, func() time.Time { return now }}
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	assert.NoError(t, cv.ValidateUser("admin", "pa55", "", r))
	assert.Error(t, cv.ValidateUser("admin", "wrong", "", r))
	assert.Error(t, cv.ValidateUser("nobody", "pa55", "", r))

	require.NoError(t, cv.StoreTokenID(oauth.UserToken, "admin", "t1", "r1"))
	assert.NoError(t, cv.ValidateTokenID(oauth.UserToken, "admin", "t1", "r1"))
	assert.Error(t, cv.ValidateTokenID(oauth.UserToken, "admin", "t1", "r1"), "tokens are single use")

	require.NoError(t, cv.StoreTokenID(oauth.UserToken, "admin", "t2", "r2"))
	now = now.Add(RefreshTTL + time.Second)
	assert.Error(t, cv.ValidateTokenID(oauth.UserToken, "admin", "t2", "r2"))

	claims, err := cv.AddClaims(oauth.UserToken, "admin", "t3", "", r)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims["roles"])
	assert.Error(t, cv.ValidateClient("id", "secret", "", r))
}
