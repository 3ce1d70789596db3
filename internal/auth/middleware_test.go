package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/roster/internal/models"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserLoader struct {
	users map[string]*models.User
	err   error
}

func (s *stubUserLoader) GetByID(_ context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return user, nil
}

func newTestGuard(t *testing.T, loader UserLoader) (*Guard, *TokenManager) {
	t.Helper()
	tm := newTestTokenManager(t)
	return NewGuard(tm, loader, slog.New(slog.NewTextHandler(io.Discard, nil))), tm
}

// echoUser writes the id of the account attached by the guard.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	_, _ = w.Write([]byte(user.ID))
})

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestGuard_Authenticate(t *testing.T) {
	loader := &stubUserLoader{users: map[string]*models.User{
		"user-1": {ID: "user-1", Role: models.RoleUser},
	}}
	guard, tm := newTestGuard(t, loader)

	valid, err := tm.Issue("user-1")
	require.NoError(t, err)
	orphan, err := tm.Issue("deleted-user")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
		wantBody   string
	}{
		{name: "bearer header", header: "Bearer " + valid, wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "cookie transport", cookie: valid, wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "no token", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "malformed header ignores cookie", header: "Token " + valid, cookie: valid, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "user gone", header: "Bearer " + orphan, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			guard.Authenticate(echoUser).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				resp := decodeError(t, rec)
				assert.False(t, resp.Success)
				assert.Equal(t, "unauthorized", resp.Error)
			}
		})
	}
}

func TestGuard_Authenticate_StoreFailure(t *testing.T) {
	guard, tm := newTestGuard(t, &stubUserLoader{err: errors.New("connection refused")})
	token, err := tm.Issue("user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	guard.Authenticate(echoUser).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		user       *models.User
		roles      []string
		wantStatus int
	}{
		{"admin allowed", &models.User{ID: "a", Role: models.RoleAdmin}, []string{models.RoleAdmin}, http.StatusNoContent},
		{"user forbidden", &models.User{ID: "u", Role: models.RoleUser}, []string{models.RoleAdmin}, http.StatusForbidden},
		{"any of several", &models.User{ID: "u", Role: models.RoleUser}, []string{models.RoleAdmin, models.RoleUser}, http.StatusNoContent},
		{"no identity", nil, []string{models.RoleAdmin}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()

			RequireRole(tt.roles...)(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetTokenCookie(rec, "abc", 0, CookieConfig{Secure: true, SameSite: "strict"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, TokenCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	rec = httptest.NewRecorder()
	ClearTokenCookie(rec, CookieConfig{})
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)
}
