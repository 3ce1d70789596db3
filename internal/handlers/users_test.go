package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/handlers"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

const (
	adminID = "11111111-1111-1111-1111-111111111111"
	userID  = "22222222-2222-2222-2222-222222222222"
	otherID = "33333333-3333-3333-3333-333333333333"
)

// fakeAuthenticate resolves the caller from the X-Test-User header.
func fakeAuthenticate(next http.Handler) http.Handler {
	users := map[string]*models.User{
		adminID: testUser(adminID, models.RoleAdmin),
		userID:  testUser(userID, models.RoleUser),
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := users[r.Header.Get("X-Test-User")]
		if !ok {
			pkghttp.WriteUnauthorized(w, "Not authorized, no token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

func newUserRouter(svc handlers.UserService) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		handlers.NewUserHandler(svc).RegisterRoutes(r, fakeAuthenticate)
	})
	return r
}

func serve(t *testing.T, h http.Handler, req *http.Request, caller string) *httptest.ResponseRecorder {
	t.Helper()
	if caller != "" {
		req.Header.Set("X-Test-User", caller)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestUsersRoutes_RequireAuthentication(t *testing.T) {
	router := newUserRouter(&mockUserService{})

	w := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/users", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUsersRoutes_AdminOnly(t *testing.T) {
	svc := &mockUserService{}
	router := newUserRouter(svc)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/users", nil),
		newJSONRequest(t, http.MethodPost, "/api/users", map[string]string{"name": "New", "email": "n@example.com"}),
		newJSONRequest(t, http.MethodPut, "/api/users/"+otherID, map[string]string{"name": "New"}),
		httptest.NewRequest(http.MethodDelete, "/api/users/"+otherID, nil),
	}
	for _, req := range requests {
		w := serve(t, router, req, userID)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", req.Method, req.URL.Path)
	}
	svc.AssertExpectations(t)
}

func TestListUsers(t *testing.T) {
	svc := &mockUserService{}
	svc.On("List", mock.Anything, models.UserFilter{Search: "ann", Role: "user", Limit: 10, Offset: 20}).
		Return([]*models.PublicUser{{ID: userID, Email: "ann@example.com"}}, 21, nil)
	router := newUserRouter(svc)

	w := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/users?q=ann&role=user&limit=10&offset=20", nil), adminID)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(21), body["total"])
	assert.Len(t, body["users"], 1)
	svc.AssertExpectations(t)
}

func TestListUsers_BadPaging(t *testing.T) {
	router := newUserRouter(&mockUserService{})

	w := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/users?limit=-1", nil), adminID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUser_SelfOrAdmin(t *testing.T) {
	svc := &mockUserService{}
	svc.On("GetByID", mock.Anything, userID).Return(&models.PublicUser{ID: userID}, nil)
	svc.On("GetByID", mock.Anything, otherID).Return(nil, models.ErrNotFound)
	router := newUserRouter(svc)

	w := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/users/"+userID, nil), userID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, router, httptest.NewRequest(http.MethodGet, "/api/users/"+otherID, nil), userID)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(t, router, httptest.NewRequest(http.MethodGet, "/api/users/"+userID, nil), adminID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, router, httptest.NewRequest(http.MethodGet, "/api/users/"+otherID, nil), adminID)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decodeBody(t, w)["message"])
}

func TestCreateUser(t *testing.T) {
	svc := &mockUserService{}
	svc.On("Create", mock.Anything, adminID, services.CreateUserInput{
		Name: "New Admin", Email: "na@example.com", Password: "secret1", Role: models.RoleAdmin,
	}).Return(&models.PublicUser{ID: otherID, Role: models.RoleAdmin}, nil)
	router := newUserRouter(svc)

	w := serve(t, router, newJSONRequest(t, http.MethodPost, "/api/users", map[string]string{
		"name": "New Admin", "email": "na@example.com", "password": "secret1", "role": "admin",
	}), adminID)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreateUser_InvalidRole(t *testing.T) {
	router := newUserRouter(&mockUserService{})

	w := serve(t, router, newJSONRequest(t, http.MethodPost, "/api/users", map[string]string{
		"name": "New", "email": "n@example.com", "role": "owner",
	}), adminID)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "role")
}

func TestUpdateUser(t *testing.T) {
	svc := &mockUserService{}
	svc.On("Update", mock.Anything, adminID, otherID, mock.MatchedBy(func(in services.UpdateUserInput) bool {
		return in.Role != nil && *in.Role == models.RoleAdmin && in.Name == nil
	})).Return(&models.PublicUser{ID: otherID, Role: models.RoleAdmin}, nil)
	svc.On("Update", mock.Anything, adminID, userID, mock.Anything).
		Return(nil, models.NewConflictError("Email is already in use"))
	router := newUserRouter(svc)

	w := serve(t, router, newJSONRequest(t, http.MethodPut, "/api/users/"+otherID, map[string]string{"role": "admin"}), adminID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, router, newJSONRequest(t, http.MethodPut, "/api/users/"+userID, map[string]string{"email": "root@example.com"}), adminID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email is already in use", decodeBody(t, w)["message"])
}

func TestDeleteUser(t *testing.T) {
	svc := &mockUserService{}
	svc.On("Delete", mock.Anything, adminID, otherID).Return(nil)
	svc.On("Delete", mock.Anything, adminID, userID).Return(models.ErrNotFound)
	router := newUserRouter(svc)

	w := serve(t, router, httptest.NewRequest(http.MethodDelete, "/api/users/"+otherID, nil), adminID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, router, httptest.NewRequest(http.MethodDelete, "/api/users/"+userID, nil), adminID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
