package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/services"
)

func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), user))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func testUser(id, role string) *models.User {
	return &models.User{ID: id, Name: "Test User", Email: id + "@example.com", Role: role}
}

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Signup(ctx context.Context, in services.SignupInput) (*models.AuthResult, error) {
	args := m.Called(ctx, in)
	result, _ := args.Get(0).(*models.AuthResult)
	return result, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, in services.LoginInput) (*models.AuthResult, error) {
	args := m.Called(ctx, in)
	result, _ := args.Get(0).(*models.AuthResult)
	return result, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, userID, clientIP string) error {
	return m.Called(ctx, userID, clientIP).Error(0)
}

func (m *mockAuthService) Me(ctx context.Context, userID string) (*models.PublicUser, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.PublicUser)
	return user, args.Error(1)
}

func (m *mockAuthService) UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (*models.PublicUser, error) {
	args := m.Called(ctx, userID, update)
	user, _ := args.Get(0).(*models.PublicUser)
	return user, args.Error(1)
}

func (m *mockAuthService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, clientIP string) error {
	return m.Called(ctx, userID, currentPassword, newPassword, clientIP).Error(0)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email, clientIP string) error {
	return m.Called(ctx, email, clientIP).Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, newPassword, clientIP string) (*models.AuthResult, error) {
	args := m.Called(ctx, token, newPassword, clientIP)
	result, _ := args.Get(0).(*models.AuthResult)
	return result, args.Error(1)
}

func (m *mockAuthService) UploadAvatar(ctx context.Context, userID string, upload services.AvatarUpload) (*models.PublicUser, error) {
	args := m.Called(ctx, userID, upload)
	user, _ := args.Get(0).(*models.PublicUser)
	return user, args.Error(1)
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) List(ctx context.Context, filter models.UserFilter) ([]*models.PublicUser, int, error) {
	args := m.Called(ctx, filter)
	users, _ := args.Get(0).([]*models.PublicUser)
	return users, args.Int(1), args.Error(2)
}

func (m *mockUserService) GetByID(ctx context.Context, id string) (*models.PublicUser, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.PublicUser)
	return user, args.Error(1)
}

func (m *mockUserService) Create(ctx context.Context, actorID string, in services.CreateUserInput) (*models.PublicUser, error) {
	args := m.Called(ctx, actorID, in)
	user, _ := args.Get(0).(*models.PublicUser)
	return user, args.Error(1)
}

func (m *mockUserService) Update(ctx context.Context, actorID, id string, in services.UpdateUserInput) (*models.PublicUser, error) {
	args := m.Called(ctx, actorID, id, in)
	user, _ := args.Get(0).(*models.PublicUser)
	return user, args.Error(1)
}

func (m *mockUserService) Delete(ctx context.Context, actorID, id string) error {
	return m.Called(ctx, actorID, id).Error(0)
}
