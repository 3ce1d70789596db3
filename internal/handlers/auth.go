package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// AuthService defines the interface for auth business logic
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.AuthResult, error)
	Login(ctx context.Context, in services.LoginInput) (*models.AuthResult, error)
	Logout(ctx context.Context, userID, clientIP string) error
	Me(ctx context.Context, userID string) (*models.PublicUser, error)
	UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (*models.PublicUser, error)
	UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, clientIP string) error
	ForgotPassword(ctx context.Context, email, clientIP string) error
	ResetPassword(ctx context.Context, token, newPassword, clientIP string) (*models.AuthResult, error)
	UploadAvatar(ctx context.Context, userID string, upload services.AvatarUpload) (*models.PublicUser, error)
}

// AuthHandlerConfig holds transport settings for AuthHandler.
type AuthHandlerConfig struct {
	Cookies  auth.CookieConfig
	TokenTTL time.Duration
	// UniformForgotResponse acknowledges unknown emails like known ones.
	UniformForgotResponse bool
	MaxAvatarBytes        int64
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthService
	ips     *pkghttp.IPResolver
	config  AuthHandlerConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, ips *pkghttp.IPResolver, config AuthHandlerConfig) *AuthHandler {
	if config.MaxAvatarBytes <= 0 {
		config.MaxAvatarBytes = 5 << 20
	}
	return &AuthHandler{
		service: service,
		ips:     ips,
		config:  config,
	}
}

// Request DTOs

// SignupRequest represents the request body for signup
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries optional profile fields; absent fields are unchanged.
type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// UpdatePasswordRequest represents the request body for a password change.
// oldPassword is accepted as an alias of currentPassword.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for redeeming a reset link
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
}

// decode reads and validates a JSON request body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := pkghttp.DecodeJSON(w, r, dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return false
	}
	return true
}

// currentUser returns the account stored by the route guard, writing a 401
// when there is none.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Not authorized")
		return nil, false
	}
	return user, true
}

// sendToken writes an auth result and mirrors the token into the session cookie.
func (h *AuthHandler) sendToken(w http.ResponseWriter, status int, result *models.AuthResult) {
	auth.SetTokenCookie(w, result.Token, h.config.TokenTTL, h.config.Cookies)
	pkghttp.WriteSuccess(w, status, map[string]any{
		"token": result.Token,
		"user":  result.User,
	})
}

// Signup handles self-registration
// @Router /api/auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.Signup(r.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		ClientIP: h.ips.ClientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.sendToken(w, http.StatusCreated, result)
}

// Login handles user login
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		pkghttp.WriteValidationError(w, "Please provide email and password")
		return
	}

	result, err := h.service.Login(r.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: h.ips.ClientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.sendToken(w, http.StatusOK, result)
}

// Logout clears the session cookie. Issued tokens stay valid until they expire.
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w, h.config.Cookies)

	if user := auth.GetUserFromContext(r); user != nil {
		if err := h.service.Logout(r.Context(), user.ID, h.ips.ClientIP(r)); err != nil {
			writeError(w, err)
			return
		}
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Logged out")
}

// Me returns the signed-in account
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Me(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, map[string]any{"user": profile})
}

// UpdateProfile changes the caller's own profile fields
// @Router /api/auth/updateprofile [put]
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), user.ID, services.ProfileUpdate{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, map[string]any{"user": profile})
}

// UpdatePassword changes the caller's password
// @Router /api/auth/updatepassword [put]
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req UpdatePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	current := req.CurrentPassword
	if current == "" {
		current = req.OldPassword
	}
	if current == "" {
		pkghttp.WriteValidationError(w, "currentPassword is required")
		return
	}

	if err := h.service.UpdatePassword(r.Context(), user.ID, current, req.NewPassword, h.ips.ClientIP(r)); err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password updated")
}

// ForgotPassword mails a reset link
// @Router /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.service.ForgotPassword(r.Context(), req.Email, h.ips.ClientIP(r))
	if err != nil && !(h.config.UniformForgotResponse && errors.Is(err, models.ErrNotFound)) {
		writeServiceError(w, err, "There is no user with that email")
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password reset email sent")
}

// ResetPassword redeems a reset link
// @Router /api/auth/reset-password/{token} [put]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password, h.ips.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.sendToken(w, http.StatusOK, result)
}

// UploadAvatar replaces the caller's avatar with the multipart "avatar" file
// @Router /api/auth/upload-avatar [post]
func (h *AuthHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	// Room for the multipart envelope around the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxAvatarBytes+(1<<20))
	if err := r.ParseMultipartForm(h.config.MaxAvatarBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			pkghttp.WriteValidationError(w, "Image is too large")
			return
		}
		pkghttp.WriteBadRequest(w, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("avatar")
	if err != nil {
		pkghttp.WriteValidationError(w, "Please upload an image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.config.MaxAvatarBytes+1))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Could not read uploaded file")
		return
	}

	profile, err := h.service.UploadAvatar(r.Context(), user.ID, services.AvatarUpload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, map[string]any{"avatarUrl": profile.AvatarURL, "user": profile})
}
