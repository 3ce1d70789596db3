package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// UserService defines the interface for user administration
type UserService interface {
	List(ctx context.Context, filter models.UserFilter) ([]*models.PublicUser, int, error)
	GetByID(ctx context.Context, id string) (*models.PublicUser, error)
	Create(ctx context.Context, actorID string, in services.CreateUserInput) (*models.PublicUser, error)
	Update(ctx context.Context, actorID, id string, in services.UpdateUserInput) (*models.PublicUser, error)
	Delete(ctx context.Context, actorID, id string) error
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Request DTOs

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Role    *string `json:"role" validate:"omitempty,oneof=user admin"`
}

// RegisterRoutes mounts the user routes. authenticate must run first; the
// admin check is applied per route since a user may read their own record.
func (h *UserHandler) RegisterRoutes(router chi.Router, authenticate func(http.Handler) http.Handler) {
	router.Route("/users", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/{id}", h.GetUser)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Put("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})
	})
}

// ListUsers returns a page of users, optionally filtered by q and role
// @Router /api/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.UserFilter{
		Search: query.Get("q"),
		Role:   query.Get("role"),
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		pkghttp.WriteValidationError(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		pkghttp.WriteValidationError(w, "offset must be a non-negative integer")
		return
	}

	users, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, map[string]any{
		"count": len(users),
		"total": total,
		"users": users,
	})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

// GetUser retrieves a user by ID. Non-admins may only read their own record.
// @Router /api/users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "id")
	if caller.ID != userID && !caller.IsAdmin() {
		pkghttp.WriteForbidden(w, "You cannot access this resource")
		return
	}

	user, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, map[string]any{"user": user})
}

// CreateUser adds an account
// @Router /api/users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.service.Create(r.Context(), caller.ID, services.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusCreated, map[string]any{"user": user})
}

// UpdateUser changes an account
// @Router /api/users/{id} [put]
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.service.Update(r.Context(), caller.ID, chi.URLParam(r, "id"), services.UpdateUserInput{
		ProfileUpdate: services.ProfileUpdate{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
		},
		Role: req.Role,
	})
	if err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, map[string]any{"user": user})
}

// DeleteUser removes an account
// @Router /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller.ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "User not found")
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "User deleted")
}
