package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
	pkglogger "github.com/BradenHooton/roster/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	Count(ctx context.Context, filter models.UserFilter) (int, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAvatar(ctx context.Context, id, avatarURL, avatarKey string) (*models.User, error)
	Delete(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id, tokenHash string) error
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error)
}

// UserService handles administrative user management
type UserService struct {
	repo        UserRepository
	avatars     AvatarStore
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService. avatars may be nil, in which case
// deleted users' images are left in the bucket.
func NewUserService(repo UserRepository, avatars AvatarStore, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		avatars:     avatars,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// CreateUserInput is an admin-initiated account creation.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string // optional
	Role     string // defaults to user
	Phone    string
	Address  string
}

// UpdateUserInput carries optional admin changes; nil fields are left alone.
type UpdateUserInput struct {
	ProfileUpdate
	Role *string
}

// List returns one page of users matching filter and the total match count.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]*models.PublicUser, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Role != "" {
		if err := validateRole(filter.Role); err != nil {
			return nil, 0, err
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list users",
			slog.Int("limit", filter.Limit),
			slog.Int("offset", filter.Offset),
			slog.Any("error", err))
		return nil, 0, models.ErrInternalServer
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count users", slog.Any("error", err))
		return nil, 0, models.ErrInternalServer
	}

	return models.NewPublicUsers(users), total, nil
}

// GetByID retrieves a user by ID
func (s *UserService) GetByID(ctx context.Context, id string) (*models.PublicUser, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewPublicUser(user), nil
}

// Create adds an account on behalf of an admin. Any role may be assigned.
func (s *UserService) Create(ctx context.Context, actorID string, in CreateUserInput) (*models.PublicUser, error) {
	user := &models.User{
		Name:    strings.TrimSpace(in.Name),
		Email:   models.NormalizeEmail(in.Email),
		Role:    in.Role,
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	if err := validateName(user.Name); err != nil {
		return nil, err
	}
	if err := validateEmail(user.Email); err != nil {
		return nil, err
	}
	if err := validateRole(user.Role); err != nil {
		return nil, err
	}
	if err := validateContact(user.Phone, user.Address); err != nil {
		return nil, err
	}

	if in.Password != "" {
		if err := validateNewPassword(in.Password); err != nil {
			return nil, err
		}
		hash, err := pkgauth.HashPassword(in.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		now := time.Now()
		user.PasswordHash = hash
		user.PasswordChangedAt = &now
	}

	if _, err := s.repo.GetByEmail(ctx, user.Email); err == nil {
		return nil, models.NewConflictError("User already exists with this email")
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.NewConflictError("User already exists with this email")
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user created", slog.String("user_id", created.ID), slog.String("role", created.Role))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventUserCreate,
		UserID:    created.ID,
		ActorID:   actorID,
		Email:     created.Email,
		Success:   true,
		Metadata:  map[string]string{"role": created.Role},
	})
	return models.NewPublicUser(created), nil
}

// Update applies admin changes to an account. Admins cannot demote themselves.
func (s *UserService) Update(ctx context.Context, actorID, id string, in UpdateUserInput) (*models.PublicUser, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	lookup := func(email string) (*models.User, error) { return s.repo.GetByEmail(ctx, email) }
	if err := applyProfileUpdate(user, in.ProfileUpdate, lookup); err != nil {
		if errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if in.Role != nil {
		if err := validateRole(*in.Role); err != nil {
			return nil, err
		}
		if id == actorID && user.Role == models.RoleAdmin && *in.Role != models.RoleAdmin {
			return nil, models.NewValidationError("Admins cannot remove their own admin role")
		}
		user.Role = *in.Role
	}

	updated, err := s.repo.Update(ctx, id, user)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			return nil, models.NewConflictError("Email is already in use")
		case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrValidation):
			return nil, err
		}
		s.logger.Error("failed to update user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user updated", slog.String("user_id", id))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventUserUpdate,
		UserID:    id,
		ActorID:   actorID,
		Success:   true,
	})
	return models.NewPublicUser(updated), nil
}

// Delete removes an account and, when possible, its avatar image. Admins
// cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	if id == actorID {
		return models.NewValidationError("Admins cannot delete their own account")
	}

	user, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete user", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if user.AvatarKey != "" && s.avatars != nil {
		if err := s.avatars.Delete(ctx, user.AvatarKey); err != nil {
			s.logger.Warn("failed to remove avatar of deleted user", slog.String("key", user.AvatarKey), slog.Any("error", err))
		}
	}

	s.logger.Info("user deleted", slog.String("user_id", id))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventUserDelete,
		UserID:    id,
		ActorID:   actorID,
		Success:   true,
	})
	return nil
}

// EnsureAdmin creates an admin account for email unless one already exists.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if password == "" {
		return false, models.NewValidationError("Admin password is required")
	}

	_, err := s.repo.GetByEmail(ctx, models.NormalizeEmail(email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, err
	}

	if _, err := s.Create(ctx, "", CreateUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) get(ctx context.Context, id string) (*models.User, error) {
	if uuid.Validate(id) != nil {
		return nil, models.ErrNotFound
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.String("user_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}
