package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/storage"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
	pkglogger "github.com/BradenHooton/roster/pkg/logger"
)

// AvatarStore holds uploaded avatar images.
type AvatarStore interface {
	Upload(ctx context.Context, userID string, data []byte, contentType, ext string) (url, key string, err error)
	Delete(ctx context.Context, key string) error
}

// AuthServiceConfig carries the optional collaborators and settings of AuthService.
type AuthServiceConfig struct {
	Throttle       *LoginThrottle
	Timing         *auth.TimingDelay
	Email          EmailSender
	Avatars        AvatarStore
	ResetURLBase   string
	MaxAvatarBytes int64
	Now            func() time.Time
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	tm          *auth.TokenManager
	throttle    *LoginThrottle
	timing      *auth.TimingDelay
	email       EmailSender
	avatars     AvatarStore
	resetURL    string
	maxAvatar   int64
	now         func() time.Time
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, tm *auth.TokenManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, cfg AuthServiceConfig) *AuthService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		repo:        repo,
		tm:          tm,
		throttle:    cfg.Throttle,
		timing:      cfg.Timing,
		email:       cfg.Email,
		avatars:     cfg.Avatars,
		resetURL:    strings.TrimRight(cfg.ResetURLBase, "/"),
		maxAvatar:   cfg.MaxAvatarBytes,
		now:         now,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// SignupInput is a self-registration request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	ClientIP string
}

// LoginInput is a credential check request.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

// Signup creates a regular user account and signs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := models.NormalizeEmail(in.Email)

	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateNewPassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventSignup,
			Email:         email,
			IPAddress:     in.ClientIP,
			FailureReason: "email_taken",
		})
		return nil, models.NewConflictError("User already exists with this email")
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	user, err := s.repo.Create(ctx, &models.User{
		Name:              name,
		Email:             email,
		PasswordHash:      hash,
		Role:              models.RoleUser,
		PasswordChangedAt: &now,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.NewConflictError("User already exists with this email")
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", slog.String("user_id", user.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventSignup,
		UserID:    user.ID,
		Email:     email,
		IPAddress: in.ClientIP,
		Success:   true,
	})
	return result, nil
}

// Login verifies credentials. Unknown emails, accounts without a password and
// wrong passwords all fail the same way after the same minimum delay.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.AuthResult, error) {
	start := s.now()
	email := models.NormalizeEmail(in.Email)

	if email == "" || in.Password == "" {
		return nil, models.NewValidationError("Please provide email and password")
	}

	if err := s.throttle.Allow(ctx, email, in.ClientIP); err != nil {
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLogin,
			Email:         email,
			IPAddress:     in.ClientIP,
			FailureReason: "rate_limited",
		})
		return nil, err
	}

	fail := func(userID, reason string) error {
		s.throttle.RecordFailure(ctx, email, in.ClientIP)
		s.timing.WaitFrom(ctx, start)
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLogin,
			UserID:        userID,
			Email:         email,
			IPAddress:     in.ClientIP,
			FailureReason: reason,
		})
		return models.ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a hash comparison so unknown emails cost the same as known ones.
			pkgauth.VerifyPassword(dummyHash, in.Password)
			return nil, fail("", "unknown_email")
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.HasPassword() {
		pkgauth.VerifyPassword(dummyHash, in.Password)
		return nil, fail(user.ID, "no_password")
	}
	if !pkgauth.VerifyPassword(user.PasswordHash, in.Password) {
		return nil, fail(user.ID, "invalid_password")
	}

	s.throttle.RecordSuccess(ctx, email)

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Email:     email,
		IPAddress: in.ClientIP,
		Success:   true,
	})
	return result, nil
}

// Logout records the sign-out. Tokens are stateless, so the caller clears the
// client's cookie.
func (s *AuthService) Logout(ctx context.Context, userID, clientIP string) error {
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogout,
		UserID:    userID,
		IPAddress: clientIP,
		Success:   true,
	})
	return nil
}

// Me returns the public profile of the signed-in user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.NewPublicUser(user), nil
}

// UpdateProfile changes the caller's own name, email, phone or address.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	lookup := func(email string) (*models.User, error) { return s.repo.GetByEmail(ctx, email) }
	if err := applyProfileUpdate(user, update, lookup); err != nil {
		if errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	updated, err := s.repo.Update(ctx, user.ID, user)
	if err != nil {
		return nil, s.storeError("update profile", user.ID, err)
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventProfileUpdate,
		UserID:    user.ID,
		Success:   true,
	})
	return models.NewPublicUser(updated), nil
}

// UpdatePassword replaces the caller's password after checking the current one.
// Any pending reset token is discarded.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, clientIP string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if !pkgauth.VerifyPassword(user.PasswordHash, currentPassword) {
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventPasswordChange,
			UserID:        user.ID,
			IPAddress:     clientIP,
			FailureReason: "invalid_current_password",
		})
		return models.ErrInvalidCredentials
	}
	if err := validateNewPassword(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return s.storeError("update password", user.ID, err)
	}

	s.logger.Info("password changed", slog.String("user_id", user.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordChange,
		UserID:    user.ID,
		IPAddress: clientIP,
		Success:   true,
	})
	return nil
}

// ForgotPassword issues a single-use reset token and mails its link. Only the
// token's hash is stored. If delivery fails the stored token is withdrawn.
// Unknown emails return ErrNotFound.
func (s *AuthService) ForgotPassword(ctx context.Context, email, clientIP string) error {
	email = models.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.Log(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventPasswordResetIssue,
				Email:         email,
				IPAddress:     clientIP,
				FailureReason: "unknown_email",
			})
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := pkgauth.GenerateResetToken(s.now())
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.SetResetToken(ctx, user.ID, token.Hash, token.ExpiresAt); err != nil {
		return s.storeError("store reset token", user.ID, err)
	}

	resetURL := fmt.Sprintf("%s/%s", s.resetURL, token.Plaintext)
	if err := s.sendResetEmail(ctx, user, resetURL, token.ExpiresAt); err != nil {
		s.logger.Error("failed to deliver reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		if clearErr := s.repo.ClearResetToken(ctx, user.ID, token.Hash); clearErr != nil {
			s.logger.Error("failed to withdraw reset token", slog.String("user_id", user.ID), slog.Any("error", clearErr))
		}
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventPasswordResetIssue,
			UserID:        user.ID,
			IPAddress:     clientIP,
			FailureReason: "delivery_failed",
		})
		return models.ErrDeliveryFailed
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordResetIssue,
		UserID:    user.ID,
		IPAddress: clientIP,
		Success:   true,
	})
	return nil
}

func (s *AuthService) sendResetEmail(ctx context.Context, user *models.User, resetURL string, expiresAt time.Time) error {
	if s.email == nil {
		return errors.New("no email sender configured")
	}
	return s.email.SendPasswordResetEmail(ctx, user.Email, user.Name, resetURL, expiresAt)
}

// ResetPassword redeems a reset token. The token is consumed and the new
// password stored in one step, so a token works at most once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, clientIP string) (*models.AuthResult, error) {
	if err := validateNewPassword(newPassword); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, models.ErrInvalidOrExpiredToken
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.repo.ConsumeResetToken(ctx, pkgauth.HashResetToken(token), hash, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.Log(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventPasswordReset,
				IPAddress:     clientIP,
				FailureReason: "invalid_or_expired_token",
			})
			return nil, models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("failed to consume reset token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("password reset", slog.String("user_id", user.ID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordReset,
		UserID:    user.ID,
		IPAddress: clientIP,
		Success:   true,
	})
	return result, nil
}

// AvatarUpload is an uploaded image. ContentType is what the client declared;
// the stored type is sniffed from Data.
type AvatarUpload struct {
	Data        []byte
	ContentType string
}

// UploadAvatar stores a new avatar image and points the user at it. The
// previous image is removed once the user row references the new one.
func (s *AuthService) UploadAvatar(ctx context.Context, userID string, upload AvatarUpload) (*models.PublicUser, error) {
	data := upload.Data
	if len(data) == 0 {
		return nil, models.NewValidationError("Please upload an image file")
	}
	if s.maxAvatar > 0 && int64(len(data)) > s.maxAvatar {
		return nil, models.NewValidationError("Image must be %dMB or smaller", s.maxAvatar/(1<<20))
	}

	contentType, ext, err := storage.DetectImageType(data)
	if err != nil {
		s.logger.Info("rejected avatar upload",
			slog.String("user_id", userID),
			slog.String("declared_type", upload.ContentType))
		return nil, models.NewValidationError("Only JPEG, PNG and GIF images are allowed")
	}

	if s.avatars == nil {
		s.logger.Error("avatar upload attempted without a configured store")
		return nil, models.ErrInternalServer
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, key, err := s.avatars.Upload(ctx, user.ID, data, contentType, ext)
	if err != nil {
		s.logger.Error("failed to upload avatar", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	updated, err := s.repo.UpdateAvatar(ctx, user.ID, url, key)
	if err != nil {
		if delErr := s.avatars.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned avatar", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, s.storeError("update avatar", user.ID, err)
	}

	if user.AvatarKey != "" && user.AvatarKey != key {
		if err := s.avatars.Delete(ctx, user.AvatarKey); err != nil {
			s.logger.Warn("failed to remove previous avatar", slog.String("key", user.AvatarKey), slog.Any("error", err))
		}
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventAvatarChange,
		UserID:    user.ID,
		Success:   true,
		Metadata:  map[string]string{"content_type": contentType},
	})
	return models.NewPublicUser(updated), nil
}

func (s *AuthService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*models.AuthResult, error) {
	token, err := s.tm.Issue(user.ID)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return &models.AuthResult{
		Token:     token,
		ExpiresIn: int64(s.tm.Expiry().Seconds()),
		User:      models.NewPublicUser(user),
	}, nil
}

// storeError passes domain errors through and hides everything else.
func (s *AuthService) storeError(op, userID string, err error) error {
	switch {
	case errors.Is(err, models.ErrConflict):
		return models.NewConflictError("Email is already in use")
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrValidation):
		return err
	}
	s.logger.Error("failed to "+op, slog.String("user_id", userID), slog.Any("error", err))
	return models.ErrInternalServer
}

// dummyHash is a bcrypt hash of a random string, compared against when there
// is no real hash to check.
var dummyHash = mustHash("roster-timing-equalizer")

func mustHash(password string) string {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}
