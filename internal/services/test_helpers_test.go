package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
	pkglogger "github.com/BradenHooton/roster/pkg/logger"
)

const testJWTSecret = "services-test-secret-0123456789abcdef"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryUserRepository is a map-backed UserRepository with the same
// reset-token semantics as the Postgres repository.
type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User

	// failures injected per method name
	errs map[string]error
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{
		users: make(map[string]*models.User),
		errs:  make(map[string]error),
	}
}

func (r *memoryUserRepository) fail(method string) error {
	return r.errs[method]
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return clone(u), nil
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memoryUserRepository) matching(filter models.UserFilter) []*models.User {
	var out []*models.User
	for _, u := range r.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if q := strings.ToLower(filter.Search); q != "" &&
			!strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(u.Email, q) {
			continue
		}
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (r *memoryUserRepository) List(_ context.Context, filter models.UserFilter) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("List"); err != nil {
		return nil, err
	}
	all := r.matching(filter)
	if filter.Offset >= len(all) {
		return []*models.User{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

func (r *memoryUserRepository) Count(_ context.Context, filter models.UserFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matching(filter)), nil
}

func (r *memoryUserRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, models.ErrConflict
		}
	}
	u := clone(user)
	u.ID = uuid.NewString()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = u
	return clone(u), nil
}

func (r *memoryUserRepository) Update(_ context.Context, id string, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Update"); err != nil {
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	for _, other := range r.users {
		if other.ID != id && strings.EqualFold(other.Email, user.Email) {
			return nil, models.ErrConflict
		}
	}
	u.Name, u.Email, u.Phone, u.Address, u.Role = user.Name, user.Email, user.Phone, user.Address, user.Role
	u.UpdatedAt = time.Now()
	return clone(u), nil
}

func (r *memoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return models.ErrNotFound
	}
	now := time.Now()
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &now
	u.ResetTokenHash, u.ResetTokenExpiresAt = nil, nil
	return nil
}

func (r *memoryUserRepository) UpdateAvatar(_ context.Context, id, avatarURL, avatarKey string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("UpdateAvatar"); err != nil {
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	u.AvatarURL, u.AvatarKey = avatarURL, avatarKey
	return clone(u), nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryUserRepository) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("SetResetToken"); err != nil {
		return err
	}
	u, ok := r.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.ResetTokenHash, u.ResetTokenExpiresAt = &tokenHash, &expiresAt
	return nil
}

func (r *memoryUserRepository) ClearResetToken(_ context.Context, id, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if ok && u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash {
		u.ResetTokenHash, u.ResetTokenExpiresAt = nil, nil
	}
	return nil
}

func (r *memoryUserRepository) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash && u.ResetTokenExpiresAt.After(now) {
			u.PasswordHash = passwordHash
			u.PasswordChangedAt = &now
			u.ResetTokenHash, u.ResetTokenExpiresAt = nil, nil
			return clone(u), nil
		}
	}
	return nil, models.ErrNotFound
}

// put stores u directly and returns its id.
func (r *memoryUserRepository) put(t *testing.T, name, email, password, role string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Role: role}
	if password != "" {
		hash, err := pkgauth.HashPassword(password)
		require.NoError(t, err)
		u.PasswordHash = hash
	}
	created, err := r.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (r *memoryUserRepository) raw(id string) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.users[id])
}

type sentEmail struct {
	to       string
	resetURL string
}

// recordingEmailSender captures reset links instead of mailing them.
type recordingEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (s *recordingEmailSender) SendPasswordResetEmail(_ context.Context, to, _, resetURL string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to: to, resetURL: resetURL})
	return nil
}

// lastToken returns the token segment of the most recent link.
func (s *recordingEmailSender) lastToken(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	link := s.sent[len(s.sent)-1].resetURL
	return link[strings.LastIndex(link, "/")+1:]
}

type memoryAvatarStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr error
}

func newMemoryAvatarStore() *memoryAvatarStore {
	return &memoryAvatarStore{objects: make(map[string][]byte)}
}

func (s *memoryAvatarStore) Upload(_ context.Context, userID string, data []byte, _ string, ext string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", "", s.uploadErr
	}
	key := "avatars/" + userID + "/" + uuid.NewString() + ext
	s.objects[key] = data
	return "https://cdn.example.com/" + key, key, nil
}

func (s *memoryAvatarStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memoryAvatarStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type authFixture struct {
	repo    *memoryUserRepository
	email   *recordingEmailSender
	avatars *memoryAvatarStore
	tokens  *auth.TokenManager
	svc     *AuthService
}

func newAuthFixture(t *testing.T, opts ...func(*AuthServiceConfig)) *authFixture {
	t.Helper()
	tm, err := auth.NewTokenManager(testJWTSecret, time.Hour)
	require.NoError(t, err)

	f := &authFixture{
		repo:    newMemoryUserRepository(),
		email:   &recordingEmailSender{},
		avatars: newMemoryAvatarStore(),
		tokens:  tm,
	}
	cfg := AuthServiceConfig{
		Email:          f.email,
		Avatars:        f.avatars,
		ResetURLBase:   "https://app.example.com/reset-password",
		MaxAvatarBytes: 5 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := testLogger()
	f.svc = NewAuthService(f.repo, tm, logger, pkglogger.NewAuditLogger(logger), cfg)
	return f
}

var errStoreDown = errors.New("connection refused")
