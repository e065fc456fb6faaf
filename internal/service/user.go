package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"userapi/internal/logging"
	"userapi/internal/model"
	"userapi/internal/repository"
	"userapi/internal/storage"
)

var (
	ErrIDRequired      = errors.New("id is required")
	ErrNotFound        = errors.New("user not found")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrNameRequired    = errors.New("name is required")
	ErrEmailTaken      = errors.New("email already registered")
	ErrReaderNil       = errors.New("reader is nil")
	ErrUnsupportedType = errors.New("avatar must be an image")
	ErrNoAvatar        = errors.New("user has no avatar")
)

// UserListResult is the service-level DTO for paginated users.
type UserListResult struct {
	Items []model.User `json:"data"`
	Total int64        `json:"total"`
}

// UserService defines the use cases for handling users.
type UserService interface {
	// Register validates and stores a new user.
	Register(ctx context.Context, email, name string) (*model.User, error)

	// Get returns a single user by its ID.
	Get(ctx context.Context, id string) (*model.User, error)

	// List returns users using limit/offset. Total comes from CountUsers.
	List(ctx context.Context, limit, offset int) (*UserListResult, error)

	// Delete removes the user's avatar object, then the user.
	Delete(ctx context.Context, id string) error

	// UploadAvatar stores an image and points the user at it, replacing any previous avatar.
	UploadAvatar(ctx context.Context, id string, r io.Reader, filename, contentType string, size int64) (*model.User, error)

	// AvatarURL returns a time-limited download URL for the user's avatar.
	AvatarURL(ctx context.Context, id string, expiry time.Duration) (string, error)

	// CountUsers returns the number of users, memoized per request scope.
	CountUsers(ctx context.Context) (int64, error)

	// Dashboard summarizes the user base for the landing page.
	Dashboard(ctx context.Context) (*model.Dashboard, error)
}

// Option configures a UserService.
type Option func(*userService)

// WithCountMetrics records every user count query on m.
func WithCountMetrics(m *CountMetrics) Option {
	return func(s *userService) { s.metrics = m }
}

// WithCountTimeout bounds each user count query. Zero means no bound.
func WithCountTimeout(d time.Duration) Option {
	return func(s *userService) { s.countTimeout = d }
}

// userService is a concrete implementation of UserService.
type userService struct {
	store        storage.Storage
	repo         repository.UserRepository
	metrics      *CountMetrics
	countTimeout time.Duration
	now          func() time.Time
}

// NewUserService constructs a new UserService.
func NewUserService(store storage.Storage, repo repository.UserRepository, opts ...Option) UserService {
	s := &userService{store: store, repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) Register(ctx context.Context, email, name string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if !strfmt.IsEmail(email) {
		return nil, ErrInvalidEmail
	}
	if name == "" {
		return nil, ErrNameRequired
	}

	u, err := s.repo.Create(ctx, &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *userService) List(ctx context.Context, limit, offset int) (*UserListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	total, err := s.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	return &UserListResult{Items: items, Total: total}, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// Remove the object first so a failure keeps the row pointing at it.
	if u.HasAvatar() {
		if err := s.store.Delete(ctx, u.AvatarPath); err != nil {
			return fmt.Errorf("delete avatar: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *userService) UploadAvatar(ctx context.Context, id string, r io.Reader, filename, contentType string, size int64) (*model.User, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrUnsupportedType
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := storage.AvatarKey(uuid.New().String() + strings.ToLower(filepath.Ext(filename)))
	info, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"user-id":           id,
			"original-filename": filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	if err := s.repo.UpdateAvatar(ctx, id, info.Key); err != nil {
		if delErr := s.store.Delete(ctx, info.Key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if u.HasAvatar() {
		if err := s.store.Delete(ctx, u.AvatarPath); err != nil {
			logging.FromContext(ctx).Warn().
				Err(err).
				Str("component", "service").
				Str("event", "avatar_cleanup_failed").
				Str("key", u.AvatarPath).
				Msg("previous avatar left in storage")
		}
	}

	u.AvatarPath = info.Key
	return u, nil
}

func (s *userService) AvatarURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !u.HasAvatar() {
		return "", ErrNoAvatar
	}
	return s.store.PresignGet(ctx, u.AvatarPath, expiry)
}
