package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"account-server/internal/models"
	"account-server/internal/storage"

	"github.com/google/uuid"
)

// fakeUserRepo is an in-memory UserRepository with the same semantics as
// the postgres implementation, including compare-and-swap rotation.
type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	profiles map[uuid.UUID]*models.Profile // keyed by user id

	failCreate bool // induces a persistence failure in CreateUserWithProfile
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[uuid.UUID]*models.User),
		profiles: make(map[uuid.UUID]*models.Profile),
	}
}

func (f *fakeUserRepo) CreateUserWithProfile(_ context.Context, user *models.User, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate {
		return errors.New("induced persistence failure")
	}
	for _, existing := range f.users {
		if existing.Username == user.Username {
			return models.ErrUserAlreadyExists
		}
		if existing.Email == user.Email {
			return models.ErrEmailAlreadyExists
		}
	}

	user.ID = uuid.New()
	stored := *user
	f.users[user.ID] = &stored

	profile.ID = uuid.New()
	profile.UserID = user.ID
	storedProfile := *profile
	f.profiles[user.ID] = &storedProfile
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return f.findUser(func(u *models.User) bool { return u.Username == username })
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.findUser(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	return f.findUser(func(u *models.User) bool { return u.Username == login || u.Email == login })
}

func (f *fakeUserRepo) findUser(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if match(user) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (f *fakeUserRepo) SetRefreshToken(_ context.Context, userID uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	user.RefreshToken = &token
	return nil
}

func (f *fakeUserRepo) RotateRefreshToken(_ context.Context, userID uuid.UUID, current, next string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return models.ErrTokenMismatch
	}
	if user.RefreshToken == nil || *user.RefreshToken != current {
		return models.ErrTokenMismatch
	}
	user.RefreshToken = &next
	return nil
}

func (f *fakeUserRepo) ClearRefreshToken(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	user.RefreshToken = nil
	return nil
}

// storedUser returns the raw stored record, bypassing sanitization.
func (f *fakeUserRepo) storedUser(username string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == username {
			clone := *user
			return &clone
		}
	}
	return nil
}

func (f *fakeUserRepo) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

// fakeProfileRepo reads from the same map the fakeUserRepo writes.
type fakeProfileRepo struct {
	users *fakeUserRepo
}

func (f *fakeProfileRepo) GetProfileByUserID(_ context.Context, userID uuid.UUID) (*models.Profile, error) {
	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	profile, ok := f.users.profiles[userID]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	clone := *profile
	return &clone, nil
}

// fakeMediaStore records uploads and destroys.
type fakeMediaStore struct {
	mu         sync.Mutex
	uploads    int
	destroyed  []string
	failUpload bool
}

func (f *fakeMediaStore) Upload(_ context.Context, localPath string) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return nil, errors.New("image host unreachable")
	}
	f.uploads++
	id := fmt.Sprintf("avatars/%d", f.uploads)
	return &storage.UploadResult{
		URL:      "https://images.example.com/" + id,
		PublicID: id,
	}, nil
}

func (f *fakeMediaStore) Destroy(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicID)
	return nil
}
