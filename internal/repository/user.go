package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"buffonomics/internal/models"
)

const usersTable = "users"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	// Delete removes the user and every follow the user owns.
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) first(ctx context.Context, method string, query string, arg any) (u *models.User, err error) {
	ctx, done := instrument(ctx, method, usersTable)
	defer func() { done(err) }()

	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return r.first(ctx, "GetByID", "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "GetByEmail", "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "GetByUsername", "username = ?", strings.TrimSpace(username))
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := instrument(ctx, "Create", usersTable)
	defer func() { done(err) }()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) (err error) {
	ctx, done := instrument(ctx, "Delete", usersTable)
	defer func() { done(err) }()

	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if err := tx.Where("user_key IN ?", []string{user.Username, user.Email}).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("User", id)
		}
		return models.NewInternalError(txErr)
	}
	return nil
}

// MemoryUserRepository is a process-local UserRepository. Deleting a user also
// clears the user's follows from the linked follow repository, when one is given.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	users   map[uint]models.User
	nextID  uint
	follows *MemoryFollowRepository
	now     func() time.Time
}

// NewMemoryUserRepository returns an empty in-memory repository.
func NewMemoryUserRepository(follows *MemoryFollowRepository) *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[uint]models.User),
		follows: follows,
		now:     time.Now,
	}
}

func (m *MemoryUserRepository) find(match func(models.User) bool) *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			found := u
			return &found
		}
	}
	return nil
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	return m.find(func(u models.User) bool { return u.ID == id }), nil
}

func (m *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.find(func(u models.User) bool { return u.Email == email }), nil
}

func (m *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	return m.find(func(u models.User) bool { return u.Username == username }), nil
}

func (m *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return models.NewConflictError("User already exists")
		}
	}
	m.nextID++
	now := m.now()
	user.ID = m.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryUserRepository) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.NewNotFoundError("User", id)
	}
	delete(m.users, id)
	if m.follows != nil {
		m.follows.removeUser(user.Username, user.Email)
	}
	return nil
}
