package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"buffonomics/internal/models"
	"buffonomics/internal/validation"
)

const followsTable = "follows"

// FollowRepository stores which politicians a user follows.
type FollowRepository interface {
	// Follow is idempotent; following twice leaves one entry.
	Follow(ctx context.Context, userKey, politicianKey, name string) error
	// Unfollow is idempotent; removing a missing follow is not an error.
	Unfollow(ctx context.Context, userKey, politicianKey string) error
	// List returns the user's follows newest first.
	List(ctx context.Context, userKey string) ([]models.Follow, error)
	// Get returns nil, nil when the user does not follow politicianKey.
	Get(ctx context.Context, userKey, politicianKey string) (*models.Follow, error)
	IsFollowing(ctx context.Context, userKey, politicianKey string) (bool, error)
}

func followArgs(userKey, politicianKey string) (string, string, error) {
	userKey = strings.TrimSpace(userKey)
	politicianKey = validation.NormalizeQuery(politicianKey)
	if userKey == "" {
		return "", "", models.NewMissingError("user")
	}
	if politicianKey == "" {
		return "", "", models.NewMissingError("politician")
	}
	return userKey, politicianKey, nil
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a gorm backed FollowRepository.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Follow(ctx context.Context, userKey, politicianKey, name string) (err error) {
	ctx, done := instrument(ctx, "Follow", followsTable)
	defer func() { done(err) }()

	userKey, politicianKey, err = followArgs(userKey, politicianKey)
	if err != nil {
		return err
	}
	follow := models.Follow{
		UserKey:        userKey,
		PoliticianKey:  politicianKey,
		PoliticianName: strings.TrimSpace(name),
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_key"}, {Name: "politician_key"}},
			DoNothing: true,
		}).
		Create(&follow).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *followRepository) Unfollow(ctx context.Context, userKey, politicianKey string) (err error) {
	ctx, done := instrument(ctx, "Unfollow", followsTable)
	defer func() { done(err) }()

	userKey, politicianKey, err = followArgs(userKey, politicianKey)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Where("user_key = ? AND politician_key = ?", userKey, politicianKey).
		Delete(&models.Follow{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *followRepository) List(ctx context.Context, userKey string) (out []models.Follow, err error) {
	ctx, done := instrument(ctx, "List", followsTable)
	defer func() { done(err) }()

	out = []models.Follow{}
	if err := r.db.WithContext(ctx).
		Where("user_key = ?", strings.TrimSpace(userKey)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *followRepository) Get(ctx context.Context, userKey, politicianKey string) (f *models.Follow, err error) {
	ctx, done := instrument(ctx, "Get", followsTable)
	defer func() { done(err) }()

	userKey, politicianKey, err = followArgs(userKey, politicianKey)
	if err != nil {
		return nil, err
	}
	var follow models.Follow
	if err := r.db.WithContext(ctx).
		Where("user_key = ? AND politician_key = ?", userKey, politicianKey).
		First(&follow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &follow, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, userKey, politicianKey string) (bool, error) {
	f, err := r.Get(ctx, userKey, politicianKey)
	if err != nil {
		return false, err
	}
	return f != nil, nil
}

// MemoryFollowRepository is a process-local FollowRepository.
type MemoryFollowRepository struct {
	mu      sync.RWMutex
	follows []models.Follow
	nextID  uint
	now     func() time.Time
}

// NewMemoryFollowRepository returns an empty in-memory repository.
func NewMemoryFollowRepository() *MemoryFollowRepository {
	return &MemoryFollowRepository{now: time.Now}
}

func (m *MemoryFollowRepository) indexOf(userKey, politicianKey string) int {
	for i, f := range m.follows {
		if f.UserKey == userKey && f.PoliticianKey == politicianKey {
			return i
		}
	}
	return -1
}

func (m *MemoryFollowRepository) Follow(_ context.Context, userKey, politicianKey, name string) error {
	userKey, politicianKey, err := followArgs(userKey, politicianKey)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(userKey, politicianKey) >= 0 {
		return nil
	}
	m.nextID++
	m.follows = append(m.follows, models.Follow{
		ID:             m.nextID,
		UserKey:        userKey,
		PoliticianKey:  politicianKey,
		PoliticianName: strings.TrimSpace(name),
		CreatedAt:      m.now(),
	})
	return nil
}

func (m *MemoryFollowRepository) Unfollow(_ context.Context, userKey, politicianKey string) error {
	userKey, politicianKey, err := followArgs(userKey, politicianKey)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(userKey, politicianKey); i >= 0 {
		m.follows = append(m.follows[:i], m.follows[i+1:]...)
	}
	return nil
}

func (m *MemoryFollowRepository) List(_ context.Context, userKey string) ([]models.Follow, error) {
	userKey = strings.TrimSpace(userKey)
	m.mu.RLock()
	out := make([]models.Follow, 0)
	for _, f := range m.follows {
		if f.UserKey == userKey {
			out = append(out, f)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryFollowRepository) Get(_ context.Context, userKey, politicianKey string) (*models.Follow, error) {
	userKey, politicianKey, err := followArgs(userKey, politicianKey)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(userKey, politicianKey)
	if i < 0 {
		return nil, nil
	}
	f := m.follows[i]
	return &f, nil
}

func (m *MemoryFollowRepository) IsFollowing(ctx context.Context, userKey, politicianKey string) (bool, error) {
	f, err := m.Get(ctx, userKey, politicianKey)
	if err != nil {
		return false, err
	}
	return f != nil, nil
}

// removeUser drops every follow owned by one of the given user keys.
func (m *MemoryFollowRepository) removeUser(userKeys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.follows[:0]
	for _, f := range m.follows {
		owned := false
		for _, k := range userKeys {
			if f.UserKey == k {
				owned = true
				break
			}
		}
		if !owned {
			kept = append(kept, f)
		}
	}
	m.follows = kept
}
