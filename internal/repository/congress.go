package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"buffonomics/internal/congress"
	"buffonomics/internal/models"
	"buffonomics/internal/validation"
)

const politiciansTable = "politicians"

// CongressRepository caches politician profiles and their trades.
type CongressRepository interface {
	// GetByKey returns nil, nil when no profile is cached under key.
	GetByKey(ctx context.Context, key string) (*models.Politician, error)
	// Upsert replaces the profile stored under key, including its full trade set.
	Upsert(ctx context.Context, key string, payload *models.Politician) (*models.Politician, error)
	// Search matches cached profile names by token containment. Trades are not loaded.
	Search(ctx context.Context, query string, limit int) ([]models.Politician, error)
	// ListRecent returns the most recently refreshed profiles without trades.
	ListRecent(ctx context.Context, limit int) ([]models.Politician, error)
}

// preparePayload copies payload into the stored shape: normalized key, trades newest
// first with their position recorded, and a trade count that matches the set.
func preparePayload(key string, payload *models.Politician) (*models.Politician, error) {
	if payload == nil {
		return nil, models.NewValidationError(models.CodeInvalid, "profile payload is required")
	}
	key = validation.NormalizeQuery(key)
	if key == "" {
		return nil, models.NewMissingError("name")
	}
	p := payload.Clone()
	p.ID = 0
	p.QueryKey = key
	if strings.TrimSpace(p.Name) == "" {
		p.Name = key
	}
	models.SortTradesNewestFirst(p.Trades)
	for i := range p.Trades {
		p.Trades[i].ID = 0
		p.Trades[i].PoliticianID = 0
		p.Trades[i].Seq = i
	}
	p.TotalTrades = len(p.Trades)
	return p, nil
}

type congressRepository struct {
	db *gorm.DB
}

// NewCongressRepository returns a gorm backed CongressRepository.
func NewCongressRepository(db *gorm.DB) CongressRepository {
	return &congressRepository{db: db}
}

func (r *congressRepository) GetByKey(ctx context.Context, key string) (p *models.Politician, err error) {
	ctx, done := instrument(ctx, "GetByKey", politiciansTable)
	defer func() { done(err) }()

	key = validation.NormalizeQuery(key)
	if key == "" {
		return nil, nil
	}

	var politician models.Politician
	if err := r.db.WithContext(ctx).
		Preload("Trades", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC").Order("id ASC")
		}).
		Where("query_key = ?", key).
		First(&politician).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &politician, nil
}

func (r *congressRepository) Upsert(ctx context.Context, key string, payload *models.Politician) (p *models.Politician, err error) {
	ctx, done := instrument(ctx, "Upsert", politiciansTable)
	defer func() { done(err) }()

	profile, err := preparePayload(key, payload)
	if err != nil {
		return nil, err
	}
	trades := profile.Trades

	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Politician
		findErr := tx.Where("query_key = ?", profile.QueryKey).First(&existing).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			if err := tx.Omit(clause.Associations).Create(profile).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			profile.ID = existing.ID
			profile.CreatedAt = existing.CreatedAt
			if err := tx.Omit(clause.Associations).Save(profile).Error; err != nil {
				return err
			}
			if err := tx.Where("politician_id = ?", profile.ID).Delete(&models.Trade{}).Error; err != nil {
				return err
			}
		}

		for i := range trades {
			trades[i].PoliticianID = profile.ID
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(&trades, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		if isUniqueConstraintError(txErr) {
			return nil, models.NewConflictError(fmt.Sprintf("profile %q was written concurrently", profile.QueryKey))
		}
		return nil, models.NewInternalError(txErr)
	}

	profile.Trades = trades
	return profile, nil
}

func (r *congressRepository) Search(ctx context.Context, query string, limit int) (out []models.Politician, err error) {
	ctx, done := instrument(ctx, "Search", politiciansTable)
	defer func() { done(err) }()

	tokens := congress.Tokenize(query)
	if len(tokens) == 0 {
		return []models.Politician{}, nil
	}
	limit = clampLimit(limit)

	q := r.db.WithContext(ctx).Model(&models.Politician{})
	for _, t := range tokens {
		q = q.Where("LOWER(name) LIKE ?", "%"+t+"%")
	}
	var candidates []models.Politician
	if err := q.Order("name ASC").Order("id ASC").Find(&candidates).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	out = make([]models.Politician, 0, limit)
	for _, c := range candidates {
		if !congress.MatchesName(query, c.Name) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *congressRepository) ListRecent(ctx context.Context, limit int) (out []models.Politician, err error) {
	ctx, done := instrument(ctx, "ListRecent", politiciansTable)
	defer func() { done(err) }()

	if err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

// MemoryCongressRepository is a process-local CongressRepository.
type MemoryCongressRepository struct {
	mu        sync.RWMutex
	profiles  map[string]*models.Politician
	nextID    uint
	nextTrade uint
	now       func() time.Time
}

// NewMemoryCongressRepository returns an empty in-memory repository.
func NewMemoryCongressRepository() *MemoryCongressRepository {
	return &MemoryCongressRepository{
		profiles: make(map[string]*models.Politician),
		now:      time.Now,
	}
}

func (m *MemoryCongressRepository) GetByKey(_ context.Context, key string) (*models.Politician, error) {
	key = validation.NormalizeQuery(key)
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[key]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (m *MemoryCongressRepository) Upsert(_ context.Context, key string, payload *models.Politician) (*models.Politician, error) {
	profile, err := preparePayload(key, payload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.profiles[profile.QueryKey]; ok {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		profile.ID = m.nextID
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	for i := range profile.Trades {
		m.nextTrade++
		profile.Trades[i].ID = m.nextTrade
		profile.Trades[i].PoliticianID = profile.ID
	}

	m.profiles[profile.QueryKey] = profile
	return profile.Clone(), nil
}

func summary(p *models.Politician) models.Politician {
	out := *p.Clone()
	out.Trades = nil
	return out
}

func (m *MemoryCongressRepository) Search(_ context.Context, query string, limit int) ([]models.Politician, error) {
	if len(congress.Tokenize(query)) == 0 {
		return []models.Politician{}, nil
	}
	limit = clampLimit(limit)

	m.mu.RLock()
	matches := make([]models.Politician, 0)
	for _, p := range m.profiles {
		if congress.MatchesName(query, p.Name) {
			matches = append(matches, summary(p))
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemoryCongressRepository) ListRecent(_ context.Context, limit int) ([]models.Politician, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	out := make([]models.Politician, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, summary(p))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
