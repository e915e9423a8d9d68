package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
	"buffonomics/internal/repository"
	"buffonomics/internal/validation"
)

// FollowedPolitician is a follow enriched with the cached profile snapshot.
type FollowedPolitician struct {
	QueryKey    string    `json:"queryKey"`
	Name        string    `json:"name"`
	FollowedAt  time.Time `json:"followedAt"`
	Party       string    `json:"party,omitempty"`
	Position    string    `json:"position,omitempty"`
	TradeVolume *float64  `json:"tradeVolume,omitempty"`
	TotalTrades int       `json:"totalTrades,omitempty"`
	LastTraded  string    `json:"lastTraded,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
}

// FollowService manages the politicians a user follows.
type FollowService struct {
	follows  repository.FollowRepository
	profiles repository.CongressRepository
}

// NewFollowService returns a new FollowService.
func NewFollowService(follows repository.FollowRepository, profiles repository.CongressRepository) *FollowService {
	return &FollowService{follows: follows, profiles: profiles}
}

// Follow records that userKey follows politician. Following twice is a no-op.
func (s *FollowService) Follow(ctx context.Context, userKey, politician string) (*FollowedPolitician, error) {
	key := validation.NormalizeQuery(politician)
	if key == "" {
		return nil, models.NewMissingError("politician")
	}

	name := strings.TrimSpace(politician)
	profile := s.profile(ctx, key)
	if profile != nil && profile.Name != "" {
		name = profile.Name
	}

	if err := s.follows.Follow(ctx, userKey, key, name); err != nil {
		return nil, err
	}
	f, err := s.follows.Get(ctx, userKey, key)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, models.NewInternalError(nil)
	}
	item := enrich(*f, profile)
	return &item, nil
}

// Unfollow removes the follow. Removing a missing follow is a no-op.
func (s *FollowService) Unfollow(ctx context.Context, userKey, politician string) error {
	if validation.NormalizeQuery(politician) == "" {
		return models.NewMissingError("politician")
	}
	return s.follows.Unfollow(ctx, userKey, politician)
}

// List returns the user's follows newest first.
func (s *FollowService) List(ctx context.Context, userKey string) ([]FollowedPolitician, error) {
	follows, err := s.follows.List(ctx, userKey)
	if err != nil {
		return nil, err
	}
	items := make([]FollowedPolitician, 0, len(follows))
	for _, f := range follows {
		items = append(items, enrich(f, s.profile(ctx, f.PoliticianKey)))
	}
	return items, nil
}

// profile reads the cached snapshot; failures degrade to no snapshot.
func (s *FollowService) profile(ctx context.Context, key string) *models.Politician {
	if s.profiles == nil {
		return nil
	}
	p, err := s.profiles.GetByKey(ctx, key)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Follow enrichment failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil
	}
	return p
}

func enrich(f models.Follow, p *models.Politician) FollowedPolitician {
	item := FollowedPolitician{
		QueryKey:   f.PoliticianKey,
		Name:       f.PoliticianName,
		FollowedAt: f.CreatedAt,
	}
	if item.Name == "" {
		item.Name = f.PoliticianKey
	}
	if p == nil {
		return item
	}
	if p.Name != "" {
		item.Name = p.Name
	}
	item.Party = p.Party
	item.Position = p.Position
	item.TradeVolume = p.TradeVolume
	item.TotalTrades = p.TotalTrades
	item.LastTraded = p.LastTraded
	item.AvatarURL = p.AvatarURL
	return item
}
