package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"buffonomics/internal/cache"
	"buffonomics/internal/congress"
	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
	"buffonomics/internal/observability"
	"buffonomics/internal/repository"
	"buffonomics/internal/validation"
)

// highlightPool is how many recently refreshed profiles are ranked for highlights.
const highlightPool = 100

// PoliticianService serves profiles from the repository and refreshes them from
// the upstream source when they are missing or stale.
type PoliticianService struct {
	repo   repository.CongressRepository
	source congress.Source
	cache  *cache.Cache
	maxAge time.Duration
	now    func() time.Time
}

// NewPoliticianService returns a new PoliticianService. A maxAge of zero keeps
// cached profiles forever.
func NewPoliticianService(repo repository.CongressRepository, source congress.Source, c *cache.Cache, maxAge time.Duration) *PoliticianService {
	return &PoliticianService{
		repo:   repo,
		source: source,
		cache:  c,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (s *PoliticianService) isFresh(p *models.Politician) bool {
	if s.maxAge <= 0 {
		return true
	}
	return !p.UpdatedAt.IsZero() && s.now().Sub(p.UpdatedAt) < s.maxAge
}

// Lookup returns the profile for name. A fresh cached copy is served unless fresh
// is set; otherwise the source is asked and the result stored. When the source fails
// or has nothing, any cached copy is served instead.
func (s *PoliticianService) Lookup(ctx context.Context, name string, fresh bool) (*models.Politician, error) {
	key, err := validation.ParseQueryKey(name)
	if err != nil {
		return nil, err
	}

	cached, err := s.repo.GetByKey(ctx, string(key))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Cached profile read failed", slog.String("key", string(key)), slog.String("error", err.Error()))
		cached = nil
	}
	if cached != nil && !fresh && s.isFresh(cached) {
		observability.ProfileLookups.WithLabelValues(observability.LookupCached).Inc()
		return cached, nil
	}

	var (
		profile  *models.Politician
		fetchErr error
	)
	if s.source != nil {
		profile, fetchErr = s.source.Lookup(ctx, strings.TrimSpace(name))
	}

	if fetchErr == nil && profile != nil {
		stored, err := s.repo.Upsert(ctx, string(key), profile)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "Profile upsert failed", slog.String("key", string(key)), slog.String("error", err.Error()))
			profile.QueryKey = string(key)
			stored = profile
		}
		observability.ProfileLookups.WithLabelValues(observability.LookupFetched).Inc()
		return stored, nil
	}

	if cached != nil {
		if fetchErr != nil {
			middleware.Logger.WarnContext(ctx, "Serving cached profile after upstream failure",
				slog.String("key", string(key)), slog.String("error", fetchErr.Error()))
		}
		observability.ProfileLookups.WithLabelValues(observability.LookupFallback).Inc()
		return cached, nil
	}

	if fetchErr != nil {
		observability.ProfileLookups.WithLabelValues(observability.LookupFailed).Inc()
		return nil, upstreamError(fetchErr)
	}
	observability.ProfileLookups.WithLabelValues(observability.LookupNotFound).Inc()
	return nil, models.NewNotFoundError("Politician", string(key))
}

func upstreamError(err error) error {
	if errors.Is(err, congress.ErrUnauthorized) {
		return models.NewUpstreamError(models.CodeAPIUnauthorized, err)
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewUpstreamError(models.CodeAPIUnavailable, err)
}

// Search matches cached profiles by name.
func (s *PoliticianService) Search(ctx context.Context, query string, limit int) ([]models.Politician, error) {
	return s.repo.Search(ctx, query, limit)
}

// Highlights ranks recently refreshed profiles by trade volume.
func (s *PoliticianService) Highlights(ctx context.Context, limit int) ([]models.Politician, error) {
	if limit <= 0 || limit > highlightPool {
		limit = 6
	}

	var items []models.Politician
	err := s.cache.Aside(ctx, cache.HighlightsKey(limit), &items, cache.HighlightsTTL, func() error {
		recent, err := s.repo.ListRecent(ctx, highlightPool)
		if err != nil {
			return err
		}
		sort.SliceStable(recent, func(i, j int) bool {
			return volume(recent[i]) > volume(recent[j])
		})
		if len(recent) > limit {
			recent = recent[:limit]
		}
		items = recent
		return nil
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Politician{}
	}
	return items, nil
}

func volume(p models.Politician) float64 {
	if p.TradeVolume == nil {
		return 0
	}
	return *p.TradeVolume
}
