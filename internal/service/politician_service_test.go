package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buffonomics/internal/cache"
	"buffonomics/internal/congress"
	"buffonomics/internal/models"
	"buffonomics/internal/repository"
)

func fetched(name string) *sourceStub {
	return &sourceStub{lookupFn: func(context.Context, string) (*models.Politician, error) {
		return profileWithTrades(name, 15000, "2024-01-02", "2024-03-04"), nil
	}}
}

func failing(err error) *sourceStub {
	return &sourceStub{lookupFn: func(context.Context, string) (*models.Politician, error) {
		return nil, err
	}}
}

func TestPoliticianService_SendsTrimmedName(t *testing.T) {
	var sent string
	src := &sourceStub{lookupFn: func(_ context.Context, name string) (*models.Politician, error) {
		sent = name
		return profileWithTrades("Nancy Pelosi", 15000, "2024-01-02"), nil
	}}
	svc := NewPoliticianService(repository.NewMemoryCongressRepository(), src, cache.New(nil), time.Hour)

	_, err := svc.Lookup(context.Background(), "  Nancy Pelosi \t", false)
	require.NoError(t, err)
	assert.Equal(t, "Nancy Pelosi", sent)
}

func TestPoliticianService_FetchThenCache(t *testing.T) {
	repo := repository.NewMemoryCongressRepository()
	src := fetched("Nancy Pelosi")
	svc := NewPoliticianService(repo, src, cache.New(nil), time.Hour)
	ctx := context.Background()

	p, err := svc.Lookup(ctx, "  Nancy Pelosi ", false)
	require.NoError(t, err)
	assert.Equal(t, "nancy pelosi", p.QueryKey)
	assert.Equal(t, 2, p.TotalTrades)
	assert.Equal(t, "2024-03-04", p.Trades[0].TradedDate)

	_, err = svc.Lookup(ctx, "nancy pelosi", false)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = svc.Lookup(ctx, "nancy pelosi", true)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestPoliticianService_StaleRefresh(t *testing.T) {
	repo := repository.NewMemoryCongressRepository()
	src := fetched("Dan Crenshaw")
	svc := NewPoliticianService(repo, src, cache.New(nil), time.Hour)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "dan crenshaw", false)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Lookup(ctx, "dan crenshaw", false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestPoliticianService_UpstreamFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		err    error
		code   string
		cached bool
	}{
		{"unauthorized without cache", congress.ErrUnauthorized, models.CodeAPIUnauthorized, false},
		{"unavailable without cache", fmt.Errorf("quiver: %w", congress.ErrUnavailable), models.CodeAPIUnavailable, false},
		{"unauthorized with cache", congress.ErrUnauthorized, "", true},
		{"unavailable with cache", congress.ErrUnavailable, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryCongressRepository()
			if tt.cached {
				_, err := repo.Upsert(ctx, "mitch mcconnell", profileWithTrades("Mitch McConnell", 1000, "2023-05-05"))
				require.NoError(t, err)
			}
			svc := NewPoliticianService(repo, failing(tt.err), cache.New(nil), time.Hour)

			p, err := svc.Lookup(ctx, "Mitch McConnell", true)
			if tt.cached {
				require.NoError(t, err)
				assert.Equal(t, "Mitch McConnell", p.Name)
				return
			}
			assert.Nil(t, p)
			require.Error(t, err)
			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, 502, appErr.Status)
		})
	}
}

func TestPoliticianService_NotFoundAndMissing(t *testing.T) {
	empty := &sourceStub{lookupFn: func(context.Context, string) (*models.Politician, error) { return nil, nil }}
	svc := NewPoliticianService(repository.NewMemoryCongressRepository(), empty, cache.New(nil), time.Hour)

	_, err := svc.Lookup(context.Background(), "nobody at all", false)
	assert.Equal(t, models.CodeNotFound, appCode(t, err))

	_, err = svc.Lookup(context.Background(), "   ", false)
	assert.Equal(t, models.CodeMissing, appCode(t, err))
	assert.Equal(t, 1, empty.calls)
}

func TestPoliticianService_NoSource(t *testing.T) {
	svc := NewPoliticianService(repository.NewMemoryCongressRepository(), nil, cache.New(nil), time.Hour)
	_, err := svc.Lookup(context.Background(), "nancy pelosi", false)
	assert.Equal(t, models.CodeNotFound, appCode(t, err))
}

func TestPoliticianService_RepositoryFailuresDegrade(t *testing.T) {
	repo := &congressRepoStub{
		getByKeyFn: func(context.Context, string) (*models.Politician, error) {
			return nil, models.NewInternalError(errors.New("read failed"))
		},
		upsertFn: func(context.Context, string, *models.Politician) (*models.Politician, error) {
			return nil, models.NewInternalError(errors.New("write failed"))
		},
	}
	svc := NewPoliticianService(repo, fetched("Ro Khanna"), cache.New(nil), time.Hour)

	p, err := svc.Lookup(context.Background(), "Ro Khanna", false)
	require.NoError(t, err)
	assert.Equal(t, "ro khanna", p.QueryKey)
	assert.Equal(t, "Ro Khanna", p.Name)
}

func TestPoliticianService_SearchAndHighlights(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryCongressRepository()
	for name, vol := range map[string]float64{"Nancy Pelosi": 900, "Nancy Mace": 50, "Josh Gottheimer": 5000} {
		_, err := repo.Upsert(ctx, name, profileWithTrades(name, vol, "2024-01-01"))
		require.NoError(t, err)
	}

	s := miniredis.RunT(t)
	client, err := cache.NewClient(s.Addr())
	require.NoError(t, err)
	svc := NewPoliticianService(repo, nil, cache.New(client), time.Hour)

	found, err := svc.Search(ctx, "nancy", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Nancy Mace", found[0].Name)

	top, err := svc.Highlights(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Josh Gottheimer", top[0].Name)
	assert.Equal(t, "Nancy Pelosi", top[1].Name)
	assert.True(t, s.Exists(cache.HighlightsKey(2)))

	_, err = repo.Upsert(ctx, "Big Trader", profileWithTrades("Big Trader", 1e9, "2024-02-01"))
	require.NoError(t, err)
	again, err := svc.Highlights(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Josh Gottheimer", again[0].Name)
}
