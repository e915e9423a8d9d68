package congress

import (
	"context"
	"errors"
	"sort"

	"buffonomics/internal/models"
	"buffonomics/internal/validation"
)

var (
	// ErrUnauthorized means the provider rejected the configured credentials.
	ErrUnauthorized = errors.New("congress: upstream rejected credentials")
	// ErrUnavailable means the provider could not be reached or answered badly.
	ErrUnavailable = errors.New("congress: upstream unavailable")
)

// Source looks a politician up by free-text name. A nil profile with a nil error
// means the source has no data for the name.
type Source interface {
	Lookup(ctx context.Context, name string) (*models.Politician, error)
}

// FeedTrade is one entry of the recent trades feed.
type FeedTrade struct {
	Politician string
	Chamber    string
	Trade      models.Trade
}

// Feed lists the most recent disclosed trades across all politicians.
type Feed interface {
	RecentTrades(ctx context.Context, limit int) ([]FeedTrade, error)
}

func sortFeed(items []FeedTrade) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Trade.EffectiveDate() > items[j].Trade.EffectiveDate()
	})
}

// ChainSource asks each source in order and returns the first profile found.
// An error stops the chain.
type ChainSource []Source

func (c ChainSource) Lookup(ctx context.Context, name string) (*models.Politician, error) {
	if validation.NormalizeQuery(name) == "" {
		return nil, nil
	}
	for _, s := range c {
		if s == nil {
			continue
		}
		p, err := s.Lookup(ctx, name)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}
