package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buffonomics/internal/cache"
	"buffonomics/internal/congress"
	"buffonomics/internal/models"
)

const (
	defaultMovers = 8
	maxMovers     = 50
)

// Mover is one row of the dashboard's recent trades list.
type Mover struct {
	Ticker        string   `json:"ticker"`
	Sentiment     string   `json:"sentiment"`
	Summary       string   `json:"summary"`
	Role          string   `json:"role"`
	Person        string   `json:"person"`
	FormattedDate string   `json:"formattedDate"`
	Range         string   `json:"range"`
	AmountValue   *float64 `json:"amountValue"`
}

// MarketService turns the live congressional feed into dashboard rows.
type MarketService struct {
	feed  congress.Feed
	cache *cache.Cache
	ttl   time.Duration
}

// NewMarketService returns a new MarketService.
func NewMarketService(feed congress.Feed, c *cache.Cache, ttl time.Duration) *MarketService {
	return &MarketService{feed: feed, cache: c, ttl: ttl}
}

// Movers returns the newest disclosed trades, cached for the configured TTL.
func (s *MarketService) Movers(ctx context.Context, limit int) ([]Mover, error) {
	if limit <= 0 {
		limit = defaultMovers
	}
	if limit > maxMovers {
		limit = maxMovers
	}

	var items []Mover
	err := s.cache.Aside(ctx, cache.MoversKey(limit), &items, s.ttl, func() error {
		items = []Mover{}
		if s.feed == nil {
			return nil
		}
		trades, err := s.feed.RecentTrades(ctx, limit)
		if err != nil {
			return upstreamError(err)
		}
		for _, t := range trades {
			items = append(items, toMover(t))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Mover{}
	}
	return items, nil
}

func toMover(f congress.FeedTrade) Mover {
	person := strings.TrimSpace(f.Politician)
	if person == "" {
		person = "Unknown member"
	}
	sentiment, verb := "positive", "purchase"
	if f.Trade.Type == models.TradeTypeSell {
		sentiment, verb = "negative", "sale"
	}
	return Mover{
		Ticker:        f.Trade.StockSymbol,
		Sentiment:     sentiment,
		Summary:       fmt.Sprintf("%s reported a %s of %s", person, verb, f.Trade.StockSymbol),
		Role:          role(f.Chamber),
		Person:        person,
		FormattedDate: formatDate(f.Trade.EffectiveDate()),
		Range:         f.Trade.AmountRange,
		AmountValue:   f.Trade.AmountValue,
	}
}

func role(chamber string) string {
	c := strings.ToLower(chamber)
	switch {
	case strings.Contains(c, "senate"):
		return "Sen."
	case strings.Contains(c, "house"), strings.Contains(c, "representative"):
		return "Rep."
	default:
		return "Member"
	}
}

func formatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "Date N/A"
	}
	return t.Format("Jan 2, 2006")
}
