package service

import (
	"context"

	"buffonomics/internal/congress"
	"buffonomics/internal/models"
)

type sourceStub struct {
	lookupFn func(context.Context, string) (*models.Politician, error)
	calls    int
}

func (s *sourceStub) Lookup(ctx context.Context, name string) (*models.Politician, error) {
	s.calls++
	return s.lookupFn(ctx, name)
}

type feedStub struct {
	recentFn func(context.Context, int) ([]congress.FeedTrade, error)
	calls    int
}

func (s *feedStub) RecentTrades(ctx context.Context, limit int) ([]congress.FeedTrade, error) {
	s.calls++
	return s.recentFn(ctx, limit)
}

type congressRepoStub struct {
	getByKeyFn   func(context.Context, string) (*models.Politician, error)
	upsertFn     func(context.Context, string, *models.Politician) (*models.Politician, error)
	searchFn     func(context.Context, string, int) ([]models.Politician, error)
	listRecentFn func(context.Context, int) ([]models.Politician, error)
}

func (s *congressRepoStub) GetByKey(ctx context.Context, key string) (*models.Politician, error) {
	return s.getByKeyFn(ctx, key)
}
func (s *congressRepoStub) Upsert(ctx context.Context, key string, p *models.Politician) (*models.Politician, error) {
	return s.upsertFn(ctx, key, p)
}
func (s *congressRepoStub) Search(ctx context.Context, q string, limit int) ([]models.Politician, error) {
	return s.searchFn(ctx, q, limit)
}
func (s *congressRepoStub) ListRecent(ctx context.Context, limit int) ([]models.Politician, error) {
	return s.listRecentFn(ctx, limit)
}

func profileWithTrades(name string, volume float64, dates ...string) *models.Politician {
	p := &models.Politician{Name: name, Party: "Democratic Party", TradeVolume: models.Float(volume)}
	for _, d := range dates {
		p.Trades = append(p.Trades, models.Trade{StockSymbol: "AAPL", TradedDate: d, Type: models.TradeTypeBuy})
	}
	p.TotalTrades = len(p.Trades)
	return p
}
