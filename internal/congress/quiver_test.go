package congress

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buffonomics/internal/models"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func newQuiverTestClient(t *testing.T, handler http.HandlerFunc) *QuiverClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewQuiverClient(QuiverConfig{
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		PageSize: 2,
		Timeout:  2 * time.Second,
		LivePath: "/live",
	}, srv.Client())
}

func pelosi(ticker, tx, date, amountRange string) map[string]any {
	return map[string]any{
		"Representative":  "Nancy Pelosi",
		"Ticker":          ticker,
		"Transaction":     tx,
		"TransactionDate": date,
		"Range":           amountRange,
	}
}

func TestQuiverClient_Endpoints(t *testing.T) {
	q := NewQuiverClient(QuiverConfig{
		TradesPath: "/custom",
		ExtraPaths: []string{" /extra ", ""},
	}, nil)

	endpoints := q.Endpoints()
	require.Len(t, endpoints, len(FallbackPaths)+2)
	assert.Equal(t, "/custom", endpoints[0])
	assert.Equal(t, FallbackPaths, endpoints[1:len(endpoints)-1])
	assert.Equal(t, "/extra", endpoints[len(endpoints)-1])
}

func TestQuiverClient_Params(t *testing.T) {
	q := NewQuiverClient(QuiverConfig{PageSize: 50}, nil)

	congress := q.params("/beta/bulk/congresstrading", "Nancy Pelosi", 3)
	assert.Equal(t, "Nancy Pelosi", congress.Get("representative"))
	assert.Equal(t, "true", congress.Get("normalized"))
	assert.Equal(t, "V2", congress.Get("version"))
	assert.Equal(t, "false", congress.Get("nonstock"))
	assert.Equal(t, "3", congress.Get("page"))
	assert.Equal(t, "50", congress.Get("page_size"))
	assert.Empty(t, congress.Get("startDate"))

	all := q.params("/beta/alltransactions", "Nancy Pelosi", 1)
	assert.Equal(t, "Nancy Pelosi", all.Get("name"))
	assert.Equal(t, "Nancy Pelosi", all.Get("representative"))
	assert.NotEmpty(t, all.Get("startDate"))
	assert.Empty(t, all.Get("page"))

	house := q.params("/beta/housetrading", "Nancy Pelosi", 1)
	assert.Equal(t, q.now().AddDate(-5, 0, 0).Format(DateLayout), house.Get("startDate"))
	assert.Empty(t, house.Get("representative"))
}

func TestQuiverClient_LookupAggregatesAndDedupes(t *testing.T) {
	var bulkPages atomic.Int32
	q := newQuiverTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/beta/bulk/congresstrading":
			bulkPages.Add(1)
			assert.Equal(t, "Nancy Pelosi", r.URL.Query().Get("representative"))
			if r.URL.Query().Get("page") == "1" {
				writeJSON(t, w, []any{
					pelosi("AAPL", "Purchase", "2024-05-01", "$1,001 - $15,000"),
					map[string]any{"Representative": "Someone Else", "Ticker": "X"},
				})
				return
			}
			writeJSON(t, w, []any{pelosi("MSFT", "Sale", "2024-04-01", "$15,001 - $50,000")})
		case "/beta/housetrading":
			assert.NotEmpty(t, r.URL.Query().Get("startDate"))
			withDescription := pelosi("AAPL", "Purchase", "2024-05-01", "$1,001 - $15,000")
			withDescription["Description"] = "Apple Inc"
			writeJSON(t, w, map[string]any{"data": []any{withDescription, "junk", 42}})
		default:
			http.NotFound(w, r)
		}
	})

	p, err := q.Lookup(context.Background(), "  Nancy Pelosi ")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int32(2), bulkPages.Load())
	assert.Equal(t, "nancy pelosi", p.QueryKey)
	assert.Equal(t, "Nancy Pelosi", p.Name)
	assert.Equal(t, 2, p.TotalTrades)
	require.Len(t, p.Trades, 2)
	assert.Equal(t, "AAPL", p.Trades[0].StockSymbol)
	assert.Equal(t, "Apple Inc", p.Trades[0].Description)
	assert.Equal(t, "MSFT", p.Trades[1].StockSymbol)
	assert.Equal(t, models.TradeTypeSell, p.Trades[1].Type)
}

func TestQuiverClient_LookupNoMatch(t *testing.T) {
	q := newQuiverTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/beta/congresstrading" {
			writeJSON(t, w, []any{map[string]any{"Representative": "Someone Else", "Ticker": "X"}})
			return
		}
		http.NotFound(w, r)
	})

	p, err := q.Lookup(context.Background(), "Nancy Pelosi")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestQuiverClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			wantErr: ErrUnauthorized,
		},
		{
			name:    "forbidden",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusForbidden) },
			wantErr: ErrUnauthorized,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantErr: ErrUnavailable,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQuiverTestClient(t, tt.handler)
			p, err := q.Lookup(context.Background(), "Nancy Pelosi")
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestQuiverClient_NotFoundIsEmpty(t *testing.T) {
	q := newQuiverTestClient(t, http.NotFound)

	records, err := q.FetchDataset(context.Background(), "/beta/bulk/congresstrading", "Nancy Pelosi")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQuiverClient_DisabledWithoutKey(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := NewQuiverClient(QuiverConfig{BaseURL: srv.URL}, srv.Client())
	assert.False(t, q.Enabled())

	p, err := q.Lookup(context.Background(), "Nancy Pelosi")
	require.NoError(t, err)
	assert.Nil(t, p)

	feed, err := q.RecentTrades(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, feed)
	assert.Equal(t, int32(0), hits.Load())
}

func TestQuiverClient_BreakerOpensOnOutage(t *testing.T) {
	var hits atomic.Int32
	q := newQuiverTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := q.FetchDataset(ctx, "/beta/housetrading", "x")
		require.ErrorIs(t, err, ErrUnavailable)
	}

	_, err := q.FetchDataset(ctx, "/beta/housetrading", "x")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(10), hits.Load())
}

func TestQuiverClient_UnauthorizedDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	q := newQuiverTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := q.FetchDataset(ctx, "/beta/housetrading", "x")
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	assert.Equal(t, int32(12), hits.Load())
}

func TestQuiverClient_RecentTrades(t *testing.T) {
	q := newQuiverTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/live", r.URL.Path)
		writeJSON(t, w, []any{
			map[string]any{"Representative": "A", "Ticker": "OLD", "TransactionDate": "2024-01-01", "Transaction": "Purchase"},
			map[string]any{"Representative": "B", "Ticker": "NEW", "TransactionDate": "2024-03-01", "Transaction": "Sale", "Chamber": "Senate"},
			map[string]any{"Representative": "C", "TransactionDate": "2024-04-01"},
			map[string]any{"Representative": "D", "Ticker": "MID", "ReportDate": "2024-02-01"},
		})
	})

	feed, err := q.RecentTrades(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "NEW", feed[0].Trade.StockSymbol)
	assert.Equal(t, "B", feed[0].Politician)
	assert.Equal(t, "Senate", feed[0].Chamber)
	assert.Equal(t, "MID", feed[1].Trade.StockSymbol)
}

func TestDirectoryClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Jane Doe", r.URL.Query().Get("name"))
		assert.Equal(t, "1", r.URL.Query().Get("v"))
		writeJSON(t, w, map[string]any{
			"name":   "Jane Doe",
			"party":  "Independent",
			"trades": []any{map[string]any{"stockSymbol": "TSLA", "transactionType": "Purchase"}},
		})
	}))
	defer srv.Close()

	d := NewDirectoryClient(srv.URL+"/people?v=1", time.Second, srv.Client())
	p, err := d.Lookup(context.Background(), " Jane Doe  ")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "jane doe", p.QueryKey)
	assert.Equal(t, 1, p.TotalTrades)
}

func TestDirectoryClient_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDirectoryClient(srv.URL, time.Second, srv.Client())
	_, err := d.Lookup(context.Background(), "Jane Doe")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDirectoryClient_Unconfigured(t *testing.T) {
	d := NewDirectoryClient("  ", 0, nil)
	assert.Nil(t, d)

	p, err := d.Lookup(context.Background(), " Jane Doe  ")
	require.NoError(t, err)
	assert.Nil(t, p)
}

type sourceFunc func(ctx context.Context, name string) (*models.Politician, error)

func (f sourceFunc) Lookup(ctx context.Context, name string) (*models.Politician, error) {
	return f(ctx, name)
}

func TestChainSource(t *testing.T) {
	empty := sourceFunc(func(context.Context, string) (*models.Politician, error) { return nil, nil })
	found := sourceFunc(func(_ context.Context, name string) (*models.Politician, error) {
		return &models.Politician{Name: name}, nil
	})
	failing := sourceFunc(func(context.Context, string) (*models.Politician, error) { return nil, ErrUnauthorized })

	t.Run("falls through to the next source", func(t *testing.T) {
		p, err := ChainSource{empty, nil, found}.Lookup(context.Background(), "Jane")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Jane", p.Name)
	})

	t.Run("error stops the chain", func(t *testing.T) {
		p, err := ChainSource{failing, found}.Lookup(context.Background(), "Jane")
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Nil(t, p)
	})

	t.Run("blank name", func(t *testing.T) {
		p, err := ChainSource{failing}.Lookup(context.Background(), "   ")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("nothing found", func(t *testing.T) {
		p, err := ChainSource{empty}.Lookup(context.Background(), "Jane")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
