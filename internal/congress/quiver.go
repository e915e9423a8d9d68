package congress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
	"buffonomics/internal/observability"
	"buffonomics/internal/validation"
)

const (
	quiverUpstream   = "quiver"
	quiverBreaker    = "quiver-api"
	maxResponseBytes = 32 << 20

	DefaultPageSize  = 500
	DefaultTimeout   = 12 * time.Second
	DefaultLivePath  = "/beta/live/congresstrading"
	DefaultRateLimit = 5
)

// FallbackPaths are queried after the configured trades path.
var FallbackPaths = []string{
	"/beta/bulk/congresstrading",
	"/beta/congresstrading",
	"/beta/alltransactions",
	"/beta/housetrading",
	"/beta/senatetrading",
	"/beta/live/housetrading",
	"/beta/live/senatetrading",
	"/beta/lawmakers/trades",
	"/beta/live/lawmakers/trades",
}

// QuiverConfig configures the data provider client.
type QuiverConfig struct {
	BaseURL    string
	APIKey     string
	TradesPath string
	ExtraPaths []string
	LivePath   string
	PageSize   int
	Timeout    time.Duration
	// RateLimit caps outbound requests per second. Zero or less disables pacing.
	RateLimit float64
}

// QuiverClient fetches congressional trading records from the data provider.
type QuiverClient struct {
	cfg     QuiverConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]Record]
	limiter *rate.Limiter
	now     func() time.Time
}

// NewQuiverClient builds a client. A nil httpClient gets one with cfg.Timeout.
func NewQuiverClient(cfg QuiverConfig, httpClient *http.Client) *QuiverClient {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.LivePath == "" {
		cfg.LivePath = DefaultLivePath
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	observability.CircuitBreakerState.WithLabelValues(quiverBreaker).Set(0)

	return &QuiverClient{
		cfg:     cfg,
		http:    httpClient,
		breaker: newBreaker(quiverBreaker),
		limiter: limiter,
		now:     time.Now,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker[[]Record] {
	return gobreaker.NewCircuitBreaker[[]Record](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		// Rejected credentials are a configuration problem, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			middleware.Logger.Info("Circuit breaker state transition",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			observability.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Enabled reports whether an API key is configured.
func (q *QuiverClient) Enabled() bool {
	return strings.TrimSpace(q.cfg.APIKey) != ""
}

// Endpoints lists the paths queried for a lookup, in order.
func (q *QuiverClient) Endpoints() []string {
	out := make([]string, 0, len(FallbackPaths)+len(q.cfg.ExtraPaths)+1)
	if p := strings.TrimSpace(q.cfg.TradesPath); p != "" {
		out = append(out, p)
	}
	out = append(out, FallbackPaths...)
	for _, p := range q.cfg.ExtraPaths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isCongressPath(path string) bool {
	return strings.Contains(strings.ToLower(path), "congresstrading")
}

func (q *QuiverClient) params(path, name string, page int) url.Values {
	v := url.Values{}
	lower := strings.ToLower(path)
	congress := isCongressPath(path)
	if !congress {
		v.Set("startDate", q.now().AddDate(-5, 0, 0).Format(DateLayout))
	}
	if strings.Contains(lower, "alltransactions") {
		v.Set("name", name)
		v.Set("representative", name)
	}
	if congress {
		v.Set("representative", name)
		v.Set("normalized", "true")
		v.Set("version", "V2")
		v.Set("nonstock", "false")
		v.Set("page", strconv.Itoa(page))
		v.Set("page_size", strconv.Itoa(q.cfg.PageSize))
	}
	return v
}

// FetchDataset collects every record path returns for name. Congress endpoints are
// paged until a short page. A 404 yields an empty dataset.
func (q *QuiverClient) FetchDataset(ctx context.Context, path, name string) ([]Record, error) {
	if path == "" {
		return nil, nil
	}
	var out []Record
	for page := 1; ; page++ {
		batch, err := q.get(ctx, path, q.params(path, name, page))
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if !isCongressPath(path) || len(batch) < q.cfg.PageSize {
			return out, nil
		}
	}
}

func (q *QuiverClient) get(ctx context.Context, path string, params url.Values) ([]Record, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	records, err := q.breaker.Execute(func() ([]Record, error) {
		return q.do(ctx, path, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		middleware.Logger.WarnContext(ctx, "Quiver request rejected by circuit breaker", slog.String("path", path))
		observability.UpstreamRequests.WithLabelValues(path, "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return records, err
}

func (q *QuiverClient) do(ctx context.Context, path string, params url.Values) (records []Record, err error) {
	start := time.Now()
	ctx, span := observability.StartClientSpan(ctx, quiverUpstream, path)
	outcome := "ok"
	defer func() {
		observability.ObserveUpstream(path, outcome, start)
		observability.EndSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	defer cancel()

	endpoint := q.cfg.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Token "+q.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	middleware.Logger.DebugContext(ctx, "Quiver request", slog.String("path", path), slog.String("params", params.Encode()))

	resp, err := q.http.Do(req)
	if err != nil {
		outcome = "error"
		middleware.Logger.WarnContext(ctx, "Quiver request failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		outcome = "unauthorized"
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		outcome = "not_found"
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		outcome = "error"
		middleware.Logger.WarnContext(ctx, "Quiver fetch failed", slog.String("path", path), slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, resp.StatusCode)
	}

	records, err = decodeRecords(io.LimitReader(resp.Body, maxResponseBytes), path)
	if err != nil {
		outcome = "decode_error"
		middleware.Logger.WarnContext(ctx, "Quiver response undecodable", slog.String("path", path), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	middleware.Logger.DebugContext(ctx, "Quiver response", slog.String("path", path), slog.Int("status", resp.StatusCode), slog.Int("count", len(records)))
	return records, nil
}

// decodeRecords accepts a bare array or an object with a data array. Elements that
// are not objects are skipped.
func decodeRecords(r io.Reader, source string) ([]Record, error) {
	var body any
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, err
	}
	var items []any
	switch t := body.(type) {
	case []any:
		items = t
	case map[string]any:
		items, _ = t["data"].([]any)
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, NewRecord(source, fields))
	}
	return out, nil
}

// Lookup aggregates every endpoint, keeps the records naming the politician and
// shapes the deduplicated result. Any endpoint error aborts the lookup.
func (q *QuiverClient) Lookup(ctx context.Context, name string) (*models.Politician, error) {
	if !q.Enabled() {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	key := validation.NormalizeQuery(name)
	if key == "" {
		return nil, nil
	}

	var aggregated []Record
	for _, path := range q.Endpoints() {
		batch, err := q.FetchDataset(ctx, path, name)
		if err != nil {
			return nil, err
		}
		aggregated = append(aggregated, batch...)
	}
	if len(aggregated) == 0 {
		return nil, nil
	}

	matching := FilterByName(aggregated, name)
	if len(matching) == 0 {
		return nil, nil
	}
	return BuildProfile(key, Dedupe(matching)), nil
}

// RecentTrades returns the newest trades from the live feed, at most limit of them.
func (q *QuiverClient) RecentTrades(ctx context.Context, limit int) ([]FeedTrade, error) {
	if !q.Enabled() {
		return nil, nil
	}
	records, err := q.get(ctx, q.cfg.LivePath, nil)
	if err != nil {
		return nil, err
	}

	out := make([]FeedTrade, 0, len(records))
	for _, r := range records {
		t := BuildTrade(r)
		if t.StockSymbol == "" {
			continue
		}
		out = append(out, FeedTrade{
			Politician: RecordName(r),
			Chamber:    ProfileChamberChain.Value(r),
			Trade:      t,
		})
	}
	sortFeed(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
