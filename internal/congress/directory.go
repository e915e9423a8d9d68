package congress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
	"buffonomics/internal/observability"
	"buffonomics/internal/validation"
)

const directoryUpstream = "directory"

// DirectoryClient queries a politician directory service that answers
// GET <url>?name=<query> with an already shaped profile.
type DirectoryClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewDirectoryClient returns nil when baseURL is empty; ChainSource skips nil entries.
func NewDirectoryClient(baseURL string, timeout time.Duration, httpClient *http.Client) *DirectoryClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &DirectoryClient{baseURL: baseURL, http: httpClient, timeout: timeout}
}

func (d *DirectoryClient) Lookup(ctx context.Context, name string) (p *models.Politician, err error) {
	if d == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	key := validation.NormalizeQuery(name)
	if key == "" {
		return nil, nil
	}

	start := time.Now()
	ctx, span := observability.StartClientSpan(ctx, directoryUpstream, "lookup")
	outcome := "ok"
	defer func() {
		observability.ObserveUpstream(directoryUpstream, outcome, start)
		observability.EndSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	u, err := url.Parse(d.baseURL)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("%w: directory url: %v", ErrUnavailable, err)
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		outcome = "error"
		middleware.Logger.WarnContext(ctx, "Directory fetch failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "error"
		middleware.Logger.WarnContext(ctx, "Directory fetch failed", slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: directory returned %d", ErrUnavailable, resp.StatusCode)
	}

	var payload ExternalPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		outcome = "decode_error"
		return nil, fmt.Errorf("%w: decode directory payload: %v", ErrUnavailable, err)
	}
	return FormatExternalPayload(key, &payload), nil
}
