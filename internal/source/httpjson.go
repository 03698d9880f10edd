package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/config"
	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/domain/candidate"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
)

const maxResponseBytes = 4 << 20

// HTTPJSONAdapter fetches deals from a marketplace's JSON search endpoint.
// Response field locations are configured as gjson paths, so one adapter
// implementation covers every marketplace with a JSON API.
type HTTPJSONAdapter struct {
	name     string
	baseURL  string
	apiKey   string
	currency string
	paths    config.SourcePaths
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPJSONAdapter creates an adapter for one configured marketplace.
func NewHTTPJSONAdapter(name string, sc config.SourceConfig, logger *zap.Logger) (*HTTPJSONAdapter, error) {
	base := strings.TrimRight(strings.TrimSpace(sc.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}

	// Retry only transport-level failures; 429 and 5xx are left to the
	// circuit breaker so retries don't hammer an already throttling source.
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = time.Duration(sc.TimeoutSec) * time.Second
	rc.Logger = nil
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}

	return &HTTPJSONAdapter{
		name:     name,
		baseURL:  base,
		apiKey:   sc.APIKey,
		currency: sc.Currency,
		paths:    sc.Paths,
		client:   rc.StandardClient(),
		logger:   logger.With(zap.String("source", name)),
	}, nil
}

// Name returns the configured source name.
func (a *HTTPJSONAdapter) Name() string { return a.name }

// Fetch queries the marketplace search endpoint and maps the payload into
// raw candidates. Items missing a URL or title are skipped; price parsing is
// deferred to the normalizer.
func (a *HTTPJSONAdapter) Fetch(ctx context.Context, c criteria.Criteria) ([]candidate.Candidate, error) {
	req, err := a.buildRequest(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%v: %w", err, domain.ErrSourceTimeout)
		}
		return nil, fmt.Errorf("%v: %w", err, domain.ErrUpstream)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("http %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("http %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, domain.ErrUpstream)
	}

	return a.parseBody(body), nil
}

func (a *HTTPJSONAdapter) buildRequest(ctx context.Context, c criteria.Criteria) (*http.Request, error) {
	params := url.Values{}
	params.Set("q", c.Query())
	f := c.Filters()
	if f.PriceMinCents > 0 {
		params.Set("min_price", strconv.FormatInt(f.PriceMinCents, 10))
	}
	if f.PriceMaxCents > 0 {
		params.Set("max_price", strconv.FormatInt(f.PriceMaxCents, 10))
	}
	if len(f.Categories) > 0 {
		params.Set("category", strings.Join(f.Categories, ","))
	}
	if a.apiKey != "" {
		params.Set("api_key", a.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (a *HTTPJSONAdapter) parseBody(body []byte) []candidate.Candidate {
	items := gjson.GetBytes(body, a.paths.Items)
	if !items.Exists() || !items.IsArray() {
		a.logger.Warn("source payload missing items array", zap.String("path", a.paths.Items))
		return nil
	}

	now := time.Now().UTC()
	var out []candidate.Candidate
	items.ForEach(func(_, item gjson.Result) bool {
		cand := candidate.Candidate{
			Source:    a.name,
			URL:       item.Get(a.paths.URL).String(),
			Title:     item.Get(a.paths.Title).String(),
			RawPrice:  item.Get(a.paths.Price).String(),
			Currency:  a.currency,
			FetchedAt: now,
		}
		if a.paths.Description != "" {
			cand.Description = item.Get(a.paths.Description).String()
		}
		if a.paths.OldPrice != "" {
			cand.RawOldPrice = item.Get(a.paths.OldPrice).String()
		}
		if a.paths.Category != "" {
			cand.Category = item.Get(a.paths.Category).String()
		}
		if a.paths.Rating != "" {
			cand.Rating = item.Get(a.paths.Rating).Float()
		}
		if a.paths.Reviews != "" {
			cand.ReviewCount = int(item.Get(a.paths.Reviews).Int())
		}
		if cand.URL == "" || cand.Title == "" {
			return true // skip unusable item, keep iterating
		}
		out = append(out, cand)
		return true
	})
	return out
}
