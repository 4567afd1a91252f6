// Package sources fetches the public datasets the pipelines are built on:
// World Bank International Debt Statistics, IMF World Economic Outlook,
// FRED policy rates and plain CSV tables. Every remote read goes through a
// Fetcher, which paces requests and caches raw responses.
package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ONEcampaign/interest-rates/internal/cache"
	"github.com/ONEcampaign/interest-rates/internal/config"
	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/infrastructure"
)

// Origins reported to the fetch metrics.
const (
	OriginNetwork = "network"
	OriginCache   = "cache"
	OriginStale   = "stale"
)

const maxBodySize = 256 << 20

// Fetcher performs rate limited GET requests with a cache in front of them.
// Fresh cache entries are served without a request unless refresh is on;
// when a request fails a stale entry is returned instead of the error.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	cache     cache.Repository
	ttl       time.Duration
	keyPrefix string
	userAgent string
	refresh   bool
	metrics   *infrastructure.PipelineMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewFetcher creates a fetcher. repo may be nil to disable caching.
func NewFetcher(cfg config.SourcesConfig, repo cache.Repository, keyPrefix string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		cache:     repo,
		ttl:       cfg.CacheTTL,
		keyPrefix: keyPrefix,
		userAgent: cfg.UserAgent,
		metrics:   infrastructure.NoopPipelineMetrics(),
		logger:    logger.With(slog.String("component", "fetcher")),
		now:       time.Now,
	}
}

// SetRefresh makes every Get bypass fresh cache entries.
func (f *Fetcher) SetRefresh(refresh bool) {
	f.refresh = refresh
}

// SetMetrics replaces the no-op metrics.
func (f *Fetcher) SetMetrics(m *infrastructure.PipelineMetrics) {
	if m != nil {
		f.metrics = m
	}
}

// Get returns the body at url. source names the dataset in cache keys,
// logs and metrics.
func (f *Fetcher) Get(ctx context.Context, source, url string) ([]byte, error) {
	key := cache.Key(f.keyPrefix, source, url)

	var cached *cache.Entry
	if f.cache != nil {
		entry, err := f.cache.Get(ctx, key)
		if err != nil {
			f.logger.WarnContext(ctx, "cache read failed",
				slog.String("source", source),
				slog.String("error", err.Error()))
		}
		cached = entry
	}

	if cached != nil && !f.refresh && cached.Fresh(f.now()) {
		f.metrics.RecordFetch(ctx, source, OriginCache)
		return cached.Data, nil
	}

	body, contentType, err := f.download(ctx, source, url)
	if err != nil {
		f.metrics.RecordFailure(ctx, source)
		if cached != nil {
			f.logger.WarnContext(ctx, "serving stale cache entry",
				slog.String("source", source),
				slog.String("url", url),
				slog.Time("fetched_at", cached.FetchedAt),
				slog.String("error", err.Error()))
			f.metrics.RecordFetch(ctx, source, OriginStale)
			return cached.Data, nil
		}
		return nil, err
	}
	f.metrics.RecordFetch(ctx, source, OriginNetwork)

	if f.cache != nil {
		now := f.now()
		entry := cache.Entry{
			Data:        body,
			ContentType: contentType,
			Source:      source,
			FetchedAt:   now,
			ExpiresAt:   now.Add(f.ttl),
		}
		if err := f.cache.Set(ctx, key, entry); err != nil {
			f.logger.WarnContext(ctx, "cache write failed",
				slog.String("source", source),
				slog.String("error", err.Error()))
		}
	}
	return body, nil
}

func (f *Fetcher) download(ctx context.Context, source, url string) ([]byte, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", apperrors.NewAppError(apperrors.ErrTypeNetwork, "invalid request", err).
			WithContext("source", source)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := f.now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", apperrors.NewNetworkError(fmt.Sprintf("request to %s failed", source), err).
			WithContext("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, "", apperrors.NewUpstreamError(source, resp.StatusCode).WithContext("url", url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", apperrors.NewNetworkError(fmt.Sprintf("reading %s response failed", source), err)
	}

	f.logger.DebugContext(ctx, "downloaded",
		slog.String("source", source),
		slog.String("url", url),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", f.now().Sub(start)))

	return body, resp.Header.Get("Content-Type"), nil
}
