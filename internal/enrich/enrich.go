// Package enrich looks up live rating data for every store in the input sheet.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
	"github.com/wakefit-analytics/gmb-pipeline/internal/placeid"
	"github.com/wakefit-analytics/gmb-pipeline/internal/resilience"
	"github.com/wakefit-analytics/gmb-pipeline/pkg/google"
)

// ErrNoPlaceID is recorded when a store-locator value has no place identifier.
const ErrNoPlaceID = "Could not extract Place ID"

// Fields is the exact set of place fields requested per store.
var Fields = []string{"rating", "user_ratings_total", "place_id", "business_status"}

// Oracle resolves a place identifier to its details.
type Oracle interface {
	PlaceDetails(ctx context.Context, placeID string, fields []string) (*google.PlaceDetailsResponse, error)
}

// Options tunes the fetcher. The zero value fetches sequentially with a
// 10s per-call timeout, no rate limit and no retries.
type Options struct {
	Concurrency   int
	RatePerSecond float64
	Timeout       time.Duration
	RetryAttempts int
}

// Fetcher turns store-locator values into enrichment results.
type Fetcher struct {
	oracle  Oracle
	limiter *rate.Limiter
	opts    Options
	retry   resilience.RetryConfig
}

// New creates a Fetcher backed by oracle.
func New(oracle Oracle, opts Options) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	f := &Fetcher{oracle: oracle, opts: opts}
	if opts.RatePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	f.retry = resilience.NoRetry()
	if opts.RetryAttempts > 1 {
		f.retry = resilience.DefaultRetryConfig(opts.RetryAttempts)
		f.retry.ShouldRetry = shouldRetry
		f.retry.OnRetry = resilience.RetryLogger("google_places", "place_details")
	}
	return f
}

// Fetch returns exactly one result per input value, in input order, whatever
// order the lookups complete in.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) []model.EnrichmentResult {
	results := make([]model.EnrichmentResult, len(urls))

	var g errgroup.Group
	g.SetLimit(f.opts.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = f.FetchOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FetchOne looks up a single store. It never fails: every problem becomes
// the result's Error field.
func (f *Fetcher) FetchOne(ctx context.Context, raw string) (res model.EnrichmentResult) {
	defer func() {
		if r := recover(); r != nil {
			res = model.NewEnrichmentError(raw, fmt.Sprint(r))
		}
	}()

	placeID, ok := placeid.Resolve(raw)
	if !ok {
		zap.L().Warn("could not extract place id", zap.String("store_url", raw))
		return model.NewEnrichmentError(raw, ErrNoPlaceID)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return model.NewEnrichmentError(raw, err.Error())
		}
	}

	resp, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*google.PlaceDetailsResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
		return f.oracle.PlaceDetails(callCtx, placeID, Fields)
	})
	if err != nil {
		zap.L().Warn("place lookup failed",
			zap.String("store_url", raw),
			zap.String("place_id", placeID),
			zap.Error(err),
		)
		return model.NewEnrichmentError(raw, err.Error())
	}
	if resp == nil {
		return model.NewEnrichmentError(raw, "API Error: empty response")
	}
	if resp.Status != google.StatusOK {
		zap.L().Warn("place lookup returned non-OK status",
			zap.String("store_url", raw),
			zap.String("place_id", placeID),
			zap.String("status", resp.Status),
		)
		return model.NewEnrichmentError(raw, "API Error: "+resp.Status)
	}

	var reviews int
	if resp.Result.UserRatingsTotal != nil {
		reviews = *resp.Result.UserRatingsTotal
	}
	var rating float64
	if resp.Result.Rating != nil {
		rating = *resp.Result.Rating
	}
	return model.NewEnrichmentSuccess(raw, reviews, rating, resp.Result.BusinessStatus)
}

func shouldRetry(err error) bool {
	var se *google.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return resilience.IsTransient(err)
}

// Count splits results into successful and failed lookups.
func Count(results []model.EnrichmentResult) (ok, failed int) {
	for _, r := range results {
		if r.Failed() {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}
