package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/civic-events/app/geo"
)

const (
	DefaultEndpoint = "https://msearch.gsi.go.jp/address-search/AddressSearch"
	DefaultTimeout  = 12 * time.Second
)

type Options struct {
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
}

// Resolver turns free-text queries into points through an external
// address-search service, memoizing every outcome in its Cache. It never
// returns the service's errors to callers.
type Resolver struct {
	client    *resty.Client
	endpoint  string
	timeout   time.Duration
	cache     *Cache
	validator *geo.Validator
	group     singleflight.Group
}

func NewResolver(cache *Cache, validator *geo.Validator, opts Options) *Resolver {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if cache == nil {
		cache = NewCache()
	}

	client := resty.New().SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Resolver{
		client:    client,
		endpoint:  opts.Endpoint,
		timeout:   opts.Timeout,
		cache:     cache,
		validator: validator,
	}
}

func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the top-ranked point for query, or nil.
func (r *Resolver) Resolve(ctx context.Context, query string) *geo.Point {
	return r.Lookup(ctx, query).Point
}

// Lookup is Resolve with the outcome kept inspectable. Identical queries in
// flight share one request, which runs on the resolver's own timeout so a
// caller that gives up neither fails the request for the others nor leaves
// an absence in the cache.
func (r *Resolver) Lookup(ctx context.Context, query string) Result {
	q := NormalizeQuery(query)
	if q == "" {
		return Result{Query: q, Outcome: NotFound, Reason: "empty query"}
	}

	if p, ok := r.cache.Get(q); ok {
		return cachedResult(q, p)
	}

	if err := ctx.Err(); err != nil {
		return Result{Query: q, Outcome: Error, Reason: "lookup abandoned", Err: err}
	}

	ch := r.group.DoChan(q, func() (any, error) {
		if p, ok := r.cache.Get(q); ok {
			return cachedResult(q, p), nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		res := r.fetch(fetchCtx, q)
		if !errors.Is(res.Err, context.Canceled) {
			r.cache.Put(q, res.Point)
		}
		return res, nil
	})

	select {
	case v := <-ch:
		return v.Val.(Result)
	case <-ctx.Done():
		return Result{Query: q, Outcome: Error, Reason: "lookup abandoned", Err: ctx.Err()}
	}
}

// ResolveRanked walks candidates in order (most specific first) and returns
// the first point that is not a municipality-level match and passes the
// validator for area.
func (r *Resolver) ResolveRanked(ctx context.Context, candidates []string, area geo.Area) *geo.Point {
	for _, c := range candidates {
		res := r.evaluate(ctx, c, area)
		if res.Outcome == Found {
			return res.Point
		}
		slog.Debug("Geocode candidate skipped", "query", res.Query, "outcome", res.Outcome.String(), "reason", res.Reason)
	}
	return nil
}

func (r *Resolver) evaluate(ctx context.Context, candidate string, area geo.Area) Result {
	res := r.Lookup(ctx, candidate)
	if res.Outcome != Found {
		return res
	}

	if IsMunicipalityLevel(res.Point.Address) {
		return Result{Query: res.Query, Outcome: Rejected, Reason: "municipality-level match: " + res.Point.Address, Cached: res.Cached}
	}

	if r.validator != nil {
		if ok, reason := r.validator.Check(res.Point, area); !ok {
			return Result{Query: res.Query, Outcome: Rejected, Reason: reason, Cached: res.Cached}
		}
	}
	return res
}

func (r *Resolver) fetch(ctx context.Context, q string) Result {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("q", q).
		SetHeader("Accept", "application/json").
		Get(r.endpoint)
	if err != nil {
		slog.Debug("Geocode request failed", "query", q, "error", err)
		return Result{Query: q, Outcome: Error, Reason: "request failed", Err: err}
	}

	if !resp.IsSuccess() {
		err := fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
		slog.Debug("Geocode request failed", "query", q, "error", err)
		return Result{Query: q, Outcome: Error, Reason: "non-success status", Err: err}
	}

	var features []feature
	if err := json.Unmarshal(resp.Body(), &features); err != nil {
		return Result{Query: q, Outcome: Error, Reason: "malformed response", Err: err}
	}

	if len(features) == 0 {
		return Result{Query: q, Outcome: NotFound, Reason: "no features"}
	}

	top := features[0]
	if len(top.Geometry.Coordinates) < 2 {
		return Result{Query: q, Outcome: Error, Reason: "malformed response", Err: fmt.Errorf("feature without coordinates")}
	}

	p := geo.NewPoint(top.Geometry.Coordinates[1], top.Geometry.Coordinates[0], top.Properties.Title)
	if !p.IsFinite() {
		return Result{Query: q, Outcome: Error, Reason: "malformed response", Err: fmt.Errorf("non-finite coordinates")}
	}
	return Result{Query: q, Point: p, Outcome: Found}
}

func cachedResult(q string, p *geo.Point) Result {
	if p == nil {
		return Result{Query: q, Outcome: NotFound, Reason: "cached absence", Cached: true}
	}
	return Result{Query: q, Point: p, Outcome: Found, Cached: true}
}
