// Package orchestrator fetches provider data through the cache: fresh hits
// are served directly, misses are collapsed into one upstream call per key,
// and failed calls fall back to the last stale value.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/sitrep-cache/internal/cache"
	"github.com/mohammed-shakir/sitrep-cache/internal/cache/keys"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
	mylog "github.com/mohammed-shakir/sitrep-cache/internal/logger"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

var (
	ErrUpstreamTimeout  = errors.New("upstream timeout")
	ErrUpstreamError    = errors.New("upstream error")
	ErrTotalUnavailable = errors.New("no fresh or stale data available")
)

const staleReadTimeout = 500 * time.Millisecond

// Request is one category fetch. Zero TTL or Timeout use the orchestrator
// defaults for the category.
type Request struct {
	Source  provider.Source
	TTL     time.Duration
	Timeout time.Duration
}

type Options struct {
	TTLFor             func(model.Category) time.Duration
	TimeoutFor         func(model.Category) time.Duration
	RefreshAhead       time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

type Orchestrator struct {
	store   cache.Store
	log     *slog.Logger
	opts    Options
	sources []provider.Source
	now     func() time.Time

	sf      singleflight.Group
	flights *flights

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func New(store cache.Store, sources []provider.Source, log *slog.Logger, opts Options) *Orchestrator {
	if opts.TTLFor == nil {
		opts.TTLFor = func(model.Category) time.Duration { return 3 * time.Minute }
	}
	if opts.TimeoutFor == nil {
		opts.TimeoutFor = func(model.Category) time.Duration { return 12 * time.Second }
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerOpenTimeout <= 0 {
		opts.BreakerOpenTimeout = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:    store,
		log:      log.With("component", "orchestrator"),
		opts:     opts,
		sources:  append([]provider.Source(nil), sources...),
		now:      time.Now,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		flights:  newFlights(),
	}
}

// Sources returns the registered sources of a category, or all of them for
// the empty category.
func (o *Orchestrator) Sources(category model.Category) []provider.Source {
	var out []provider.Source
	for _, s := range o.sources {
		if category == "" || s.Category() == category {
			out = append(out, s)
		}
	}
	return out
}

// FetchCategory never returns an error; failures are reported through the
// result's Outcome, Origin and Err.
func (o *Orchestrator) FetchCategory(ctx context.Context, req Request) model.ProviderResult {
	req = o.withDefaults(req)
	key := o.key(req.Source)
	if res, ok := o.cached(ctx, key, 0); ok {
		return o.done(res)
	}
	return o.done(o.fetch(ctx, key, req, 0))
}

// Refresh is FetchCategory for the warmer: an entry with more than the
// refresh-ahead window left is kept, anything else is fetched again.
func (o *Orchestrator) Refresh(ctx context.Context, req Request) model.ProviderResult {
	req = o.withDefaults(req)
	key := o.key(req.Source)
	if res, ok := o.cached(ctx, key, o.opts.RefreshAhead); ok {
		return o.done(res)
	}
	return o.done(o.fetch(ctx, key, req, o.opts.RefreshAhead))
}

// FetchAll fetches every registered source of a category concurrently.
// Results keep registration order.
func (o *Orchestrator) FetchAll(ctx context.Context, category model.Category) []model.ProviderResult {
	srcs := o.Sources(category)
	out := make([]model.ProviderResult, len(srcs))
	var g errgroup.Group
	for i, s := range srcs {
		g.Go(func() error {
			out[i] = o.FetchCategory(ctx, Request{Source: s})
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Invalidate drops every cached entry of a category, or everything for the
// empty category.
func (o *Orchestrator) Invalidate(ctx context.Context, category model.Category) error {
	if category == "" {
		if err := o.store.ClearAll(ctx); err != nil {
			return fmt.Errorf("invalidate all: %w", err)
		}
		return nil
	}
	if err := o.store.ClearPrefix(ctx, keys.Prefix(string(category))); err != nil {
		return fmt.Errorf("invalidate %s: %w", category, err)
	}
	return nil
}

func (o *Orchestrator) withDefaults(req Request) Request {
	cat := req.Source.Category()
	if req.TTL <= 0 {
		req.TTL = o.opts.TTLFor(cat)
	}
	if req.Timeout <= 0 {
		req.Timeout = o.opts.TimeoutFor(cat)
	}
	return req
}

func (o *Orchestrator) key(s provider.Source) string {
	return keys.Key(string(s.Category()), s.Name(), s.Params())
}

// cached returns a fresh entry with more than minRemaining TTL left.
func (o *Orchestrator) cached(ctx context.Context, key string, minRemaining time.Duration) (model.ProviderResult, bool) {
	e, ok, err := o.store.Get(ctx, key)
	if err != nil {
		o.log.Warn("cache get failed", "key", key, "err", err)
		return model.ProviderResult{}, false
	}
	if !ok {
		return model.ProviderResult{}, false
	}
	if minRemaining > 0 && e.Remaining(o.now()) <= minRemaining {
		return model.ProviderResult{}, false
	}
	res, err := decode(e.Value)
	if err != nil {
		o.log.Warn("cache entry undecodable", "key", key, "err", err)
		return model.ProviderResult{}, false
	}
	res.Outcome = model.OutcomeOK
	res.Origin = model.OriginCache
	return res, true
}

func (o *Orchestrator) fetch(ctx context.Context, key string, req Request, minRemaining time.Duration) model.ProviderResult {
	src := req.Source
	ctx = mylog.WithCategory(ctx, string(src.Category()))

	// the flight outlives any single caller and is canceled once every
	// caller has left; each caller waits at most its own timeout
	o.flights.enter(key)
	defer o.flights.leave(key)

	ch := o.sf.DoChan(key, func() (any, error) {
		flightCtx, end := o.flights.start(ctx, key)
		defer end()
		if res, ok := o.cached(flightCtx, key, minRemaining); ok {
			return res, nil
		}
		return o.callUpstream(flightCtx, key, req)
	})

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.Shared {
			observability.IncSingleflightShared(string(src.Category()))
		}
		if r.Err != nil {
			return o.fallback(ctx, key, src, r.Err)
		}
		return r.Val.(model.ProviderResult)
	case <-timer.C:
		return o.fallback(ctx, key, src, ErrUpstreamTimeout)
	case <-ctx.Done():
		return o.fallback(ctx, key, src, fmt.Errorf("%w: %w", ErrUpstreamTimeout, ctx.Err()))
	}
}

type fetched struct {
	v   any
	err error
}

// callUpstream returns at the timeout even when the adapter ignores
// cancellation, so the key's flight is released. The adapter's late result
// is dropped.
func (o *Orchestrator) callUpstream(ctx context.Context, key string, req Request) (model.ProviderResult, error) {
	src := req.Source
	cctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	done := make(chan fetched, 1)
	go func() {
		v, err := o.breaker(src).Execute(func() (any, error) {
			return src.Fetch(cctx)
		})
		done <- fetched{v: v, err: err}
	}()

	var f fetched
	select {
	case f = <-done:
	case <-cctx.Done():
		return model.ProviderResult{}, fmt.Errorf("%w: %s", ErrUpstreamTimeout, src.Name())
	}
	if cctx.Err() != nil {
		return model.ProviderResult{}, fmt.Errorf("%w: %s", ErrUpstreamTimeout, src.Name())
	}
	if f.err != nil {
		return model.ProviderResult{}, classify(f.err)
	}

	res := model.ProviderResult{
		Category:  src.Category(),
		Source:    src.Name(),
		Items:     f.v.(model.Items),
		FetchedAt: o.now().UTC(),
		Outcome:   model.OutcomeOK,
		Origin:    model.OriginFresh,
	}
	b, err := json.Marshal(res)
	if err == nil {
		err = o.store.Set(ctx, key, b, req.TTL)
	}
	if err != nil {
		o.log.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
	return res, nil
}

func (o *Orchestrator) fallback(ctx context.Context, key string, src provider.Source, cause error) model.ProviderResult {
	outcome := model.OutcomeError
	if errors.Is(cause, ErrUpstreamTimeout) {
		outcome = model.OutcomeTimeout
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), staleReadTimeout)
	defer cancel()
	e, ok, err := o.store.GetStale(sctx, key)
	if err != nil {
		o.log.Warn("stale read failed", "key", key, "err", err)
	}
	if ok {
		if res, derr := decode(e.Value); derr == nil {
			res.Outcome = outcome
			res.Origin = model.OriginStale
			res.Err = cause
			o.log.Warn("serving stale data",
				"category", src.Category(), "source", src.Name(),
				"age", e.Age(o.now()).String(), "err", cause)
			return res
		}
	}

	o.log.Error("no data available",
		"category", src.Category(), "source", src.Name(), "err", cause)
	return model.ProviderResult{
		Category: src.Category(),
		Source:   src.Name(),
		Outcome:  outcome,
		Origin:   model.OriginNone,
		Err:      fmt.Errorf("%w: %w", ErrTotalUnavailable, cause),
	}
}

func (o *Orchestrator) done(res model.ProviderResult) model.ProviderResult {
	observability.ObserveFetch(string(res.Category), res.Source, string(res.Origin), string(res.Outcome))
	return res
}

func (o *Orchestrator) breaker(src provider.Source) *gobreaker.CircuitBreaker {
	name := string(src.Category()) + ":" + src.Name()
	o.mu.Lock()
	defer o.mu.Unlock()
	if cb, ok := o.breakers[name]; ok {
		return cb
	}
	maxFailures := o.opts.BreakerMaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     o.opts.BreakerOpenTimeout,
		// an abandoned call says nothing about the upstream
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.SetBreakerState(name, int(to))
			o.log.Warn("breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	o.breakers[name] = cb
	return cb
}

// BreakerState exposes a source's breaker state for tests and readiness.
func (o *Orchestrator) BreakerState(src provider.Source) gobreaker.State {
	return o.breaker(src).State()
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: breaker: %w", ErrUpstreamError, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstreamError, err)
}

func decode(b []byte) (model.ProviderResult, error) {
	var res model.ProviderResult
	if err := json.Unmarshal(b, &res); err != nil {
		return model.ProviderResult{}, fmt.Errorf("decode cached result: %w", err)
	}
	return res, nil
}
