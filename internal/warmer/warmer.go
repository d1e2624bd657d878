// Package warmer refreshes every registered source on a fixed interval so
// consumer requests are normally served from cache.
package warmer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
	mylog "github.com/mohammed-shakir/sitrep-cache/internal/logger"
	"github.com/mohammed-shakir/sitrep-cache/internal/orchestrator"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

type Refresher interface {
	Sources(category model.Category) []provider.Source
	Refresh(ctx context.Context, req orchestrator.Request) model.ProviderResult
}

// Sweeper drops entries past stale retention. Only the memory tier needs it;
// Redis expires keys on its own. Retention is opt-in: a swept key no longer
// serves as a stale fallback.
type Sweeper interface {
	Sweep(retention time.Duration) int
}

type Options struct {
	Interval       time.Duration
	MaxConcurrency int
	StaleRetention time.Duration
	Sweeper        Sweeper
	Logger         *slog.Logger
}

type Scheduler struct {
	ref  Refresher
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func New(r Refresher, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Minute
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{ref: r, opts: opts, log: opts.Logger.With("component", "warmer")}
}

// Start runs one cycle immediately and then one per interval until ctx is
// done or Stop is called. A second Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.opts.Interval)
		defer t.Stop()
		for {
			s.Cycle(ctx)
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
	s.log.Info("cache warmer started", "interval", s.opts.Interval.String(), "concurrency", s.opts.MaxConcurrency)
}

// Stop cancels in-flight refreshes and returns without waiting for them. An
// upstream call that a consumer request is also waiting on keeps running
// for that request.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until every goroutine started by the scheduler has exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Cycle refreshes every registered source once, at most MaxConcurrency at a
// time, and blocks until all refreshes return.
func (s *Scheduler) Cycle(ctx context.Context) {
	start := time.Now()
	id := uuid.NewString()
	ctx = mylog.WithCycleID(ctx, id)

	srcs := s.ref.Sources("")
	sem := make(chan struct{}, s.opts.MaxConcurrency)
	var cycle sync.WaitGroup

	for _, src := range srcs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			cycle.Wait()
			s.log.InfoContext(ctx, "warm cycle interrupted", "cycle", id)
			return
		}
		cycle.Add(1)
		s.wg.Add(1)
		go func() {
			defer func() {
				<-sem
				cycle.Done()
				s.wg.Done()
			}()
			res := s.ref.Refresh(ctx, orchestrator.Request{Source: src})
			observability.IncWarmJob(string(src.Category()), string(res.Origin))
			if !res.Origin.HasData() || res.Outcome != model.OutcomeOK {
				s.log.WarnContext(ctx, "warm job degraded",
					"cycle", id, "category", src.Category(), "source", src.Name(),
					"origin", res.Origin, "outcome", res.Outcome)
			}
		}()
	}
	cycle.Wait()

	swept := 0
	if s.opts.Sweeper != nil && s.opts.StaleRetention > 0 {
		swept = s.opts.Sweeper.Sweep(s.opts.StaleRetention)
	}
	d := time.Since(start)
	observability.ObserveWarmCycle(d.Seconds())
	s.log.InfoContext(ctx, "warm cycle done",
		"cycle", id, "jobs", len(srcs), "swept", swept, "took_ms", d.Milliseconds())
}
