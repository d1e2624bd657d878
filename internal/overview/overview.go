// Package overview assembles the consumer-facing situational view: merged
// category data, per-region risk and the quality of every input.
package overview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/sitrep-cache/internal/aggregate"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
	"github.com/mohammed-shakir/sitrep-cache/internal/mapper"
	"github.com/mohammed-shakir/sitrep-cache/internal/region"
	"github.com/mohammed-shakir/sitrep-cache/internal/risk"
	"github.com/mohammed-shakir/sitrep-cache/internal/riskevents"
)

// Fetcher is the orchestrator surface the service needs.
type Fetcher interface {
	FetchAll(ctx context.Context, category model.Category) []model.ProviderResult
	Invalidate(ctx context.Context, category model.Category) error
}

// Publisher receives classification changes; nil disables publishing.
type Publisher interface {
	Publish(ev riskevents.Event) bool
}

type SourceQuality struct {
	Category   model.Category `json:"category"`
	Source     string         `json:"source"`
	Quality    model.Quality  `json:"quality"`
	Outcome    model.Outcome  `json:"outcome"`
	FetchedAt  time.Time      `json:"fetched_at,omitzero"`
	AgeSeconds float64        `json:"age_seconds"`
	Items      int            `json:"items"`
	Error      string         `json:"error,omitempty"`
}

type DataQuality struct {
	PerCategory map[model.Category]model.Quality `json:"per_category"`
	Sources     map[string]SourceQuality         `json:"sources"`
}

type Overview struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	Hotspots     []model.HotspotRecord   `json:"hotspots"`
	Reports      []model.ReportRecord    `json:"reports"`
	Satellites   []model.SatelliteRecord `json:"satellites"`
	Assessments  []risk.Assessment       `json:"assessments"`
	HotspotCells []aggregate.Cell        `json:"hotspot_cells"`
	Threat       risk.Threat             `json:"threat"`
	DataQuality  DataQuality             `json:"data_quality"`
}

type Options struct {
	DedupWindow time.Duration
	H3Res       int
	Mapper      mapper.Interface
	Publisher   Publisher
	Logger      *slog.Logger
}

type Service struct {
	fetch    Fetcher
	regions  *region.Table
	engine   *risk.Engine
	keywords []string
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	lastLevel map[string]risk.Level
}

func New(f Fetcher, tbl *region.Table, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = aggregate.DefaultWindow
	}
	return &Service{
		fetch:     f,
		regions:   tbl,
		engine:    risk.NewEngine(tbl.Scoring()),
		keywords:  tbl.Keywords(),
		opts:      opts,
		log:       opts.Logger.With("component", "overview"),
		now:       time.Now,
		lastLevel: make(map[string]risk.Level),
	}
}

// GetCachedOrFreshOverview never fails: unavailable inputs show up in
// DataQuality and degrade risk to prior-only. Empty regionIDs selects every
// region; unknown ids are ignored.
func (s *Service) GetCachedOrFreshOverview(ctx context.Context, regionIDs []string) Overview {
	results := s.fetchAll(ctx)
	now := s.now().UTC()
	dq := qualityOf(results, now)

	hotspots := aggregate.MergeHotspots(results[model.CategoryHotspot])
	reports := aggregate.AggregateReports(results[model.CategoryReport], aggregate.Options{
		Window:   s.opts.DedupWindow,
		Keywords: s.keywords,
	})
	sats := aggregate.MergeSatellites(results[model.CategorySatellite])

	in := risk.Inputs{
		Hotspots:          hotspots,
		Reports:           reports,
		HotspotsAvailable: dq.PerCategory[model.CategoryHotspot] != model.QualityUnavailable,
		ReportsAvailable:  dq.PerCategory[model.CategoryReport] != model.QualityUnavailable,
	}
	assessments := s.engine.ComputeAll(s.regions.Select(regionIDs), in)
	s.track(assessments)

	ov := Overview{
		GeneratedAt: now,
		Hotspots:    nonNil(hotspots),
		Reports:     nonNil(reports),
		Satellites:  nonNil(sats),
		Assessments: assessments,
		Threat:      risk.OverallThreat(assessments, reports, len(hotspots)),
		DataQuality: dq,
	}
	if s.opts.Mapper != nil {
		ov.HotspotCells = aggregate.HotspotCells(hotspots, s.opts.Mapper, s.opts.H3Res)
	}
	ov.HotspotCells = nonNil(ov.HotspotCells)
	return ov
}

// InvalidateCache clears one category, or everything for the empty category.
func (s *Service) InvalidateCache(ctx context.Context, category model.Category) error {
	if err := s.fetch.Invalidate(ctx, category); err != nil {
		return err
	}
	observability.IncInvalidation(string(category), "api")
	s.log.Info("cache invalidated", "category", category)
	return nil
}

func (s *Service) fetchAll(ctx context.Context) map[model.Category][]model.ProviderResult {
	out := make(map[model.Category][]model.ProviderResult, len(model.Categories))
	var mu sync.Mutex
	var g errgroup.Group
	for _, c := range model.Categories {
		g.Go(func() error {
			rs := s.fetch.FetchAll(ctx, c)
			mu.Lock()
			out[c] = rs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func qualityOf(results map[model.Category][]model.ProviderResult, now time.Time) DataQuality {
	dq := DataQuality{
		PerCategory: make(map[model.Category]model.Quality, len(model.Categories)),
		Sources:     map[string]SourceQuality{},
	}
	for _, c := range model.Categories {
		best := model.QualityUnavailable
		for _, r := range results[c] {
			q := model.QualityOf(r.Origin)
			if q.Better(best) {
				best = q
			}
			sq := SourceQuality{
				Category:  c,
				Source:    r.Source,
				Quality:   q,
				Outcome:   r.Outcome,
				FetchedAt: r.FetchedAt,
				Items:     r.Items.Len(),
			}
			if r.Origin.HasData() && !r.FetchedAt.IsZero() {
				sq.AgeSeconds = now.Sub(r.FetchedAt).Seconds()
			}
			if r.Err != nil {
				sq.Error = rootCause(r.Err)
			}
			dq.Sources[r.Source] = sq
		}
		dq.PerCategory[c] = best
		observability.SetDataQuality(string(c), string(best))
	}
	return dq
}

// track publishes classification changes since the previous computation of
// each region. The first computation only records a baseline.
func (s *Service) track(as []risk.Assessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range as {
		observability.SetRiskScore(a.RegionID, a.Score)
		prev, seen := s.lastLevel[a.RegionID]
		s.lastLevel[a.RegionID] = a.Classification
		if !seen || prev == a.Classification || s.opts.Publisher == nil {
			continue
		}
		s.opts.Publisher.Publish(riskevents.Event{
			RegionID:  a.RegionID,
			Previous:  string(prev),
			Current:   string(a.Classification),
			Score:     a.Score,
			PriorOnly: a.PriorOnly,
			TS:        a.ComputedAt,
		})
	}
}

// rootCause drops the wrapping chain so consumers see the upstream message.
func rootCause(err error) string {
	for {
		u := errors.Unwrap(err)
		if u == nil {
			return err.Error()
		}
		err = u
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
