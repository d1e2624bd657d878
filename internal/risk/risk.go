// Package risk scores regions from hotspot proximity, report mentions and
// a static prior.
package risk

import (
	"math"
	"strings"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/region"
)

type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Classify maps a score to a level using the thresholds only.
func Classify(score float64, th region.Thresholds) Level {
	switch {
	case score >= th.Critical:
		return LevelCritical
	case score >= th.High:
		return LevelHigh
	case score >= th.Medium:
		return LevelMedium
	}
	return LevelLow
}

type Terms struct {
	Proximity float64 `json:"proximity"`
	Reports   float64 `json:"reports"`
	Prior     float64 `json:"prior"`
}

type Assessment struct {
	RegionID       string    `json:"region_id"`
	RegionName     string    `json:"region_name"`
	Score          float64   `json:"score"`
	Classification Level     `json:"classification"`
	ComputedAt     time.Time `json:"computed_at"`
	PriorOnly      bool      `json:"prior_only"`
	Degraded       bool      `json:"degraded"`
	NearbyHotspots int       `json:"nearby_hotspots"`
	Mentions       int       `json:"mentions"`
	Terms          Terms     `json:"terms"`
}

// Inputs are the aggregated records a score is computed from. A category
// marked unavailable contributes nothing, whatever its slice holds.
type Inputs struct {
	Hotspots          []model.HotspotRecord
	Reports           []model.ReportRecord
	HotspotsAvailable bool
	ReportsAvailable  bool
}

type Engine struct {
	sc  region.Scoring
	now func() time.Time
}

func NewEngine(sc region.Scoring) *Engine {
	return &Engine{sc: sc, now: time.Now}
}

func (e *Engine) Thresholds() region.Thresholds { return e.sc.Thresholds }

// ComputeRegionRisk is a pure function of its inputs and the scoring table.
func (e *Engine) ComputeRegionRisk(r region.Region, in Inputs) Assessment {
	a := Assessment{
		RegionID:   r.ID,
		RegionName: r.Name,
		ComputedAt: e.now().UTC(),
		PriorOnly:  !in.HotspotsAvailable && !in.ReportsAvailable,
		Degraded:   !in.HotspotsAvailable || !in.ReportsAvailable,
	}

	if in.HotspotsAvailable {
		a.Terms.Proximity, a.NearbyHotspots = e.proximity(r, in.Hotspots)
	}
	if in.ReportsAvailable {
		a.Terms.Reports, a.Mentions = e.mentions(r, in.Reports)
	}
	a.Terms.Prior = e.sc.PriorWeight(r.Prior)

	a.Score = round6(math.Min(1, a.Terms.Proximity+a.Terms.Reports+a.Terms.Prior))
	a.Classification = Classify(a.Score, e.sc.Thresholds)
	return a
}

// ComputeAll scores every region from scratch.
func (e *Engine) ComputeAll(regions []region.Region, in Inputs) []Assessment {
	out := make([]Assessment, 0, len(regions))
	for _, r := range regions {
		out = append(out, e.ComputeRegionRisk(r, in))
	}
	return out
}

func (e *Engine) proximity(r region.Region, hs []model.HotspotRecord) (float64, int) {
	radius := e.sc.RadiusKm
	sum := 0.0
	n := 0
	for _, h := range hs {
		d := DistanceKm(r.Lat, r.Lon, h.Latitude, h.Longitude)
		if d >= radius {
			continue
		}
		n++
		sum += (radius - d) / radius * e.sc.HotspotIncrement
	}
	return math.Min(sum, e.sc.ProximityCap), n
}

func (e *Engine) mentions(r region.Region, reports []model.ReportRecord) (float64, int) {
	names := r.Names()
	sum := 0.0
	n := 0
	for _, rep := range reports {
		title := strings.ToLower(rep.Title)
		if !containsAny(title, names) {
			continue
		}
		n++
		if rep.Severity == model.SeverityCritical {
			sum += e.sc.CriticalMention
		} else {
			sum += e.sc.Mention
		}
	}
	return math.Min(sum, e.sc.MentionCap), n
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
