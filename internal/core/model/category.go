package model

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryHotspot   Category = "hotspot"
	CategorySatellite Category = "satellite"
	CategoryReport    Category = "report"
)

// Categories lists every data category in a fixed order.
var Categories = []Category{CategoryHotspot, CategorySatellite, CategoryReport}

func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryHotspot, "hotspots":
		return CategoryHotspot, nil
	case CategorySatellite, "satellites":
		return CategorySatellite, nil
	case CategoryReport, "reports":
		return CategoryReport, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Outcome is the result of the upstream attempt for one fetch.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// Origin tells where the items of a ProviderResult came from.
type Origin string

const (
	OriginFresh Origin = "fresh"
	OriginCache Origin = "cache"
	OriginStale Origin = "stale"
	OriginNone  Origin = "none"
)

// HasData reports whether items from this origin may be used downstream.
func (o Origin) HasData() bool {
	return o == OriginFresh || o == OriginCache || o == OriginStale
}

// Quality is the per-category data quality shown to consumers.
type Quality string

const (
	QualityLive        Quality = "live"
	QualityCached      Quality = "cached"
	QualityStale       Quality = "stale"
	QualityUnavailable Quality = "unavailable"
)

func (q Quality) rank() int {
	switch q {
	case QualityLive:
		return 3
	case QualityCached:
		return 2
	case QualityStale:
		return 1
	}
	return 0
}

// Better reports whether q is strictly better than other.
func (q Quality) Better(other Quality) bool { return q.rank() > other.rank() }

// QualityOf maps a fetch origin to the quality a consumer sees.
func QualityOf(o Origin) Quality {
	switch o {
	case OriginFresh:
		return QualityLive
	case OriginCache:
		return QualityCached
	case OriginStale:
		return QualityStale
	}
	return QualityUnavailable
}
