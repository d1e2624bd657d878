package model

import (
	"strings"
	"time"
)

type Confidence string

const (
	ConfidenceLow     Confidence = "low"
	ConfidenceNominal Confidence = "nominal"
	ConfidenceHigh    Confidence = "high"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func ParseSeverity(s string) Severity {
	switch v := Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return v
	}
	return SeverityLow
}

type ReportCategory string

const (
	ReportGeneral       ReportCategory = "general"
	ReportMilitary      ReportCategory = "military"
	ReportCriminal      ReportCategory = "criminal"
	ReportTerrorism     ReportCategory = "terrorism"
	ReportPolitical     ReportCategory = "political"
	ReportEnvironmental ReportCategory = "environmental"
)

// HotspotRecord is one thermal anomaly detection. No dedup identity:
// the same fire seen by two sensors yields two records.
type HotspotRecord struct {
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	BrightnessKelvin float64    `json:"brightness_kelvin"`
	Confidence       Confidence `json:"confidence"`
	AcquiredAt       time.Time  `json:"acquired_at"`
	SensorID         string     `json:"sensor_id"`
	FRP              float64    `json:"frp,omitempty"`
	DayNight         string     `json:"daynight,omitempty"`
}

type ReportRecord struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	SourceName     string         `json:"source_name"`
	URL            string         `json:"url,omitempty"`
	PublishedAt    time.Time      `json:"published_at"`
	Severity       Severity       `json:"severity"`
	Category       ReportCategory `json:"category"`
	RegionRelevant bool           `json:"region_relevant"`
	FeedSource     string         `json:"feed_source"`
}

type SatelliteKind string

const (
	SatellitePosition SatelliteKind = "position"
	SatellitePass     SatelliteKind = "pass"
)

// SatelliteRecord is either a position fix or a predicted visual pass over
// the observer. Elevation is the angle above the observer's horizon at
// Timestamp; passes carry their window and peak instead of a position.
type SatelliteRecord struct {
	Kind         SatelliteKind `json:"kind"`
	NoradID      int           `json:"norad_id"`
	Name         string        `json:"name"`
	Latitude     float64       `json:"latitude,omitempty"`
	Longitude    float64       `json:"longitude,omitempty"`
	AltitudeKm   float64       `json:"altitude_km,omitempty"`
	Elevation    float64       `json:"elevation,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	PassStart    time.Time     `json:"pass_start,omitzero"`
	PassEnd      time.Time     `json:"pass_end,omitzero"`
	MaxElevation float64       `json:"max_elevation,omitempty"`
	Magnitude    float64       `json:"magnitude,omitempty"`
}

// Items holds the records of one category; only the matching slice is set.
type Items struct {
	Hotspots   []HotspotRecord   `json:"hotspots,omitempty"`
	Reports    []ReportRecord    `json:"reports,omitempty"`
	Satellites []SatelliteRecord `json:"satellites,omitempty"`
}

func (it Items) Len() int {
	return len(it.Hotspots) + len(it.Reports) + len(it.Satellites)
}

// ProviderResult is what one fetch of one category from one source yields.
// FetchedAt is the time the items were fetched upstream, also for cache hits.
type ProviderResult struct {
	Category  Category  `json:"category"`
	Source    string    `json:"source"`
	Items     Items     `json:"items"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
	Outcome   Outcome   `json:"outcome"`
	Origin    Origin    `json:"origin"`
	Err       error     `json:"-"`
}
