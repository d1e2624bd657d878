// Package provider defines the upstream adapter contracts and binds adapters
// to the fixed arguments the orchestrator fetches them with.
package provider

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
)

var (
	// ErrMalformed marks an upstream document that could not be decoded.
	// Malformed rows inside a valid document are skipped instead.
	ErrMalformed = errors.New("malformed upstream payload")
	// ErrNotConfigured is returned by adapters missing an API key.
	ErrNotConfigured = errors.New("provider not configured")
)

type HotspotProvider interface {
	Name() string
	FetchHotspots(ctx context.Context, bounds model.BBox, lookbackDays int) ([]model.HotspotRecord, error)
}

type ReportProvider interface {
	Name() string
	FetchReports(ctx context.Context, query string, limit int) ([]model.ReportRecord, error)
}

type SatelliteProvider interface {
	Name() string
	FetchSatellites(ctx context.Context, ids []int) ([]model.SatelliteRecord, error)
}

// Source is an adapter bound to its request arguments. Params identify the
// request for cache keying.
type Source interface {
	Category() model.Category
	Name() string
	Params() map[string]string
	Fetch(ctx context.Context) (model.Items, error)
}

type hotspotSource struct {
	p      HotspotProvider
	bounds model.BBox
	days   int
}

// Hotspots binds a hotspot adapter to a bounding box and lookback window.
func Hotspots(p HotspotProvider, bounds model.BBox, lookbackDays int) Source {
	return hotspotSource{p: p, bounds: bounds, days: lookbackDays}
}

func (s hotspotSource) Category() model.Category { return model.CategoryHotspot }
func (s hotspotSource) Name() string             { return s.p.Name() }

func (s hotspotSource) Params() map[string]string {
	return map[string]string{"bbox": s.bounds.String(), "days": strconv.Itoa(s.days)}
}

func (s hotspotSource) Fetch(ctx context.Context) (model.Items, error) {
	hs, err := s.p.FetchHotspots(ctx, s.bounds, s.days)
	return model.Items{Hotspots: hs}, err
}

type reportSource struct {
	p     ReportProvider
	query string
	limit int
}

// Reports binds a report adapter to a query and result limit.
func Reports(p ReportProvider, query string, limit int) Source {
	return reportSource{p: p, query: query, limit: limit}
}

func (s reportSource) Category() model.Category { return model.CategoryReport }
func (s reportSource) Name() string             { return s.p.Name() }

func (s reportSource) Params() map[string]string {
	return map[string]string{"q": s.query, "limit": strconv.Itoa(s.limit)}
}

func (s reportSource) Fetch(ctx context.Context) (model.Items, error) {
	rs, err := s.p.FetchReports(ctx, s.query, s.limit)
	return model.Items{Reports: rs}, err
}

type satelliteSource struct {
	p   SatelliteProvider
	ids []int
}

// Satellites binds a satellite adapter to a list of NORAD ids.
func Satellites(p SatelliteProvider, ids []int) Source {
	return satelliteSource{p: p, ids: append([]int(nil), ids...)}
}

func (s satelliteSource) Category() model.Category { return model.CategorySatellite }
func (s satelliteSource) Name() string             { return s.p.Name() }

func (s satelliteSource) Params() map[string]string {
	parts := make([]string, len(s.ids))
	for i, id := range s.ids {
		parts[i] = strconv.Itoa(id)
	}
	return map[string]string{"ids": strings.Join(parts, ",")}
}

func (s satelliteSource) Fetch(ctx context.Context) (model.Items, error) {
	ss, err := s.p.FetchSatellites(ctx, s.ids)
	return model.Items{Satellites: ss}, err
}
