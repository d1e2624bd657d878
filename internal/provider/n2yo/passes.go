package n2yo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

const maxAbove = 50

// Passes predicts visual passes of tracked ids over the observer.
type Passes struct {
	c             *Client
	days          int
	minVisibility int
}

// Passes looks days ahead and keeps passes visible for at least
// minVisibility seconds.
func (c *Client) Passes(days, minVisibility int) *Passes {
	return &Passes{c: c, days: min(max(days, 1), 10), minVisibility: max(minVisibility, 1)}
}

func (p *Passes) Name() string { return "n2yo-passes" }

type passesDoc struct {
	Error string `json:"error"`
	Info  struct {
		SatName string `json:"satname"`
		SatID   int    `json:"satid"`
	} `json:"info"`
	Passes []struct {
		StartUTC int64   `json:"startUTC"`
		MaxUTC   int64   `json:"maxUTC"`
		MaxEl    float64 `json:"maxEl"`
		EndUTC   int64   `json:"endUTC"`
		Mag      float64 `json:"mag"`
	} `json:"passes"`
}

// FetchSatellites returns one pass record per upcoming pass of each id.
func (p *Passes) FetchSatellites(ctx context.Context, ids []int) ([]model.SatelliteRecord, error) {
	return p.c.perID(ctx, ids, func(ctx context.Context, id int) ([]model.SatelliteRecord, error) {
		u := fmt.Sprintf("%s/visualpasses/%d/%.4f/%.4f/0/%d/%d/&apiKey=%s",
			p.c.baseURL, id, p.c.obsLat, p.c.obsLon, p.days, p.minVisibility, p.c.key)
		b, err := httpclient.Get(ctx, p.c.http, p.Name(), u, "application/json")
		if err != nil {
			return nil, err
		}
		return parsePasses(b, id)
	})
}

func parsePasses(b []byte, id int) ([]model.SatelliteRecord, error) {
	var doc passesDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformed, err)
	}
	if doc.Error != "" {
		return nil, fmt.Errorf("n2yo error: %s", doc.Error)
	}
	sid := doc.Info.SatID
	if sid == 0 {
		sid = id
	}
	out := make([]model.SatelliteRecord, 0, len(doc.Passes))
	for _, ps := range doc.Passes {
		if ps.StartUTC <= 0 || ps.EndUTC < ps.StartUTC {
			continue
		}
		peak := ps.MaxUTC
		if peak < ps.StartUTC || peak > ps.EndUTC {
			peak = ps.StartUTC
		}
		out = append(out, model.SatelliteRecord{
			Kind:         model.SatellitePass,
			NoradID:      sid,
			Name:         strings.TrimSpace(doc.Info.SatName),
			Timestamp:    time.Unix(peak, 0).UTC(),
			PassStart:    time.Unix(ps.StartUTC, 0).UTC(),
			PassEnd:      time.Unix(ps.EndUTC, 0).UTC(),
			MaxElevation: ps.MaxEl,
			Magnitude:    ps.Mag,
		})
	}
	return out, nil
}

// Above lists every satellite within a search radius of the observer. It
// ignores the tracked ids.
type Above struct {
	c        *Client
	radius   int
	category int
	now      func() time.Time
}

// Above searches radiusDeg degrees around the observer, in the N2YO
// category (0 is all).
func (c *Client) Above(radiusDeg, category int) *Above {
	return &Above{c: c, radius: min(max(radiusDeg, 1), 90), category: max(category, 0), now: time.Now}
}

func (a *Above) Name() string { return "n2yo-above" }

type aboveDoc struct {
	Error string `json:"error"`
	Above []struct {
		SatID   int     `json:"satid"`
		SatName string  `json:"satname"`
		Lat     float64 `json:"satlat"`
		Lng     float64 `json:"satlng"`
		Alt     float64 `json:"satalt"`
	} `json:"above"`
}

func (a *Above) FetchSatellites(ctx context.Context, _ []int) ([]model.SatelliteRecord, error) {
	if a.c.key == "" {
		return nil, fmt.Errorf("n2yo: %w", provider.ErrNotConfigured)
	}
	u := fmt.Sprintf("%s/above/%.4f/%.4f/0/%d/%d/&apiKey=%s",
		a.c.baseURL, a.c.obsLat, a.c.obsLon, a.radius, a.category, a.c.key)
	b, err := httpclient.Get(ctx, a.c.http, a.Name(), u, "application/json")
	if err != nil {
		return nil, err
	}
	return parseAbove(b, a.now().UTC())
}

// parseAbove keeps the first 50 satellites with a valid position.
func parseAbove(b []byte, at time.Time) ([]model.SatelliteRecord, error) {
	var doc aboveDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformed, err)
	}
	if doc.Error != "" {
		return nil, fmt.Errorf("n2yo error: %s", doc.Error)
	}
	out := make([]model.SatelliteRecord, 0, min(len(doc.Above), maxAbove))
	for _, s := range doc.Above {
		if len(out) == maxAbove {
			break
		}
		if s.SatID <= 0 || s.Lat < -90 || s.Lat > 90 || s.Lng < -180 || s.Lng > 180 {
			continue
		}
		out = append(out, model.SatelliteRecord{
			Kind:       model.SatellitePosition,
			NoradID:    s.SatID,
			Name:       strings.TrimSpace(s.SatName),
			Latitude:   s.Lat,
			Longitude:  s.Lng,
			AltitudeKm: s.Alt,
			Timestamp:  at,
		})
	}
	return out, nil
}
