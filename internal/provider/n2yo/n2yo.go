// Package n2yo adapts the N2YO satellite API: positions of tracked ids,
// visual passes over the observer and everything currently above it.
package n2yo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

const maxParallel = 4

type Client struct {
	http     *http.Client
	baseURL  string
	key      string
	obsLat   float64
	obsLon   float64
	parallel int
}

// New returns a client observing from the given point.
func New(c *http.Client, baseURL, key string, obsLat, obsLon float64) *Client {
	return &Client{
		http:     c,
		baseURL:  strings.TrimRight(baseURL, "/"),
		key:      key,
		obsLat:   obsLat,
		obsLon:   obsLon,
		parallel: maxParallel,
	}
}

func (c *Client) Name() string { return "n2yo" }

type positionsDoc struct {
	Error string `json:"error"`
	Info  struct {
		SatName string `json:"satname"`
		SatID   int    `json:"satid"`
	} `json:"info"`
	Positions []struct {
		Lat       float64 `json:"satlatitude"`
		Lon       float64 `json:"satlongitude"`
		Alt       float64 `json:"sataltitude"`
		Elevation float64 `json:"elevation"`
		Timestamp int64   `json:"timestamp"`
	} `json:"positions"`
}

// FetchSatellites returns the current position of each id. Ids that fail are
// dropped; the call fails only when every id failed.
func (c *Client) FetchSatellites(ctx context.Context, ids []int) ([]model.SatelliteRecord, error) {
	return c.perID(ctx, ids, func(ctx context.Context, id int) ([]model.SatelliteRecord, error) {
		r, err := c.position(ctx, id)
		if err != nil {
			return nil, err
		}
		return []model.SatelliteRecord{*r}, nil
	})
}

// perID calls fetch for every id with bounded parallelism and concatenates
// the results in id order.
func (c *Client) perID(ctx context.Context, ids []int, fetch func(context.Context, int) ([]model.SatelliteRecord, error)) ([]model.SatelliteRecord, error) {
	if c.key == "" {
		return nil, fmt.Errorf("n2yo: %w", provider.ErrNotConfigured)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	recs := make([][]model.SatelliteRecord, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, id := range ids {
		g.Go(func() error {
			rs, err := fetch(gctx, id)
			if err != nil {
				errs[i] = fmt.Errorf("norad %d: %w", id, err)
				return nil
			}
			recs[i] = rs
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.SatelliteRecord, 0, len(ids))
	failed := 0
	for i, rs := range recs {
		if errs[i] != nil {
			failed++
			continue
		}
		out = append(out, rs...)
	}
	if failed == len(ids) {
		return nil, fmt.Errorf("n2yo: %w", errors.Join(errs...))
	}
	return out, nil
}

func (c *Client) position(ctx context.Context, id int) (*model.SatelliteRecord, error) {
	u := fmt.Sprintf("%s/positions/%d/%.4f/%.4f/0/1/&apiKey=%s", c.baseURL, id, c.obsLat, c.obsLon, c.key)
	b, err := httpclient.Get(ctx, c.http, c.Name(), u, "application/json")
	if err != nil {
		return nil, err
	}
	return parsePosition(b, id)
}

func parsePosition(b []byte, id int) (*model.SatelliteRecord, error) {
	var doc positionsDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformed, err)
	}
	if doc.Error != "" {
		return nil, fmt.Errorf("n2yo error: %s", doc.Error)
	}
	if len(doc.Positions) == 0 {
		return nil, fmt.Errorf("%w: no positions", provider.ErrMalformed)
	}
	p := doc.Positions[0]
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return nil, fmt.Errorf("%w: position out of range", provider.ErrMalformed)
	}
	sid := doc.Info.SatID
	if sid == 0 {
		sid = id
	}
	return &model.SatelliteRecord{
		Kind:       model.SatellitePosition,
		NoradID:    sid,
		Name:       strings.TrimSpace(doc.Info.SatName),
		Latitude:   p.Lat,
		Longitude:  p.Lon,
		AltitudeKm: p.Alt,
		Elevation:  p.Elevation,
		Timestamp:  time.Unix(p.Timestamp, 0).UTC(),
	}, nil
}
