// Package firms adapts the NASA FIRMS area CSV API to hotspot records.
package firms

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

// Client fetches one sensor. Register one Client per sensor.
type Client struct {
	http    *http.Client
	baseURL string
	key     string
	sensor  string
}

func New(c *http.Client, baseURL, key, sensor string) *Client {
	return &Client{http: c, baseURL: strings.TrimRight(baseURL, "/"), key: key, sensor: sensor}
}

func (c *Client) Name() string { return "firms:" + c.sensor }

func (c *Client) FetchHotspots(ctx context.Context, bounds model.BBox, lookbackDays int) ([]model.HotspotRecord, error) {
	if c.key == "" {
		return nil, fmt.Errorf("firms: %w", provider.ErrNotConfigured)
	}
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	u := fmt.Sprintf("%s/%s/%s/%s/%d", c.baseURL, c.key, c.sensor, bounds.String(), lookbackDays)
	b, err := httpclient.Get(ctx, c.http, c.Name(), u, "text/csv")
	if err != nil {
		return nil, fmt.Errorf("firms %s: %w", c.sensor, err)
	}
	hs, err := Parse(b, c.sensor)
	if err != nil {
		return nil, fmt.Errorf("firms %s: %w", c.sensor, err)
	}

	out := hs[:0]
	for _, h := range hs {
		if bounds.Contains(h.Latitude, h.Longitude) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Parse decodes a FIRMS CSV document. Rows that fail to parse are skipped;
// a header without coordinates is an error.
func Parse(b []byte, sensor string) ([]model.HotspotRecord, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", provider.ErrMalformed, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["latitude"]; !ok {
		return nil, fmt.Errorf("%w: no latitude column", provider.ErrMalformed)
	}
	if _, ok := col["longitude"]; !ok {
		return nil, fmt.Errorf("%w: no longitude column", provider.ErrMalformed)
	}

	var out []model.HotspotRecord
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", provider.ErrMalformed, err)
		}
		if len(rec) < len(header) {
			continue
		}
		h, ok := parseRow(rec, col, sensor)
		if ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func parseRow(rec []string, col map[string]int, sensor string) (model.HotspotRecord, bool) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	lat, err1 := strconv.ParseFloat(get("latitude"), 64)
	lon, err2 := strconv.ParseFloat(get("longitude"), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return model.HotspotRecord{}, false
	}

	bright := get("bright_ti4")
	if bright == "" {
		bright = get("brightness")
	}
	kelvin, _ := strconv.ParseFloat(bright, 64)
	frp, _ := strconv.ParseFloat(get("frp"), 64)

	at, ok := acquiredAt(get("acq_date"), get("acq_time"))
	if !ok {
		return model.HotspotRecord{}, false
	}

	sid := get("satellite")
	if sid == "" {
		sid = sensor
	}

	return model.HotspotRecord{
		Latitude:         lat,
		Longitude:        lon,
		BrightnessKelvin: kelvin,
		Confidence:       confidence(get("confidence")),
		AcquiredAt:       at,
		SensorID:         sid,
		FRP:              frp,
		DayNight:         get("daynight"),
	}, true
}

// acq_time is HHMM in UTC, sometimes without leading zeros.
func acquiredAt(date, hhmm string) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, false
	}
	if hhmm == "" {
		return d, true
	}
	n, err := strconv.Atoi(hhmm)
	if err != nil || n < 0 || n > 2359 || n%100 > 59 {
		return time.Time{}, false
	}
	return d.Add(time.Duration(n/100)*time.Hour + time.Duration(n%100)*time.Minute), true
}

// VIIRS reports l/n/h, MODIS a 0-100 percentage.
func confidence(s string) model.Confidence {
	switch strings.ToLower(s) {
	case "l", "low":
		return model.ConfidenceLow
	case "h", "high":
		return model.ConfidenceHigh
	case "n", "nominal", "":
		return model.ConfidenceNominal
	}
	pct, err := strconv.Atoi(s)
	if err != nil {
		return model.ConfidenceNominal
	}
	switch {
	case pct < 30:
		return model.ConfidenceLow
	case pct >= 80:
		return model.ConfidenceHigh
	}
	return model.ConfidenceNominal
}
