package aggregate

import (
	"slices"
	"strings"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/mapper"
)

// MergeHotspots concatenates hotspot items of usable results. Detections
// have no identity, so nothing is collapsed.
func MergeHotspots(results []model.ProviderResult) []model.HotspotRecord {
	var out []model.HotspotRecord
	for _, r := range results {
		if r.Origin.HasData() {
			out = append(out, r.Items.Hotspots...)
		}
	}
	return out
}

type satKey struct {
	kind  model.SatelliteKind
	id    int
	start int64
}

// MergeSatellites keeps the latest position per NORAD id and one record per
// predicted pass, in order of first appearance.
func MergeSatellites(results []model.ProviderResult) []model.SatelliteRecord {
	var out []model.SatelliteRecord
	idx := map[satKey]int{}
	for _, r := range results {
		if !r.Origin.HasData() {
			continue
		}
		for _, s := range r.Items.Satellites {
			k := satKey{kind: s.Kind, id: s.NoradID}
			if s.Kind == model.SatellitePass {
				k.start = s.PassStart.Unix()
			}
			i, seen := idx[k]
			if !seen {
				idx[k] = len(out)
				out = append(out, s)
				continue
			}
			if s.Timestamp.After(out[i].Timestamp) {
				out[i] = s
			}
		}
	}
	return out
}

// Cell is one heat-grid bucket.
type Cell struct {
	Cell     string  `json:"cell"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Count    int     `json:"count"`
	MaxFRP   float64 `json:"max_frp"`
	HighConf int     `json:"high_confidence"`
}

// HotspotCells buckets hotspots by H3 cell at res, busiest cells first.
// Points the mapper rejects are skipped.
func HotspotCells(hs []model.HotspotRecord, m mapper.Interface, res int) []Cell {
	byCell := map[string]*Cell{}
	for _, h := range hs {
		id, err := m.CellForPoint(h.Latitude, h.Longitude, res)
		if err != nil {
			continue
		}
		c, ok := byCell[id]
		if !ok {
			c = &Cell{Cell: id}
			if lat, lon, err := m.CellCenter(id); err == nil {
				c.Lat, c.Lon = lat, lon
			}
			byCell[id] = c
		}
		c.Count++
		c.MaxFRP = max(c.MaxFRP, h.FRP)
		if h.Confidence == model.ConfidenceHigh {
			c.HighConf++
		}
	}

	out := make([]Cell, 0, len(byCell))
	for _, c := range byCell {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b Cell) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Cell, b.Cell)
	})
	return out
}
