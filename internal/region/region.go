// Package region holds the static table of monitored regions: centroids,
// incident priors and the scoring parameters applied to them.
package region

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
)

//go:embed regions.yaml
var defaultTable []byte

type Prior string

const (
	PriorNone         Prior = "none"
	PriorBorder       Prior = "border"
	PriorHighIncident Prior = "high_incident"
)

type Region struct {
	ID      string   `yaml:"id" json:"id" validate:"required"`
	Name    string   `yaml:"name" json:"name" validate:"required"`
	Lat     float64  `yaml:"lat" json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64  `yaml:"lon" json:"lon" validate:"gte=-180,lte=180"`
	Prior   Prior    `yaml:"prior" json:"prior" validate:"oneof=none border high_incident"`
	Aliases []string `yaml:"aliases" json:"aliases,omitempty" validate:"dive,required"`
}

// Names returns the lowercased name and aliases used for mention matching.
func (r Region) Names() []string {
	out := make([]string, 0, 1+len(r.Aliases))
	out = append(out, strings.ToLower(r.Name))
	for _, a := range r.Aliases {
		out = append(out, strings.ToLower(a))
	}
	return out
}

type Thresholds struct {
	Critical float64 `yaml:"critical" json:"critical" validate:"gtfield=High,lte=1"`
	High     float64 `yaml:"high" json:"high" validate:"gtfield=Medium"`
	Medium   float64 `yaml:"medium" json:"medium" validate:"gt=0"`
}

// Scoring holds the risk weights. Zero values are filled from DefaultScoring.
type Scoring struct {
	RadiusKm          float64    `yaml:"radius_km" json:"radius_km" validate:"gt=0"`
	HotspotIncrement  float64    `yaml:"hotspot_increment" json:"hotspot_increment" validate:"gt=0,lte=1"`
	ProximityCap      float64    `yaml:"proximity_cap" json:"proximity_cap" validate:"gt=0,lte=1"`
	CriticalMention   float64    `yaml:"critical_mention" json:"critical_mention" validate:"gte=0,lte=1"`
	Mention           float64    `yaml:"mention" json:"mention" validate:"gte=0,lte=1"`
	MentionCap        float64    `yaml:"mention_cap" json:"mention_cap" validate:"gte=0,lte=1"`
	PriorHighIncident float64    `yaml:"prior_high_incident" json:"prior_high_incident" validate:"gte=0,lte=1"`
	PriorBorder       float64    `yaml:"prior_border" json:"prior_border" validate:"gte=0,lte=1"`
	Thresholds        Thresholds `yaml:"thresholds" json:"thresholds"`
}

func DefaultScoring() Scoring {
	return Scoring{
		RadiusKm:          30,
		HotspotIncrement:  0.15,
		ProximityCap:      0.35,
		CriticalMention:   0.2,
		Mention:           0.1,
		MentionCap:        0.40,
		PriorHighIncident: 0.25,
		PriorBorder:       0.15,
		Thresholds:        Thresholds{Critical: 0.6, High: 0.4, Medium: 0.2},
	}
}

// PriorWeight maps a prior class to its score contribution.
func (s Scoring) PriorWeight(p Prior) float64 {
	switch p {
	case PriorHighIncident:
		return s.PriorHighIncident
	case PriorBorder:
		return s.PriorBorder
	}
	return 0
}

type bounds struct {
	MinLat float64 `yaml:"min_lat" validate:"gte=-90,lte=90"`
	MaxLat float64 `yaml:"max_lat" validate:"gtfield=MinLat,lte=90"`
	MinLon float64 `yaml:"min_lon" validate:"gte=-180,lte=180"`
	MaxLon float64 `yaml:"max_lon" validate:"gtfield=MinLon,lte=180"`
}

type file struct {
	Bounds  bounds   `yaml:"bounds"`
	Scoring *Scoring `yaml:"scoring" validate:"-"`
	Regions []Region `yaml:"regions" validate:"required,min=1,dive"`
}

// Table is immutable after Load.
type Table struct {
	bounds  model.BBox
	scoring Scoring
	regions []Region
	byID    map[string]int
}

// Load reads the table from path, or the embedded default when path is empty.
func Load(path string) (*Table, error) {
	b := defaultTable
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read region table: %w", err)
		}
		b = raw
	}
	return Parse(b)
}

func Parse(b []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse region table: %w", err)
	}
	for i := range f.Regions {
		if f.Regions[i].Prior == "" {
			f.Regions[i].Prior = PriorNone
		}
	}
	sc := DefaultScoring()
	if f.Scoring != nil {
		sc = mergeScoring(sc, *f.Scoring)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(f); err != nil {
		return nil, fmt.Errorf("validate region table: %w", err)
	}
	if err := v.Struct(sc); err != nil {
		return nil, fmt.Errorf("validate scoring: %w", err)
	}

	t := &Table{
		bounds: model.BBox{
			X1: f.Bounds.MinLon, Y1: f.Bounds.MinLat,
			X2: f.Bounds.MaxLon, Y2: f.Bounds.MaxLat,
			SRID: "EPSG:4326",
		},
		scoring: sc,
		regions: f.Regions,
		byID:    make(map[string]int, len(f.Regions)),
	}
	for i, r := range f.Regions {
		if _, dup := t.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate region id %q", r.ID)
		}
		t.byID[r.ID] = i
	}
	return t, nil
}

func mergeScoring(base, over Scoring) Scoring {
	pick := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	pick(&base.RadiusKm, over.RadiusKm)
	pick(&base.HotspotIncrement, over.HotspotIncrement)
	pick(&base.ProximityCap, over.ProximityCap)
	pick(&base.CriticalMention, over.CriticalMention)
	pick(&base.Mention, over.Mention)
	pick(&base.MentionCap, over.MentionCap)
	pick(&base.PriorHighIncident, over.PriorHighIncident)
	pick(&base.PriorBorder, over.PriorBorder)
	pick(&base.Thresholds.Critical, over.Thresholds.Critical)
	pick(&base.Thresholds.High, over.Thresholds.High)
	pick(&base.Thresholds.Medium, over.Thresholds.Medium)
	return base
}

func (t *Table) Bounds() model.BBox { return t.bounds }

func (t *Table) Scoring() Scoring { return t.scoring }

func (t *Table) All() []Region {
	out := make([]Region, len(t.regions))
	copy(out, t.regions)
	return out
}

func (t *Table) Get(id string) (Region, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Region{}, false
	}
	return t.regions[i], true
}

// Select returns the regions with the given ids in table order. Unknown
// ids are skipped; an empty list selects everything.
func (t *Table) Select(ids []string) []Region {
	if len(ids) == 0 {
		return t.All()
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = struct{}{}
	}
	var out []Region
	for _, r := range t.regions {
		if _, ok := want[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Keywords returns every region name and alias, lowercased.
func (t *Table) Keywords() []string {
	var out []string
	for _, r := range t.regions {
		out = append(out, r.Names()...)
	}
	return out
}
