package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/region"
)

// kmPerDegLat is the length of one degree of latitude on the haversine sphere.
const kmPerDegLat = earthRadiusKm * math.Pi / 180

func testRegion(prior region.Prior) region.Region {
	return region.Region{ID: "argungu", Name: "Argungu", Lat: 12.7448, Lon: 4.5251, Prior: prior}
}

// hotspotNorthOf places a hotspot d km due north of r.
func hotspotNorthOf(r region.Region, d float64) model.HotspotRecord {
	return model.HotspotRecord{Latitude: r.Lat + d/kmPerDegLat, Longitude: r.Lon, Confidence: model.ConfidenceNominal}
}

func available(hs []model.HotspotRecord, rs []model.ReportRecord) Inputs {
	return Inputs{Hotspots: hs, Reports: rs, HotspotsAvailable: true, ReportsAvailable: true}
}

func TestScenario_BorderRegionOneHotspotOneHighReport(t *testing.T) {
	e := NewEngine(region.DefaultScoring())
	r := testRegion(region.PriorBorder)

	in := available(
		[]model.HotspotRecord{hotspotNorthOf(r, 10)},
		[]model.ReportRecord{{Title: "Gunmen raid village near Argungu", Severity: model.SeverityHigh}},
	)
	a := e.ComputeRegionRisk(r, in)

	assert.InDelta(t, 0.10, a.Terms.Proximity, 1e-9)
	assert.InDelta(t, 0.10, a.Terms.Reports, 1e-9)
	assert.InDelta(t, 0.15, a.Terms.Prior, 1e-9)
	assert.InDelta(t, 0.35, a.Score, 1e-9)
	assert.Equal(t, LevelMedium, a.Classification)
	assert.False(t, a.PriorOnly)
	assert.False(t, a.Degraded)
	assert.Equal(t, 1, a.NearbyHotspots)
	assert.Equal(t, 1, a.Mentions)
}

func TestClassify_FixedThresholds(t *testing.T) {
	th := region.DefaultScoring().Thresholds
	cases := []struct {
		s    float64
		want Level
	}{
		{0.0, LevelLow},
		{0.199, LevelLow},
		{0.2, LevelMedium},
		{0.399, LevelMedium},
		{0.4, LevelHigh},
		{0.599, LevelHigh},
		{0.6, LevelCritical},
		{1.0, LevelCritical},
	}
	for _, c := range cases {
		if got := Classify(c.s, th); got != c.want {
			t.Fatalf("Classify(%v)=%s want %s", c.s, got, c.want)
		}
		// pure: repeated calls agree
		if Classify(c.s, th) != Classify(c.s, th) {
			t.Fatalf("Classify(%v) not deterministic", c.s)
		}
	}
}

func TestScore_MonotonicInHotspotProximity(t *testing.T) {
	e := NewEngine(region.DefaultScoring())
	r := testRegion(region.PriorNone)
	base := []model.HotspotRecord{hotspotNorthOf(r, 25), hotspotNorthOf(r, 12)}

	prev := e.ComputeRegionRisk(r, available(base, nil)).Score
	for d := 40.0; d >= 0; d -= 2.5 {
		hs := append(append([]model.HotspotRecord{}, base...), hotspotNorthOf(r, d))
		s := e.ComputeRegionRisk(r, available(hs, nil)).Score
		if s < prev {
			t.Fatalf("score decreased moving hotspot closer: d=%v score=%v prev=%v", d, s, prev)
		}
		prev = s
	}
}

func TestScore_CapsAndClamp(t *testing.T) {
	e := NewEngine(region.DefaultScoring())
	r := testRegion(region.PriorHighIncident)

	var hs []model.HotspotRecord
	for range 20 {
		hs = append(hs, hotspotNorthOf(r, 0))
	}
	var rs []model.ReportRecord
	for range 10 {
		rs = append(rs, model.ReportRecord{Title: "ARGUNGU attack", Severity: model.SeverityCritical})
	}
	a := e.ComputeRegionRisk(r, available(hs, rs))

	assert.InDelta(t, 0.35, a.Terms.Proximity, 1e-9)
	assert.InDelta(t, 0.40, a.Terms.Reports, 1e-9)
	assert.InDelta(t, 1.0, a.Score, 1e-9)
	assert.Equal(t, LevelCritical, a.Classification)
}

func TestScore_IgnoresFarHotspotsAndUnmentionedReports(t *testing.T) {
	e := NewEngine(region.DefaultScoring())
	r := testRegion(region.PriorNone)

	a := e.ComputeRegionRisk(r, available(
		[]model.HotspotRecord{hotspotNorthOf(r, 30), hotspotNorthOf(r, 80)},
		[]model.ReportRecord{
			{Title: "Clash in Zuru", Severity: model.SeverityCritical},
			{Title: "Nothing here", Description: "argungu mentioned only in body", Severity: model.SeverityHigh},
		},
	))
	assert.Zero(t, a.Score)
	assert.Equal(t, LevelLow, a.Classification)
}

func TestPriorOnly_WhenBothCategoriesUnavailable(t *testing.T) {
	e := NewEngine(region.DefaultScoring())
	r := testRegion(region.PriorHighIncident)

	// slices are ignored when their category is unavailable
	in := Inputs{
		Hotspots: []model.HotspotRecord{hotspotNorthOf(r, 1)},
		Reports:  []model.ReportRecord{{Title: "Argungu", Severity: model.SeverityCritical}},
	}
	a := e.ComputeRegionRisk(r, in)
	assert.True(t, a.PriorOnly)
	assert.True(t, a.Degraded)
	assert.InDelta(t, 0.25, a.Score, 1e-9)
	assert.Equal(t, LevelMedium, a.Classification)

	in.ReportsAvailable = true
	a = e.ComputeRegionRisk(r, in)
	assert.False(t, a.PriorOnly)
	assert.True(t, a.Degraded)
	assert.InDelta(t, 0.45, a.Score, 1e-9)
}

func TestAliasesCountAsMentions(t *testing.T) {
	e := NewEngine(region.DefaultScoring())
	r := region.Region{ID: "wasagu-danko", Name: "Wasagu/Danko", Lat: 11.35, Lon: 5.45, Aliases: []string{"wasagu", "danko"}}
	a := e.ComputeRegionRisk(r, available(nil, []model.ReportRecord{{Title: "Troops deployed to Danko", Severity: model.SeverityHigh}}))
	assert.Equal(t, 1, a.Mentions)
	assert.InDelta(t, 0.1, a.Score, 1e-9)
}

func TestComputeAll_OnePerRegion(t *testing.T) {
	tbl, err := region.Load("")
	require.NoError(t, err)
	e := NewEngine(tbl.Scoring())

	as := e.ComputeAll(tbl.All(), Inputs{})
	require.Len(t, as, 21)
	for _, a := range as {
		assert.True(t, a.PriorOnly, a.RegionID)
	}
}

func TestDistanceKm_KnownValues(t *testing.T) {
	assert.InDelta(t, 10.0, DistanceKm(12.0, 4.0, 12.0+10/kmPerDegLat, 4.0), 1e-9)
	assert.Zero(t, DistanceKm(11.43, 5.23, 11.43, 5.23))
	// Birnin Kebbi to Zuru is roughly 160 km
	d := DistanceKm(12.4539, 4.1975, 11.4308, 5.2309)
	assert.InDelta(t, 160, d, 10)
}

func TestOverallThreat_Levels(t *testing.T) {
	crit := model.ReportRecord{Severity: model.SeverityCritical}
	high := model.ReportRecord{Severity: model.SeverityHigh}
	critRegion := Assessment{Classification: LevelCritical}
	highRegion := Assessment{Classification: LevelHigh}

	cases := []struct {
		name     string
		as       []Assessment
		rs       []model.ReportRecord
		hotspots int
		want     ThreatLevel
	}{
		{"quiet", nil, nil, 0, ThreatGuarded},
		{"many hotspots", nil, nil, 6, ThreatElevated},
		{"one high report", nil, []model.ReportRecord{high}, 0, ThreatElevated},
		{"three high regions", []Assessment{highRegion, highRegion, highRegion}, nil, 0, ThreatElevated},
		{"one critical report", nil, []model.ReportRecord{crit}, 0, ThreatHigh},
		{"two critical regions", []Assessment{critRegion, critRegion}, nil, 0, ThreatHigh},
		{"three critical reports", nil, []model.ReportRecord{crit, crit, crit}, 0, ThreatCritical},
		{"four critical regions", []Assessment{critRegion, critRegion, critRegion, critRegion}, nil, 0, ThreatCritical},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, OverallThreat(c.as, c.rs, c.hotspots).Level)
		})
	}
}
