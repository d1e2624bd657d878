package risk

import "github.com/mohammed-shakir/sitrep-cache/internal/core/model"

type ThreatLevel string

const (
	ThreatGuarded  ThreatLevel = "GUARDED"
	ThreatElevated ThreatLevel = "ELEVATED"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
)

type Threat struct {
	Level         ThreatLevel `json:"level"`
	Score         float64     `json:"score"`
	ActiveThreats int         `json:"active_threats"`
}

// OverallThreat rolls region assessments and report severities up into a
// single state-wide level.
func OverallThreat(as []Assessment, reports []model.ReportRecord, hotspotCount int) Threat {
	var critReports, highReports, critRegions, highRegions int
	for _, r := range reports {
		switch r.Severity {
		case model.SeverityCritical:
			critReports++
		case model.SeverityHigh:
			highReports++
		}
	}
	for _, a := range as {
		switch a.Classification {
		case LevelCritical:
			critRegions++
		case LevelHigh:
			highRegions++
		}
	}

	t := Threat{ActiveThreats: critReports + highReports + hotspotCount + critRegions}
	switch {
	case critReports > 2 || critRegions > 3:
		t.Level, t.Score = ThreatCritical, 0.85
	case critReports > 0 || highReports > 3 || critRegions > 1:
		t.Level, t.Score = ThreatHigh, 0.65
	case highReports > 0 || hotspotCount > 5 || highRegions > 2:
		t.Level, t.Score = ThreatElevated, 0.45
	default:
		t.Level, t.Score = ThreatGuarded, 0.25
	}
	return t
}
