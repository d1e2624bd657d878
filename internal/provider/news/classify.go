// Package news adapts GNews, GDELT and RSS feeds to report records.
package news

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
)

var (
	criticalWords = []string{"attack", "kill", "dead", "bomb", "kidnap", "abduct", "bandit", "terrorist",
		"massacre", "ambush", "explosion", "slain", "murder", "slaughter", "behead"}
	highWords = []string{"arrest", "military", "operation", "raid", "security", "threat", "armed", "gunmen",
		"robbery", "ransom", "troops", "insurgent", "rustling"}
	mediumWords = []string{"warning", "alert", "tension", "clash", "conflict", "unrest", "crisis", "displaced",
		"refugee", "protest", "smuggling", "border"}

	// neighbouring states and countries whose incidents spill over
	borderWords = []string{"kebbi", "sokoto", "zamfara", "niger state", "katsina", "niger republic",
		"benin republic", "northwest nigeria", "north west", "north-west", "northwest", "sahel",
		"cross-border", "border security"}

	politicalNoise = []string{"election", "campaign", "senator", "senate", "impeach", "pdp", "apc",
		"food security", "health security", "recruitment", "promotion", "bar association"}

	categoryWords = []struct {
		cat   model.ReportCategory
		words []string
	}{
		{model.ReportMilitary, []string{"military", "army", "soldier", "troop", "defence", "defense", "air force", "airforce", "navy"}},
		{model.ReportCriminal, []string{"bandit", "kidnap", "robbery", "crime", "criminal", "rustling"}},
		{model.ReportTerrorism, []string{"terror", "boko haram", "iswap", "insurgent", "lakurawa"}},
		{model.ReportPolitical, []string{"political", "governor", "government", "election"}},
		{model.ReportEnvironmental, []string{"flood", "fire", "drought", "erosion", "storm"}},
	}

	htmlTag = regexp.MustCompile(`<[^>]+>`)
)

const maxDescriptionRunes = 500

// Classifier maps free text into the report enums and decides which items
// an adapter keeps.
type Classifier struct {
	regionWords []string
	maxAge      time.Duration
	now         func() time.Time
}

// NewClassifier takes the lowercased region names and aliases used to flag
// RegionRelevant. maxAge <= 0 disables the age filter.
func NewClassifier(regionWords []string, maxAge time.Duration) *Classifier {
	ws := make([]string, 0, len(regionWords)+len(borderWords))
	for _, w := range regionWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			ws = append(ws, w)
		}
	}
	ws = append(ws, borderWords...)
	return &Classifier{regionWords: ws, maxAge: maxAge, now: time.Now}
}

func (c *Classifier) Severity(text string) model.Severity {
	t := strings.ToLower(text)
	switch {
	case containsAny(t, criticalWords):
		return model.SeverityCritical
	case containsAny(t, highWords):
		return model.SeverityHigh
	case containsAny(t, mediumWords):
		return model.SeverityMedium
	}
	return model.SeverityLow
}

func (c *Classifier) Category(text string) model.ReportCategory {
	t := strings.ToLower(text)
	for _, cw := range categoryWords {
		if containsAny(t, cw.words) {
			return cw.cat
		}
	}
	return model.ReportGeneral
}

func (c *Classifier) RegionRelevant(text string) bool {
	return containsAny(strings.ToLower(text), c.regionWords)
}

// SecurityRelated keeps incidents in the monitored area and drops political
// coverage that only borrows security vocabulary.
func (c *Classifier) SecurityRelated(text string) bool {
	t := strings.ToLower(text)
	if containsAny(t, politicalNoise) {
		return false
	}
	incident := containsAny(t, criticalWords) || containsAny(t, []string{"raid", "firefight", "clash", "gunmen"})
	return incident && containsAny(t, c.regionWords)
}

// Recent reports whether a publish time falls inside the age window.
// Unknown times are kept.
func (c *Classifier) Recent(published time.Time) bool {
	if c.maxAge <= 0 || published.IsZero() {
		return true
	}
	return c.now().Sub(published) <= c.maxAge
}

// Build classifies one upstream item. ok is false when the item is filtered
// out.
func (c *Classifier) Build(title, desc, source, url, feed string, published time.Time) (model.ReportRecord, bool) {
	title = strings.TrimSpace(title)
	if title == "" || !c.Recent(published) {
		return model.ReportRecord{}, false
	}
	desc = cleanDescription(desc)
	text := title + " " + desc
	if !c.SecurityRelated(text) {
		return model.ReportRecord{}, false
	}
	return model.ReportRecord{
		Title:          title,
		Description:    desc,
		SourceName:     source,
		URL:            strings.TrimSpace(url),
		PublishedAt:    published.UTC(),
		Severity:       c.Severity(text),
		Category:       c.Category(text),
		RegionRelevant: c.RegionRelevant(text),
		FeedSource:     feed,
	}, true
}

func cleanDescription(s string) string {
	s = strings.Join(strings.Fields(htmlTag.ReplaceAllString(s, " ")), " ")
	if utf8.RuneCountInString(s) <= maxDescriptionRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxDescriptionRunes])
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
