// Package aggregate merges provider results of one category into the list a
// consumer sees.
package aggregate

import (
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
)

const (
	DefaultWindow = 48 * time.Hour
	titleKeyRunes = 80
)

type Options struct {
	// Window bounds how far apart two same-title reports may be published
	// and still count as one story.
	Window time.Duration
	// Keywords are lowercased terms; a report that is not RegionRelevant is
	// kept only if its title or description contains one.
	Keywords []string
}

// AggregateReports concatenates usable results, collapses duplicate stories,
// drops irrelevant ones and orders the rest newest first.
func AggregateReports(results []model.ProviderResult, opts Options) []model.ReportRecord {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	var all []model.ReportRecord
	for _, r := range results {
		if r.Origin.HasData() {
			all = append(all, r.Items.Reports...)
		}
	}

	kept, rel := dedup(all, opts.Window, opts.Keywords)

	out := kept[:0]
	for i, r := range kept {
		if rel[i] {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b model.ReportRecord) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return out
}

// dedup keeps one record per normalized title and window. The survivor has
// the higher severity, or the earlier publish time on a tie, and sits at the
// position of the first occurrence. rel[i] is true when any record merged
// into out[i] was relevant.
func dedup(in []model.ReportRecord, window time.Duration, keywords []string) (out []model.ReportRecord, rel []bool) {
	out = make([]model.ReportRecord, 0, len(in))
	rel = make([]bool, 0, len(in))
	byKey := make(map[string][]int, len(in))

	for _, r := range in {
		isRel := relevant(r, keywords)
		k := TitleKey(r.Title)
		if k == "" {
			out = append(out, r)
			rel = append(rel, isRel)
			continue
		}
		dup := -1
		for _, i := range byKey[k] {
			if absDur(out[i].PublishedAt.Sub(r.PublishedAt)) <= window {
				dup = i
				break
			}
		}
		if dup < 0 {
			byKey[k] = append(byKey[k], len(out))
			out = append(out, r)
			rel = append(rel, isRel)
			continue
		}
		flagged := out[dup].RegionRelevant || r.RegionRelevant
		if better(r, out[dup]) {
			out[dup] = r
		}
		out[dup].RegionRelevant = flagged
		rel[dup] = rel[dup] || isRel
	}
	return out, rel
}

func better(a, b model.ReportRecord) bool {
	if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
		return ra > rb
	}
	return a.PublishedAt.Before(b.PublishedAt)
}

// TitleKey lowercases, strips punctuation (dashes become spaces), collapses
// whitespace and keeps the first 80 runes.
func TitleKey(title string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Pd, r) {
			return ' '
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, strings.ToLower(title))
	k := []rune(strings.Join(strings.Fields(stripped), " "))
	if len(k) > titleKeyRunes {
		k = k[:titleKeyRunes]
	}
	return strings.TrimSpace(string(k))
}

func relevant(r model.ReportRecord, keywords []string) bool {
	if r.RegionRelevant {
		return true
	}
	text := strings.ToLower(r.Title + " " + r.Description)
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
