package main

import (
	"log/slog"
	"net/http"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/config"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider/firms"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider/n2yo"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider/news"
	"github.com/mohammed-shakir/sitrep-cache/internal/region"
)

// buildSources registers one source per configured upstream. Adapters
// without credentials are left out so they do not trip their breakers.
func buildSources(cfg config.Config, tbl *region.Table, hc *http.Client, log *slog.Logger) []provider.Source {
	p := cfg.Providers
	var out []provider.Source

	if p.FIRMSKey == "" {
		log.Warn("FIRMS_KEY not set; hotspots unavailable")
	} else {
		for _, sensor := range p.FIRMSSensors {
			out = append(out, provider.Hotspots(
				firms.New(hc, p.FIRMSBaseURL, p.FIRMSKey, sensor), tbl.Bounds(), p.FIRMSLookbackDays))
		}
	}

	if p.N2YOKey == "" {
		log.Warn("N2YO_KEY not set; satellites unavailable")
	} else {
		sat := n2yo.New(hc, p.N2YOBaseURL, p.N2YOKey, p.N2YOObserverLat, p.N2YOObserverLon)
		out = append(out,
			provider.Satellites(sat, p.N2YOTracked),
			provider.Satellites(sat.Passes(p.N2YOPassDays, p.N2YOPassMinVisSec), p.N2YOTracked),
			provider.Satellites(sat.Above(p.N2YOAboveRadius, p.N2YOAboveCategory), nil),
		)
	}

	cls := news.NewClassifier(tbl.Keywords(), cfg.MaxReportAge)
	if p.GNewsKey != "" {
		out = append(out, provider.Reports(news.NewGNews(hc, p.GNewsBaseURL, p.GNewsKey, cls), p.ReportQuery, p.ReportLimit))
	}
	out = append(out, provider.Reports(news.NewGDELT(hc, p.GDELTBaseURL, cls), p.ReportQuery, p.ReportLimit))
	if feeds := news.ParseFeeds(p.RSSFeeds); len(feeds) > 0 {
		out = append(out, provider.Reports(news.NewRSS(hc, feeds, cls), p.ReportQuery, p.ReportLimit))
	}
	return out
}
