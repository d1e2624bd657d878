// Package router holds the JSON API handlers.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/overview"
	"github.com/mohammed-shakir/sitrep-cache/internal/region"
	"github.com/mohammed-shakir/sitrep-cache/internal/risk"
)

const maxRegionIDs = 64

// OverviewService produces the situational overview and clears its cache.
type OverviewService interface {
	GetCachedOrFreshOverview(ctx context.Context, regionIDs []string) overview.Overview
	InvalidateCache(ctx context.Context, category model.Category) error
}

type RegionLister interface {
	All() []region.Region
}

// HandleOverview serves GET /api/overview?regions=a,b.
func HandleOverview(logger *slog.Logger, svc OverviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := ParseRegionIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, logger, http.StatusOK, svc.GetCachedOrFreshOverview(r.Context(), ids))
	}
}

type riskResponse struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Assessments []risk.Assessment    `json:"assessments"`
	Threat      risk.Threat          `json:"threat"`
	DataQuality overview.DataQuality `json:"data_quality"`
}

// HandleRisk serves GET /api/risk: the overview without the record lists.
func HandleRisk(logger *slog.Logger, svc OverviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := ParseRegionIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ov := svc.GetCachedOrFreshOverview(r.Context(), ids)
		writeJSON(w, logger, http.StatusOK, riskResponse{
			GeneratedAt: ov.GeneratedAt,
			Assessments: ov.Assessments,
			Threat:      ov.Threat,
			DataQuality: ov.DataQuality,
		})
	}
}

// HandleRegions serves GET /api/regions.
func HandleRegions(logger *slog.Logger, regions RegionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]any{"regions": regions.All()})
	}
}

// HandleInvalidate serves POST /api/admin/cache/invalidate?category=...
// An absent category clears every category.
func HandleInvalidate(logger *slog.Logger, svc OverviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cat model.Category
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			c, err := model.ParseCategory(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			cat = c
		}
		if err := svc.InvalidateCache(r.Context(), cat); err != nil {
			logger.ErrorContext(r.Context(), "cache invalidation failed", "category", cat, "err", err)
			http.Error(w, "cache invalidation failed", http.StatusBadGateway)
			return
		}
		label := string(cat)
		if label == "" {
			label = "all"
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "invalidated", "category": label})
	}
}

var regionIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ParseRegionIDs reads the comma separated regions parameter. Ids are
// lowercased and deduplicated; an absent parameter selects every region.
func ParseRegionIDs(r *http.Request) ([]string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("regions"))
	if raw == "" {
		return nil, nil
	}
	seen := map[string]struct{}{}
	var ids []string
	for p := range strings.SplitSeq(raw, ",") {
		id := strings.ToLower(strings.TrimSpace(p))
		if id == "" {
			continue
		}
		if !regionIDPattern.MatchString(id) {
			return nil, fmt.Errorf("invalid region id %q", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) > maxRegionIDs {
		return nil, errors.New("too many region ids")
	}
	return ids, nil
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response", "err", err)
	}
}
