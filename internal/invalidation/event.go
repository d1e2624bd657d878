// Package invalidation defines the cache invalidation event carried on the
// invalidation topic.
package invalidation

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
)

const OpInvalidate = "invalidate"

// Event scopes an invalidation by category, region or area. At most one
// scope may be set; none clears every category.
type Event struct {
	Version  uint64    `json:"version"`
	Op       string    `json:"op"`
	Category string    `json:"category,omitempty"`
	RegionID string    `json:"region_id,omitempty"`
	BBox     *BBox     `json:"bbox,omitempty"`
	TS       time.Time `json:"ts"`
	Source   string    `json:"source,omitempty"`
}

type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

func (b BBox) Model() model.BBox {
	return model.BBox{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2, SRID: b.SRID}
}

func (e Event) Validate() error {
	if e.Version == 0 {
		return fmt.Errorf("version must be positive")
	}
	if e.Op != OpInvalidate {
		return fmt.Errorf("op must be %s", OpInvalidate)
	}
	scopes := 0
	if e.Category != "" {
		scopes++
		if _, err := model.ParseCategory(e.Category); err != nil {
			return err
		}
	}
	if strings.TrimSpace(e.RegionID) != "" {
		scopes++
	}
	if e.BBox != nil {
		scopes++
		bb := *e.BBox
		if bb.SRID != "" && bb.SRID != "EPSG:4326" {
			return fmt.Errorf("bbox.srid must be EPSG:4326")
		}
		if !(bb.X1 >= -180 && bb.X1 <= 180 && bb.X2 >= -180 && bb.X2 <= 180) {
			return fmt.Errorf("bbox longitude out of range")
		}
		if !(bb.Y1 >= -90 && bb.Y1 <= 90 && bb.Y2 >= -90 && bb.Y2 <= 90) {
			return fmt.Errorf("bbox latitude out of range")
		}
		if !(bb.X2 > bb.X1 && bb.Y2 > bb.Y1) {
			return fmt.Errorf("bbox must satisfy x2>x1 and y2>y1")
		}
	}
	if scopes > 1 {
		return fmt.Errorf("at most one of category, region_id or bbox may be set")
	}
	return nil
}

// Scope is the version dedupe key of the event.
func (e Event) Scope() string {
	switch {
	case e.Category != "":
		c, _ := model.ParseCategory(e.Category)
		return "category:" + string(c)
	case e.RegionID != "":
		return "region:" + strings.ToLower(strings.TrimSpace(e.RegionID))
	case e.BBox != nil:
		return "bbox:" + e.BBox.Model().String()
	}
	return "all"
}
