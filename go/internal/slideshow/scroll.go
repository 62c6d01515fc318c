package slideshow

import (
	"math"

	"github.com/mcdev12/punchdeck/go/internal/punch"
)

// PhotosToAdvance maps a punch acceleration to the number of slides to skip:
// round(base * (1 + acceleration*scaling)) clamped to [1, maxPhotos].
// Zero tuning values fall back to the defaults.
func PhotosToAdvance(acceleration float64, cfg punch.PhotoScroll) int {
	defaults := punch.DefaultConfig().PhotoScroll
	if cfg.BaseMultiplier == 0 {
		cfg.BaseMultiplier = defaults.BaseMultiplier
	}
	if cfg.ScalingFactor == 0 {
		cfg.ScalingFactor = defaults.ScalingFactor
	}
	if cfg.MaxPhotos == 0 {
		cfg.MaxPhotos = defaults.MaxPhotos
	}

	// half-up rounding, matching the displays
	raw := math.Floor(cfg.BaseMultiplier*(1+acceleration*cfg.ScalingFactor) + 0.5)
	if math.IsNaN(raw) || raw < 1 {
		return 1
	}
	if raw > float64(cfg.MaxPhotos) {
		return max(1, cfg.MaxPhotos)
	}
	return int(raw)
}
