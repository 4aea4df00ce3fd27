package main

import (
	"fmt"
	"math"

	"github.com/flywave/go3d/float64/vec3"
)

// Warning thresholds for the scale pass. A factor outside the grid band
// means the object had to move far to reach its nearest grid multiple; a
// pair ratio outside the stretch band means the axes scaled very unevenly.
const (
	gridBandLow     = 0.55
	gridBandHigh    = 1.45
	stretchBandLow  = 0.85
	stretchBandHigh = 1.15
)

// ComputeScale returns the per-axis factors that snap the bounding box to
// the nearest non-zero grid multiple, plus any anomaly warnings. With
// stretching allowed the grid is cfg.GridSpacing; without it the grid
// follows the object's own aspect ratio, anchored on the main axis at
// cfg.UniformGridSpacing, so the object is never deformed.
func ComputeScale(box vec3.Box, cfg *Config) (vec3.T, []string, error) {
	var dims vec3.T
	for i := 0; i < 3; i++ {
		dims[i] = box.Max[i] - box.Min[i]
		if dims[i] <= 0 {
			return vec3.T{}, nil, fmt.Errorf("%w: extent %g on axis %d",
				ErrDegenerateGeometry, dims[i], i)
		}
	}

	var grid vec3.T
	if cfg.AllowStretching {
		grid = vec3.T{cfg.GridSpacing[0], cfg.GridSpacing[1], cfg.GridSpacing[2]}
	} else {
		for i := 0; i < 3; i++ {
			grid[i] = dims[i] / dims[cfg.MainAxis] * cfg.UniformGridSpacing
		}
	}

	var factors vec3.T
	warnGrid := false
	warnStretch := false
	for i := 0; i < 3; i++ {
		multiple := math.Max(math.Round(dims[i]/grid[i]), 1)
		factors[i] = grid[i] * multiple / dims[i]

		if factors[i] <= gridBandLow || factors[i] >= gridBandHigh {
			warnGrid = true
		}
		for j := 0; j < i; j++ {
			stretch := factors[j] / factors[i]
			if stretch <= stretchBandLow || stretch >= stretchBandHigh {
				warnStretch = true
			}
		}
	}

	// Each kind of warning fires at most once per object, no matter how
	// many axes or pairs trip it.
	var warnings []string
	if warnGrid {
		warnings = append(warnings,
			fmt.Sprintf("deviates far from the grid with a scaling of %v", factors))
	}
	if warnStretch {
		warnings = append(warnings,
			fmt.Sprintf("has severe stretching along its axes with scaling of %v", factors))
	}
	return factors, warnings, nil
}

// ComputePivot returns the world-space point the pivot should move to:
// the bounding box minimum, center or maximum per axis.
func ComputePivot(box vec3.Box, placement [3]Placement) vec3.T {
	var pivot vec3.T
	for i := 0; i < 3; i++ {
		switch placement[i] {
		case PlacementMin:
			pivot[i] = box.Min[i]
		case PlacementMid:
			pivot[i] = (box.Min[i] + box.Max[i]) / 2
		case PlacementMax:
			pivot[i] = box.Max[i]
		}
	}
	return pivot
}
