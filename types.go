package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Placement selects where along one axis of an object's bounding box the
// pivot ends up.
type Placement int

const (
	PlacementMin Placement = iota
	PlacementMid
	PlacementMax
)

func parsePlacement(s string) (Placement, error) {
	switch strings.ToLower(s) {
	case "min":
		return PlacementMin, nil
	case "mid", "middle":
		return PlacementMid, nil
	case "max":
		return PlacementMax, nil
	}
	return 0, fmt.Errorf("invalid pivot placement %q (want min, mid or max)", s)
}

func parseAxis(s string) (int, error) {
	switch strings.ToLower(s) {
	case "x", "0":
		return 0, nil
	case "y", "1":
		return 1, nil
	case "z", "2":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid axis %q (want x, y or z)", s)
}

// Config holds everything one run needs. Each run gets its own value; there
// is no shared processor state between runs.
type Config struct {
	SourceRoot string
	Dest       string

	AssetExt         string // recognized asset extension, e.g. ".obj"
	AssetsOnly       bool   // mask non-asset files out of the selection
	Combine          bool   // merge each file's meshes into one object
	OwnFilePerObject bool   // one output file per object (ignored with Combine)

	ScalingEnabled     bool
	GridSpacing        [3]float64 // per-axis grid when stretching is allowed
	AllowStretching    bool
	MainAxis           int     // anchor axis when stretching is not allowed
	UniformGridSpacing float64 // uniform grid when stretching is not allowed

	PivotEnabled   bool
	PivotPlacement [3]Placement
}

// Validation and geometry errors. The pipeline treats all of these as fatal
// to the run.
var (
	ErrSourceNotFound         = errors.New("source path does not exist")
	ErrNoAssetFiles           = errors.New("source contains no asset files")
	ErrEmptyDestination       = errors.New("no destination folder was set")
	ErrDestinationNotWritable = errors.New("destination folder is not writable")
	ErrDegenerateGeometry     = errors.New("object has a zero-volume bounding box")
)

// RunSummary aggregates the outcome of one pipeline run.
type RunSummary struct {
	Processed int
	Total     int
	Warnings  int
	Elapsed   time.Duration
}

func (s *RunSummary) String() string {
	return fmt.Sprintf("Processing %d out of %d finished in %s with %d warnings.",
		s.Processed, s.Total, s.Elapsed.Round(time.Millisecond), s.Warnings)
}

// ProgressFunc receives (processed, total, warnings) after each file.
type ProgressFunc func(processed, total, warnings int)
