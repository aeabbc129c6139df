package internal

import (
	"math"
	"slices"
	"strings"
)

const (
	CanvasWidth  = 800
	CanvasHeight = 450

	// MaxStrokePoints caps the point sequence carried by a single stroke
	// document. Longer gestures are split into consecutive strokes: peers
	// see slightly larger jumps in exchange for bounded write volume.
	// This is the batching constant the granularity trade-off asks each
	// deployment to pin down.
	MaxStrokePoints = 64
)

// SortStrokes orders strokes for faithful replay: ascending timestamp,
// never store-arrival order. Stable so equal timestamps keep their
// relative append order.
func SortStrokes(strokes []Stroke) []Stroke {
	out := slices.Clone(strokes)
	slices.SortStableFunc(out, func(a, b Stroke) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return strings.Compare(a.Id, b.Id)
		}
	})
	return out
}

// ValidPoints drops non-finite coordinates and clamps the rest to the
// canonical canvas. A stroke needs at least two surviving points to be
// drawable.
func ValidPoints(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			continue
		}
		p.X = clamp(p.X, 0, CanvasWidth)
		p.Y = clamp(p.Y, 0, CanvasHeight)
		out = append(out, p)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
