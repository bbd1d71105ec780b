// Package chatsurface is the ChatSurface adapter (spec L5): capability-based
// UI automation against an opaque, non-cooperative chat application. Every
// interaction is a resolve -> act -> re-resolve loop over a selector-scored
// accessibility tree snapshot.
package chatsurface

import (
	"math"
	"strings"
)

// Range is an inclusive [min, max] fraction of a window dimension.
type Range struct {
	Min, Max float64
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// GeometryHint narrows selector candidates to a region of the window,
// expressed as fractions of window width/height.
type GeometryHint struct {
	RegionX  Range
	RegionY  Range
	MinWidth float64
}

// Selector is a set of constraints scored against an accessibility node.
// The highest-scoring candidate wins; ties break by geometry-center
// distance to the declared region, then by smallest area.
type Selector struct {
	Role            string
	Subrole         string
	TextHints       []string
	MustBeSettable  []string
	RequiredActions []string
	GeometryHint    GeometryHint
}

// Node is a scored accessibility tree node, flattened from a platform AX
// scan by axhost.
type Node struct {
	Role        string
	Subrole     string
	Text        string
	PID         int
	Settable    map[string]bool
	Actions     map[string]bool
	FrameX      float64 // fraction of window width, node left edge
	FrameY      float64 // fraction of window height, node top edge
	FrameW      float64 // fraction of window width
	FrameH      float64 // fraction of window height
	WindowDepth int
}

func (n Node) centerX() float64 { return n.FrameX + n.FrameW/2 }
func (n Node) centerY() float64 { return n.FrameY + n.FrameH/2 }
func (n Node) area() float64    { return n.FrameW * n.FrameH }

// score counts how many of the selector's constraints the node satisfies.
func score(n Node, s Selector) int {
	total := 0
	if s.Role != "" {
		if n.Role != s.Role {
			return -1
		}
		total++
	}
	if s.Subrole != "" {
		if n.Subrole != s.Subrole {
			return -1
		}
		total++
	}
	for _, hint := range s.TextHints {
		if containsFold(n.Text, hint) {
			total++
		}
	}
	for _, attr := range s.MustBeSettable {
		if !n.Settable[attr] {
			return -1
		}
		total++
	}
	for _, action := range s.RequiredActions {
		if !n.Actions[action] {
			return -1
		}
		total++
	}
	if s.GeometryHint.RegionX != (Range{}) || s.GeometryHint.RegionY != (Range{}) {
		if !s.GeometryHint.RegionX.contains(n.centerX()) || !s.GeometryHint.RegionY.contains(n.centerY()) {
			return -1
		}
		total++
	}
	if s.GeometryHint.MinWidth > 0 {
		if n.FrameW < s.GeometryHint.MinWidth {
			return -1
		}
		total++
	}
	return total
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func regionCenter(s Selector) (float64, float64) {
	return (s.GeometryHint.RegionX.Min + s.GeometryHint.RegionX.Max) / 2,
		(s.GeometryHint.RegionY.Min + s.GeometryHint.RegionY.Max) / 2
}

// Resolve picks the highest-scoring candidate for selector among nodes.
// Negative-scoring (disqualified) candidates are never returned.
func Resolve(nodes []Node, s Selector) (Node, bool) {
	best := -1
	var bestNode Node
	bestDist := math.Inf(1)
	bestArea := math.Inf(1)

	regionCX, regionCY := regionCenter(s)

	for _, n := range nodes {
		sc := score(n, s)
		if sc < 0 {
			continue
		}
		dist := math.Hypot(n.centerX()-regionCX, n.centerY()-regionCY)
		area := n.area()

		switch {
		case sc > best:
			best, bestNode, bestDist, bestArea = sc, n, dist, area
		case sc == best && dist < bestDist:
			bestNode, bestDist, bestArea = n, dist, area
		case sc == best && dist == bestDist && area < bestArea:
			bestNode, bestArea = n, area
		}
	}
	return bestNode, best >= 0
}
