// Package textdiff holds small pure-function text helpers. DecideDelta
// backs InboundDetector's structural signal; UnionLines is not called
// elsewhere in this module.
package textdiff

import "strings"

// Delta describes how an observed text snapshot changed relative to the
// previous one.
type Delta struct {
	Mode   string
	Data   string
	Reason string
}

// DecideDelta classifies curr against prev: unchanged content below the
// cursor, a plain append, or a full repaint when curr no longer shares
// prev's prefix.
func DecideDelta(prev, curr string, snapshotChanged bool) Delta {
	if !snapshotChanged {
		return Delta{Mode: "append", Data: "", Reason: "cursor_only"}
	}
	if strings.HasPrefix(curr, prev) {
		return Delta{Mode: "append", Data: curr[len(prev):], Reason: "prefix_append"}
	}
	return Delta{Mode: "append", Data: "\x1b[0m\x1b[H\x1b[2J" + curr, Reason: "ansi_repaint"}
}

// UnionLines merges two line sets (e.g. a row-scan OCR pass and a
// cropped-region OCR pass over the same bubble) preserving the order each
// line was first seen in, deduplicating exact repeats.
func UnionLines(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for _, line := range set {
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
		}
	}
	return out
}
