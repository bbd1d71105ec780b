package panesurface

import "strings"

// selectorGlyphs prefix the lines of a rendered selection menu. A filled
// glyph (● or ❯) marks the currently highlighted option; empty glyphs (○,
// *) mark the rest.
var (
	filledGlyphs = []string{"●", "❯"}
	emptyGlyphs  = []string{"○", "*"}
)

func hasGlyphPrefix(line string, glyphs []string) bool {
	trimmed := strings.TrimSpace(line)
	for _, g := range glyphs {
		if strings.HasPrefix(trimmed, g) {
			return true
		}
	}
	return false
}

// ScanSelectorLines scans pane lines bottom-up for a contiguous run of
// selector-glyph lines (the rendered option menu) and reports the option
// text (glyph stripped) in top-to-bottom order plus which one is
// currently highlighted. ok is false if fewer than two selector lines are
// found.
func ScanSelectorLines(lines []string) (options []string, selectedIndex int, ok bool) {
	start, end := -1, -1
	selected := -1
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		isFilled := hasGlyphPrefix(line, filledGlyphs)
		isEmpty := hasGlyphPrefix(line, emptyGlyphs)
		if !isFilled && !isEmpty {
			if end != -1 {
				break
			}
			continue
		}
		if end == -1 {
			end = i
		}
		start = i
	}
	if start == -1 || end == -1 {
		return nil, 0, false
	}
	for i := start; i <= end; i++ {
		line := strings.TrimSpace(lines[i])
		if hasGlyphPrefix(line, filledGlyphs) {
			selected = i - start
			line = stripGlyphPrefix(line, filledGlyphs)
		} else {
			line = stripGlyphPrefix(line, emptyGlyphs)
		}
		options = append(options, strings.TrimSpace(line))
	}
	if len(options) < 2 || selected < 0 {
		return nil, 0, false
	}
	return options, selected, true
}

func stripGlyphPrefix(line string, glyphs []string) string {
	for _, g := range glyphs {
		if strings.HasPrefix(line, g) {
			return strings.TrimSpace(strings.TrimPrefix(line, g))
		}
	}
	return line
}
