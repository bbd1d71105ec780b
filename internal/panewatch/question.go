package panewatch

import (
	"strconv"
	"strings"

	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/panesurface"
)

// DetectQuestion scans captured pane lines for a rendered selector menu
// (via panesurface.ScanSelectorLines) preceded by a line ending in "?".
// Both conditions must hold for the pane to be treated as a question
// rather than plain completion output.
func DetectQuestion(lines []string) (clawtypes.DetectedQuestion, bool) {
	options, selected, ok := panesurface.ScanSelectorLines(lines)
	if !ok {
		return clawtypes.DetectedQuestion{}, false
	}

	menuStart := findMenuStart(lines, options)
	if menuStart <= 0 {
		return clawtypes.DetectedQuestion{}, false
	}
	precedingText := ""
	for i := menuStart - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		precedingText = trimmed
		break
	}
	if !strings.HasSuffix(precedingText, "?") {
		return clawtypes.DetectedQuestion{}, false
	}

	question := clawtypes.DetectedQuestion{
		QuestionText:  precedingText,
		Options:       options,
		SelectedIndex: selected,
		QuestionID:    fingerprintQuestion(precedingText, options),
	}
	if !question.Valid() {
		return clawtypes.DetectedQuestion{}, false
	}
	return question, true
}

func findMenuStart(lines, options []string) int {
	if len(options) == 0 {
		return -1
	}
	want := options[0]
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, want) || strings.Contains(trimmed, want) {
			return i
		}
	}
	return -1
}

func fingerprintQuestion(text string, options []string) string {
	return strings.ToLower(text) + "|" + strconv.Itoa(len(options))
}
