package inbound

// Signal is one piece of evidence collected by a single detection
// mechanism (structural AX diff, pixel-hash diff, OS notification
// banner) during one poll tick.
type Signal struct {
	Name             string
	Text             string
	ConversationHint string
	Score            int
}

// FuseResult is the outcome of combining a tick's signals into at most
// one EventBus emission.
type FuseResult struct {
	ShouldEmit       bool
	Text             string
	ConversationHint string
	Confidence       string
	Score            int
	Source           string
}

const fusionScoreCap = 100

// confidenceFor labels a fused score per spec: high >= 80, medium >= 50,
// otherwise low.
func confidenceFor(score int) string {
	switch {
	case score >= 80:
		return "high"
	case score >= 50:
		return "medium"
	default:
		return "low"
	}
}
