package inbound

// Fuse combines a tick's signals under fusion detection mode: scores are
// summed (capped at 100), the highest-scoring signal's text and
// conversation hint are the decision text, and shouldEmit is set once the
// sum reaches threshold.
func Fuse(signals []Signal, threshold int) FuseResult {
	if len(signals) == 0 {
		return FuseResult{}
	}

	sum := 0
	best := signals[0]
	for _, s := range signals {
		sum += s.Score
		if s.Score > best.Score {
			best = s
		}
	}
	if sum > fusionScoreCap {
		sum = fusionScoreCap
	}

	return FuseResult{
		ShouldEmit:       sum >= threshold,
		Text:             best.Text,
		ConversationHint: best.ConversationHint,
		Score:            sum,
		Confidence:       confidenceFor(sum),
		Source:           "fusion",
	}
}

// FuseLegacy emits from the first signal with non-empty text, tagged
// with its own score and name rather than a combined score.
func FuseLegacy(signals []Signal) FuseResult {
	for _, s := range signals {
		if s.Text == "" {
			continue
		}
		return FuseResult{
			ShouldEmit:       true,
			Text:             s.Text,
			ConversationHint: s.ConversationHint,
			Score:            s.Score,
			Confidence:       confidenceFor(s.Score),
			Source:           s.Name,
		}
	}
	return FuseResult{}
}
