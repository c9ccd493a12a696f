package sentiment

import "context"

// StaticScorer returns a fixed verdict for every mint. Used when no
// sentiment endpoint is configured, typically in demo runs.
type StaticScorer struct {
	FixedScore    float64
	FixedMentions int
}

var _ Scorer = (*StaticScorer)(nil)

// Score returns the configured verdict.
func (s *StaticScorer) Score(ctx context.Context, mint string) (*Sentiment, error) {
	return &Sentiment{Score: s.FixedScore, Mentions: s.FixedMentions}, nil
}
