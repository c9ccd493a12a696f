package screening

import (
	"context"
	"testing"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/sentiment"
)

type fixedScorer struct {
	verdict *sentiment.Sentiment
	err     error
}

func (f *fixedScorer) Score(context.Context, string) (*sentiment.Sentiment, error) {
	return f.verdict, f.err
}

func screen(t *testing.T, scorer sentiment.Scorer) Result {
	t.Helper()
	s := NewScreener(Options{Scorer: scorer, Threshold: 60})
	return s.Screen(context.Background(), &domain.Signal{Mint: "MintA", Symbol: "AAA"})
}

func TestScreen_PassAtThreshold(t *testing.T) {
	res := screen(t, &fixedScorer{verdict: &sentiment.Sentiment{Score: 60, Mentions: 5}})
	if !res.Passed {
		t.Fatalf("score equal to threshold must pass: %+v", res)
	}
	if res.Candidate.SentimentScore != 60 || res.Candidate.Mentions != 5 {
		t.Errorf("candidate not populated: %+v", res.Candidate)
	}
	if res.Candidate.ScreenedAt == 0 {
		t.Error("ScreenedAt must be stamped")
	}
}

func TestScreen_ScoreBelowThresholdDropped(t *testing.T) {
	// Score 45 against threshold 60 never reaches entry analysis.
	res := screen(t, &fixedScorer{verdict: &sentiment.Sentiment{Score: 45, Mentions: 10}})
	if res.Passed {
		t.Fatal("score 45 must not pass threshold 60")
	}
	if res.Reason != "score below threshold" {
		t.Errorf("unexpected reason %q", res.Reason)
	}
}

func TestScreen_ZeroMentionsFailImmediately(t *testing.T) {
	res := screen(t, &fixedScorer{verdict: &sentiment.Sentiment{Score: 95, Mentions: 0}})
	if res.Passed {
		t.Fatal("zero mentions must fail regardless of score")
	}
	if res.Reason != "no mentions" {
		t.Errorf("unexpected reason %q", res.Reason)
	}
}

func TestScreen_CollaboratorFailureIsScreeningFailure(t *testing.T) {
	res := screen(t, &fixedScorer{err: sentiment.ErrUnavailable})
	if res.Passed {
		t.Fatal("unreachable collaborator must fail the candidate")
	}
	if res.Reason != "sentiment unavailable" {
		t.Errorf("unexpected reason %q", res.Reason)
	}
	if res.Candidate == nil || res.Candidate.Signal.Mint != "MintA" {
		t.Errorf("failed result must still identify the signal: %+v", res.Candidate)
	}
}
