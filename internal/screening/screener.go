// Package screening filters raw signals by sentiment before any
// capital-facing work happens.
package screening

import (
	"context"
	"log"
	"time"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/sentiment"
)

// Result is one screening verdict. Failed candidates carry the reason
// and are dropped from the pipeline after reporting.
type Result struct {
	Candidate *domain.Candidate
	Passed    bool
	Reason    string
}

// Options configures the screening stage.
type Options struct {
	Scorer    sentiment.Scorer
	Threshold float64 // minimum passing score
	Logger    *log.Logger
}

// Screener scores signals against the sentiment collaborator. Pass
// requires mentions > 0 and score at or above the threshold.
type Screener struct {
	scorer    sentiment.Scorer
	threshold float64
	logger    *log.Logger
}

// NewScreener creates a screening stage.
func NewScreener(opts Options) *Screener {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Screener{
		scorer:    opts.Scorer,
		threshold: opts.Threshold,
		logger:    logger,
	}
}

// Screen evaluates one signal. A collaborator failure after its retry
// budget is a screening failure, not a pipeline error.
func (s *Screener) Screen(ctx context.Context, sig *domain.Signal) Result {
	verdict, err := s.scorer.Score(ctx, sig.Mint)
	if err != nil {
		s.logger.Printf("[SCREEN] %s failed: %v", sig.Mint, err)
		return Result{
			Candidate: &domain.Candidate{Signal: *sig, ScreenedAt: time.Now().UnixMilli()},
			Passed:    false,
			Reason:    "sentiment unavailable",
		}
	}

	cand := &domain.Candidate{
		Signal:         *sig,
		SentimentScore: verdict.Score,
		Mentions:       verdict.Mentions,
		ScreenedAt:     time.Now().UnixMilli(),
	}

	switch {
	case verdict.Mentions == 0:
		s.logger.Printf("[SCREEN] %s dropped: no mentions", sig.Mint)
		return Result{Candidate: cand, Passed: false, Reason: "no mentions"}
	case verdict.Score < s.threshold:
		s.logger.Printf("[SCREEN] %s dropped: score %.1f below threshold %.1f", sig.Mint, verdict.Score, s.threshold)
		return Result{Candidate: cand, Passed: false, Reason: "score below threshold"}
	}

	s.logger.Printf("[SCREEN] %s passed: score %.1f mentions %d", sig.Mint, verdict.Score, verdict.Mentions)
	return Result{Candidate: cand, Passed: true}
}
