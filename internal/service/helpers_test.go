package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"docwatch/internal/llm"
	"docwatch/internal/policy"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// statusPolicy is a small policy with one column per tier plus a numeric
// L2 column.
func statusPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.New(policy.Document{
		CanonicalColumns: []string{"名称", "状态", "重要程度", "数量", "备注"},
		Tiers: map[string][]string{
			"L1": {"名称", "重要程度"},
			"L2": {"状态", "数量"},
			"L3": {"备注"},
		},
		Weights:          map[string]float64{"重要程度": 1.4},
		HighRiskKeywords: []string{"停产", "取消"},
	})
	require.NoError(t, err)
	return p
}

// fakeAdjudicator answers with a fixed function, optionally after a delay.
type fakeAdjudicator struct {
	mu       sync.Mutex
	calls    int
	items    int
	delay    time.Duration
	batchErr error
	answer   func(llm.Request) llm.Verdict
}

func (f *fakeAdjudicator) Adjudicate(ctx context.Context, reqs []llm.Request) ([]llm.Verdict, error) {
	f.mu.Lock()
	f.calls++
	f.items += len(reqs)
	f.mu.Unlock()

	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	out := make([]llm.Verdict, len(reqs))
	for i, r := range reqs {
		out[i] = f.answer(r)
	}
	return out, nil
}

func (f *fakeAdjudicator) counts() (calls, items int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.items
}

func fixedVerdict(tier string, confidence float64) func(llm.Request) llm.Verdict {
	return func(llm.Request) llm.Verdict {
		return llm.Verdict{RiskTier: tier, Confidence: confidence, Rationale: "fixed"}
	}
}
