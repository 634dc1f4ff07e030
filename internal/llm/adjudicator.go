package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Request is one cell change submitted for risk adjudication.
type Request struct {
	ID         int    `json:"id"`
	Table      string `json:"table,omitempty"`
	ColumnName string `json:"column_name"`
	ColumnTier string `json:"column_tier,omitempty"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
}

// Verdict is the adjudicator's answer for one Request. Err is set when
// that single item could not be judged.
type Verdict struct {
	RiskTier   string  `json:"risk_tier"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Err        error   `json:"-"`
}

// Adjudicator judges the risk of ambiguous cell changes. Implementations
// return one Verdict per Request, in order, or an error for the whole batch.
type Adjudicator interface {
	Adjudicate(ctx context.Context, reqs []Request) ([]Verdict, error)
}

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PromptAdjudicator asks a text generator to judge a batch of changes in
// one prompt and parses the JSON it answers with.
type PromptAdjudicator struct {
	gen Generator
}

// NewPromptAdjudicator wraps a Generator.
func NewPromptAdjudicator(gen Generator) *PromptAdjudicator {
	return &PromptAdjudicator{gen: gen}
}

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

type promptVerdict struct {
	ID         int      `json:"id"`
	RiskTier   string   `json:"risk_tier"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

type promptResponse struct {
	Verdicts []promptVerdict `json:"verdicts"`
}

// Adjudicate implements Adjudicator.
func (a *PromptAdjudicator) Adjudicate(ctx context.Context, reqs []Request) ([]Verdict, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	response, err := a.gen.Generate(ctx, buildPrompt(reqs))
	if err != nil {
		return nil, err
	}

	// Extract JSON
	jsonStr := jsonObjectPattern.FindString(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var parsed promptResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("decode verdicts: %w", err)
	}

	byID := make(map[int]promptVerdict, len(parsed.Verdicts))
	for _, v := range parsed.Verdicts {
		byID[v.ID] = v
	}

	verdicts := make([]Verdict, len(reqs))
	for i, req := range reqs {
		v, ok := byID[req.ID]
		switch {
		case !ok:
			verdicts[i].Err = fmt.Errorf("no verdict for item %d", req.ID)
		case v.Confidence == nil:
			verdicts[i].Err = fmt.Errorf("verdict for item %d has no confidence", req.ID)
		default:
			verdicts[i] = Verdict{RiskTier: v.RiskTier, Confidence: *v.Confidence, Rationale: v.Rationale}
		}
	}
	return verdicts, nil
}

func buildPrompt(reqs []Request) string {
	var items strings.Builder
	for _, r := range reqs {
		fmt.Fprintf(&items, "- id=%d table=%q column=%q (default tier %s): %q -> %q\n",
			r.ID, r.Table, r.ColumnName, r.ColumnTier, r.OldValue, r.NewValue)
	}

	return fmt.Sprintf(`
You are reviewing edits to a project-tracking spreadsheet. For each cell change below,
judge how risky the edit is for the project.

Tiers:
- L1: critical, must be reviewed immediately (status downgrades, cancelled or stopped work, deadline slips)
- L2: notable, needs a human look
- L3: routine, informational only

Changes:
%s
Return a JSON object of the form:
{
	"verdicts": [
		{"id": 1, "risk_tier": "L2", "confidence": 0.8, "rationale": "Owner reassigned..."}
	]
}

confidence is between 0 and 1. Include every id exactly once. Return ONLY the JSON.
`, items.String())
}
