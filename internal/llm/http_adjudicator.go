package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAdjudicator sends each change to a JSON endpoint:
//
//	POST {column_name, old_value, new_value} -> {risk_tier, confidence, rationale}
type HTTPAdjudicator struct {
	endpoint string
	client   *http.Client
}

// NewHTTPAdjudicator creates an adjudicator for endpoint. The caller's
// context bounds each batch; timeout caps a single request.
func NewHTTPAdjudicator(endpoint string, timeout time.Duration) *HTTPAdjudicator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAdjudicator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type adjudicationRequest struct {
	ColumnName string `json:"column_name"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
}

type adjudicationResponse struct {
	RiskTier   string   `json:"risk_tier"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// Adjudicate implements Adjudicator. Failures are reported per item.
func (a *HTTPAdjudicator) Adjudicate(ctx context.Context, reqs []Request) ([]Verdict, error) {
	verdicts := make([]Verdict, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			verdicts[i].Err = err
			continue
		}
		v, err := a.adjudicateOne(ctx, req)
		if err != nil {
			verdicts[i].Err = err
			continue
		}
		verdicts[i] = v
	}
	return verdicts, nil
}

func (a *HTTPAdjudicator) adjudicateOne(ctx context.Context, req Request) (Verdict, error) {
	jsonData, err := json.Marshal(adjudicationRequest{
		ColumnName: req.ColumnName,
		OldValue:   req.OldValue,
		NewValue:   req.NewValue,
	})
	if err != nil {
		return Verdict{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return Verdict{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return Verdict{}, fmt.Errorf("adjudication endpoint returned status: %d", resp.StatusCode)
	}

	var body adjudicationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Verdict{}, fmt.Errorf("decode adjudication response: %w", err)
	}
	if body.Confidence == nil {
		return Verdict{}, fmt.Errorf("adjudication response has no confidence")
	}

	return Verdict{
		RiskTier:   body.RiskTier,
		Confidence: *body.Confidence,
		Rationale:  body.Rationale,
	}, nil
}
