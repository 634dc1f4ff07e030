package models

import (
	"fmt"
	"strings"
)

// Tier is the static risk class of a canonical column.
type Tier string

const (
	TierL1 Tier = "L1"
	TierL2 Tier = "L2"
	TierL3 Tier = "L3"
)

// ParseTier accepts "L1", "l2", "3" and the like.
func ParseTier(raw string) (Tier, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "L")
	switch s {
	case "1":
		return TierL1, nil
	case "2":
		return TierL2, nil
	case "3":
		return TierL3, nil
	}
	return "", fmt.Errorf("unknown tier %q", raw)
}

// DecisionSource records which path produced a score.
type DecisionSource string

const (
	DecisionRule     DecisionSource = "rule"
	DecisionAI       DecisionSource = "ai"
	DecisionFallback DecisionSource = "fallback"
)

// ChangeKind is the kind of cell-level difference.
type ChangeKind string

const (
	ChangeModify ChangeKind = "modify"
	ChangeAdd    ChangeKind = "add"
	ChangeDelete ChangeKind = "delete"
)

// CellChange is one differing cell in an aligned column.
type CellChange struct {
	Table      string     `json:"table"`
	Row        int        `json:"row"`
	ColumnName string     `json:"column_name"`
	Cell       string     `json:"cell"`
	OldValue   string     `json:"old_value"`
	NewValue   string     `json:"new_value"`
	Kind       ChangeKind `json:"kind"`
}

// ScoredChange is a CellChange with its risk decision attached.
type ScoredChange struct {
	CellChange
	ColumnTier     Tier           `json:"column_tier"`
	RiskTier       Tier           `json:"risk_tier"`
	RiskScore      float64        `json:"risk_score"`
	Confidence     float64        `json:"confidence"`
	DecisionSource DecisionSource `json:"decision_source"`
	Suppressed     bool           `json:"suppressed,omitempty"`
	Rationale      string         `json:"rationale,omitempty"`
	DegradedReason string         `json:"degraded_reason,omitempty"`
}
