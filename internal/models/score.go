package models

import "time"

// RiskLevel is the five-band label derived from a score.
type RiskLevel string

const (
	RiskExtremeHigh RiskLevel = "EXTREME_HIGH"
	RiskHigh        RiskLevel = "HIGH"
	RiskMedium      RiskLevel = "MEDIUM"
	RiskLow         RiskLevel = "LOW"
	RiskExtremeLow  RiskLevel = "EXTREME_LOW"
)

// RiskBand pairs a RiskLevel with the review action it calls for.
type RiskBand struct {
	Level  RiskLevel `json:"level"`
	Action string    `json:"action"`
}

// LevelForScore maps a score in [0,1] to its band.
func LevelForScore(score float64) RiskBand {
	switch {
	case score >= 0.8:
		return RiskBand{Level: RiskExtremeHigh, Action: "immediate_review"}
	case score >= 0.6:
		return RiskBand{Level: RiskHigh, Action: "manual_review"}
	case score >= 0.4:
		return RiskBand{Level: RiskMedium, Action: "periodic_check"}
	case score >= 0.2:
		return RiskBand{Level: RiskLow, Action: "log_only"}
	default:
		return RiskBand{Level: RiskExtremeLow, Action: "none"}
	}
}

// TableStatus flags whether a table's numbers are complete.
type TableStatus string

const (
	StatusOK       TableStatus = "ok"
	StatusDegraded TableStatus = "degraded"
	StatusFailed   TableStatus = "failed"
)

// Trend of a column's scores within one table.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// ColumnAggregate summarizes the scored changes of one column in one table.
type ColumnAggregate struct {
	Column          string                 `json:"column"`
	Tier            Tier                   `json:"tier"`
	Modifications   int                    `json:"modifications"`
	Rows            []int                  `json:"rows"`
	Scores          []float64              `json:"scores"`
	AggregatedScore float64                `json:"aggregated_score"`
	MaxScore        float64                `json:"max_score"`
	MinScore        float64                `json:"min_score"`
	Trend           Trend                  `json:"trend"`
	Decisions       map[DecisionSource]int `json:"decisions"`
}

// TopRisk is one of the highest-scoring columns of a table.
type TopRisk struct {
	Column string    `json:"column"`
	Score  float64   `json:"score"`
	Level  RiskLevel `json:"level"`
	Action string    `json:"action"`
}

// TableScoreSummary is the per-table aggregate of scored changes.
type TableScoreSummary struct {
	TableName         string                     `json:"table_name"`
	TotalRows         int                        `json:"total_rows"`
	Modifications     []ScoredChange             `json:"modifications"`
	OverallRiskScore  float64                    `json:"overall_risk_score"`
	RiskLevel         RiskLevel                  `json:"risk_level"`
	RecommendedAction string                     `json:"recommended_action"`
	TierCounts        map[Tier]int               `json:"tier_counts"`
	DecisionCounts    map[DecisionSource]int     `json:"decision_counts"`
	SuppressedCount   int                        `json:"suppressed_count"`
	ColumnScores      map[string]ColumnAggregate `json:"column_scores"`
	TopRisks          []TopRisk                  `json:"top_risks"`
	Status            TableStatus                `json:"status"`
}

// ScoredCount is the number of changes that carry a non-suppressed score.
func (s TableScoreSummary) ScoredCount() int {
	return len(s.Modifications) - s.SuppressedCount
}

// TableFailure records a table that could not be scored at all.
type TableFailure struct {
	TableName string      `json:"table_name"`
	Status    TableStatus `json:"status"`
	Reason    string      `json:"reason"`
}

// ScoreSetMetadata identifies one batch run.
type ScoreSetMetadata struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	TableCount  int       `json:"table_count"`
	ColumnCount int       `json:"column_count"`
}

// TableEntry is a table row of the score set, in matrix row order.
type TableEntry struct {
	Name              string         `json:"name"`
	OverallRiskScore  float64        `json:"overall_risk_score"`
	RiskLevel         RiskLevel      `json:"risk_level"`
	RecommendedAction string         `json:"recommended_action"`
	Status            TableStatus    `json:"status"`
	TotalRows         int            `json:"total_rows"`
	Modifications     []ScoredChange `json:"modifications"`
	TopRisks          []TopRisk      `json:"top_risks"`
}

// ColumnRank is a column's standing across all tables.
type ColumnRank struct {
	Column       string  `json:"column"`
	AverageScore float64 `json:"average_score"`
	MaxScore     float64 `json:"max_score"`
	TableCount   int     `json:"table_count"`
}

// SystematicChange is a column that is high risk in several tables.
type SystematicChange struct {
	Column       string   `json:"column"`
	Tables       []string `json:"tables"`
	AverageScore float64  `json:"average_score"`
}

// TableAnomaly is a table with an unusual number of high-risk columns.
type TableAnomaly struct {
	Table           string   `json:"table"`
	HighRiskColumns []string `json:"high_risk_columns"`
}

// CrossTablePatterns are patterns visible only across the whole batch.
type CrossTablePatterns struct {
	ColumnRanking     []ColumnRank       `json:"column_ranking"`
	SystematicChanges []SystematicChange `json:"systematic_changes"`
	Anomalies         []TableAnomaly     `json:"anomalies"`
}

// ScoreStatistics are batch-level counters.
type ScoreStatistics struct {
	TotalModifications   int                    `json:"total_modifications"`
	TableModifications   []int                  `json:"table_modifications"`
	ColumnModifications  map[string]int         `json:"column_modifications"`
	TierDistribution     map[Tier]int           `json:"tier_distribution"`
	DecisionDistribution map[DecisionSource]int `json:"decision_distribution"`
	SuppressedChanges    int                    `json:"suppressed_changes"`
	AIInterventionRate   float64                `json:"ai_intervention_rate"`
	FallbackRate         float64                `json:"fallback_rate"`
	SystemRiskScore      float64                `json:"system_risk_score"`
	DegradedTables       int                    `json:"degraded_tables"`
	FailedTables         int                    `json:"failed_tables"`
}

// ColorStop is one point of the heatmap color scale.
type ColorStop struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// DefaultColorScale is the dashboard heat scale, low to high.
var DefaultColorScale = []ColorStop{
	{Value: 0.05, Color: "#1e40af"},
	{Value: 0.25, Color: "#0891b2"},
	{Value: 0.50, Color: "#10b981"},
	{Value: 0.75, Color: "#eab308"},
	{Value: 1.00, Color: "#dc2626"},
}

// ComprehensiveScoreSet is the merged, batch-level output: a table x
// canonical-column intensity matrix plus per-table detail.
type ComprehensiveScoreSet struct {
	Metadata    ScoreSetMetadata   `json:"metadata"`
	TableNames  []string           `json:"table_names"`
	ColumnNames []string           `json:"column_names"`
	Matrix      [][]float64        `json:"matrix"`
	Background  float64            `json:"background"`
	Tables      []TableEntry       `json:"tables"`
	Failures    []TableFailure     `json:"failures,omitempty"`
	Statistics  ScoreStatistics    `json:"statistics"`
	Patterns    CrossTablePatterns `json:"patterns"`
	ColorScale  []ColorStop        `json:"color_scale"`
}
