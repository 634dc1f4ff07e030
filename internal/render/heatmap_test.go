package render

import (
	"bytes"
	"strings"
	"testing"

	"docwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorFor(t *testing.T) {
	scale := models.DefaultColorScale
	assert.Equal(t, "#1e40af", ColorFor(scale, 0.05))
	assert.Equal(t, "#0891b2", ColorFor(scale, 0.2))
	assert.Equal(t, "#eab308", ColorFor(scale, 0.7))
	assert.Equal(t, "#dc2626", ColorFor(scale, 0.99))
	assert.Equal(t, "#dc2626", ColorFor(nil, 5))
}

func TestHeatmap(t *testing.T) {
	hm := &models.ClusteredHeatmap{
		TableNames:     []string{"进度表", "plan"},
		ColumnNames:    []string{"负责人", "完成进度"},
		Matrix:         [][]float64{{0.9, 0.05}, {0.05, 0.05}},
		Method:         models.ClusterHierarchical,
		Orientation:    "original",
		Quality:        0.78,
		Degraded:       true,
		DegradedReason: "matrix too small",
	}

	var buf bytes.Buffer
	require.NoError(t, Heatmap(&buf, hm))
	out := buf.String()

	assert.Contains(t, out, "进度表")
	assert.Contains(t, out, " 2 完成进度")
	assert.Equal(t, 4, strings.Count(out, cellGlyph))
	assert.Contains(t, out, "quality 0.780")
	assert.Contains(t, out, "degraded: matrix too small")
}

func TestHeatmapEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Heatmap(&buf, nil))
	assert.Contains(t, buf.String(), "no tables")
}

func TestSummary(t *testing.T) {
	set := &models.ComprehensiveScoreSet{
		Metadata: models.ScoreSetMetadata{RunID: "run-1"},
		Tables: []models.TableEntry{
			{Name: "进度表", OverallRiskScore: 0.94, RiskLevel: models.RiskExtremeHigh, RecommendedAction: "immediate_review",
				Status: models.StatusDegraded, TopRisks: []models.TopRisk{{Column: "完成进度", Score: 0.94}}},
		},
		Failures:   []models.TableFailure{{TableName: "坏表", Reason: "structural mismatch"}},
		Statistics: models.ScoreStatistics{TotalModifications: 1, FallbackRate: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, set))
	out := buf.String()

	assert.Contains(t, out, "Run run-1: 1 tables, 1 modifications")
	assert.Contains(t, out, "immediate_review")
	assert.Contains(t, out, "(degraded)")
	assert.Contains(t, out, "完成进度 0.940")
	assert.Contains(t, out, "failed 坏表: structural mismatch")
	assert.Contains(t, out, "fallback 100%")
}

func TestChanges(t *testing.T) {
	s := &models.TableScoreSummary{
		TableName:        "进度表",
		OverallRiskScore: 0.94,
		RiskLevel:        models.RiskExtremeHigh,
		Modifications: []models.ScoredChange{
			{CellChange: models.CellChange{Cell: "N2", ColumnName: "完成进度", OldValue: "30%", NewValue: "90%"},
				RiskTier: models.TierL1, RiskScore: 0.94, DecisionSource: models.DecisionRule},
			{CellChange: models.CellChange{Cell: "N3", ColumnName: "完成进度", OldValue: "30%", NewValue: "0.3"},
				RiskTier: models.TierL1, Suppressed: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Changes(&buf, s))
	out := buf.String()
	assert.Contains(t, out, `完成进度: "30%" -> "90%"`)
	assert.Contains(t, out, "(format only)")
	assert.Contains(t, out, "0.940 rule")

	buf.Reset()
	require.NoError(t, Changes(&buf, &models.TableScoreSummary{TableName: "plan"}))
	assert.Contains(t, buf.String(), "no changes")
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 4, displayWidth("plan"))
	assert.Equal(t, 6, displayWidth("进度表"))
}
