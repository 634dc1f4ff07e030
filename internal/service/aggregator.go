package service

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"docwatch/internal/models"

	"github.com/google/uuid"
)

const (
	// DefaultBackground is the matrix intensity of an unchanged cell.
	DefaultBackground = 0.05

	// ScoreSetVersion is stamped into every score set.
	ScoreSetVersion = "2.0"

	highRiskThreshold = 0.6
	topRiskThreshold  = 0.4
	topRiskLimit      = 5
	rankingLimit      = 10
)

// DefaultTierWeights weigh tier membership in a table's overall score.
var DefaultTierWeights = map[models.Tier]float64{
	models.TierL1: 0.9,
	models.TierL2: 0.5,
	models.TierL3: 0.2,
}

// TableScoreAggregator rolls scored changes up into table summaries and
// merges summaries into one batch-level score set.
type TableScoreAggregator struct {
	background  float64
	tierWeights map[models.Tier]float64
	logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewTableScoreAggregator creates an aggregator. A non-positive background
// selects DefaultBackground.
func NewTableScoreAggregator(background float64, logger *slog.Logger) *TableScoreAggregator {
	if background <= 0 {
		background = DefaultBackground
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TableScoreAggregator{
		background:  background,
		tierWeights: DefaultTierWeights,
		logger:      logger.With("component", "aggregator"),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

// Background returns the intensity used for unchanged cells.
func (a *TableScoreAggregator) Background() float64 {
	return a.background
}

// Aggregate summarizes one table's scored changes. The overall score is
// the mean of change scores weighted by the tier each change landed in;
// format-only changes are listed but do not count.
func (a *TableScoreAggregator) Aggregate(changes []models.ScoredChange, tableName string, totalRows int) models.TableScoreSummary {
	summary := models.TableScoreSummary{
		TableName:      tableName,
		TotalRows:      totalRows,
		Modifications:  append([]models.ScoredChange{}, changes...),
		TierCounts:     make(map[models.Tier]int),
		DecisionCounts: make(map[models.DecisionSource]int),
		ColumnScores:   make(map[string]models.ColumnAggregate),
		TopRisks:       []models.TopRisk{},
		Status:         models.StatusOK,
	}

	var weighted, weights float64
	var columnOrder []string

	for _, ch := range changes {
		summary.DecisionCounts[ch.DecisionSource]++
		if ch.DecisionSource == models.DecisionFallback {
			summary.Status = models.StatusDegraded
		}
		if ch.Suppressed {
			summary.SuppressedCount++
			continue
		}

		summary.TierCounts[ch.RiskTier]++
		w := a.tierWeights[ch.RiskTier]
		weighted += w * ch.RiskScore
		weights += w

		agg, ok := summary.ColumnScores[ch.ColumnName]
		if !ok {
			agg = models.ColumnAggregate{
				Column:    ch.ColumnName,
				Tier:      ch.ColumnTier,
				Decisions: make(map[models.DecisionSource]int),
			}
			columnOrder = append(columnOrder, ch.ColumnName)
		}
		agg.Modifications++
		agg.Rows = append(agg.Rows, ch.Row)
		agg.Scores = append(agg.Scores, ch.RiskScore)
		agg.Decisions[ch.DecisionSource]++
		summary.ColumnScores[ch.ColumnName] = agg
	}

	if weights > 0 {
		summary.OverallRiskScore = weighted / weights
	}

	for _, col := range columnOrder {
		agg := summary.ColumnScores[col]
		agg.AggregatedScore = recencyWeightedMean(agg.Scores)
		agg.MaxScore, agg.MinScore = minMax(agg.Scores)
		agg.Trend = scoreTrend(agg.Scores)
		summary.ColumnScores[col] = agg

		if agg.AggregatedScore >= topRiskThreshold {
			band := models.LevelForScore(agg.AggregatedScore)
			summary.TopRisks = append(summary.TopRisks, models.TopRisk{
				Column: col,
				Score:  agg.AggregatedScore,
				Level:  band.Level,
				Action: band.Action,
			})
		}
	}
	sort.SliceStable(summary.TopRisks, func(i, j int) bool {
		return summary.TopRisks[i].Score > summary.TopRisks[j].Score
	})
	if len(summary.TopRisks) > topRiskLimit {
		summary.TopRisks = summary.TopRisks[:topRiskLimit]
	}

	band := models.LevelForScore(summary.OverallRiskScore)
	summary.RiskLevel = band.Level
	summary.RecommendedAction = band.Action

	return summary
}

// Merge combines table summaries into a score set whose matrix has one
// row per table, sorted by descending overall score (ties keep input
// order), and one column per canonical column. Cells without changes hold
// the background intensity.
func (a *TableScoreAggregator) Merge(summaries []models.TableScoreSummary, canonical []string) *models.ComprehensiveScoreSet {
	sorted := append([]models.TableScoreSummary{}, summaries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OverallRiskScore > sorted[j].OverallRiskScore
	})

	set := &models.ComprehensiveScoreSet{
		Metadata: models.ScoreSetMetadata{
			RunID:       a.newID(),
			GeneratedAt: a.now(),
			Version:     ScoreSetVersion,
			TableCount:  len(sorted),
			ColumnCount: len(canonical),
		},
		TableNames:  make([]string, 0, len(sorted)),
		ColumnNames: append([]string{}, canonical...),
		Matrix:      make([][]float64, 0, len(sorted)),
		Background:  a.background,
		Tables:      make([]models.TableEntry, 0, len(sorted)),
		ColorScale:  append([]models.ColorStop{}, models.DefaultColorScale...),
	}

	for _, s := range sorted {
		row := make([]float64, len(canonical))
		for j, col := range canonical {
			row[j] = a.background
			if agg, ok := s.ColumnScores[col]; ok {
				row[j] = math.Max(a.background, math.Min(1.0, agg.AggregatedScore))
			}
		}
		set.TableNames = append(set.TableNames, s.TableName)
		set.Matrix = append(set.Matrix, row)
		set.Tables = append(set.Tables, models.TableEntry{
			Name:              s.TableName,
			OverallRiskScore:  s.OverallRiskScore,
			RiskLevel:         s.RiskLevel,
			RecommendedAction: s.RecommendedAction,
			Status:            s.Status,
			TotalRows:         s.TotalRows,
			Modifications:     s.Modifications,
			TopRisks:          s.TopRisks,
		})
	}

	set.Statistics = a.statistics(sorted)
	set.Patterns = a.patterns(sorted, canonical)

	a.logger.Debug("merged score set",
		"run_id", set.Metadata.RunID,
		"tables", len(sorted),
		"modifications", set.Statistics.TotalModifications)

	return set
}

func (a *TableScoreAggregator) statistics(summaries []models.TableScoreSummary) models.ScoreStatistics {
	stats := models.ScoreStatistics{
		TableModifications:   make([]int, 0, len(summaries)),
		ColumnModifications:  make(map[string]int),
		TierDistribution:     make(map[models.Tier]int),
		DecisionDistribution: make(map[models.DecisionSource]int),
	}

	var scored int
	var riskSum float64
	for _, s := range summaries {
		stats.TableModifications = append(stats.TableModifications, s.ScoredCount())
		stats.TotalModifications += s.ScoredCount()
		stats.SuppressedChanges += s.SuppressedCount
		riskSum += s.OverallRiskScore
		if s.Status == models.StatusDegraded {
			stats.DegradedTables++
		}
		for col, agg := range s.ColumnScores {
			stats.ColumnModifications[col] += agg.Modifications
		}
		for tier, n := range s.TierCounts {
			stats.TierDistribution[tier] += n
		}
		for _, ch := range s.Modifications {
			if ch.Suppressed {
				continue
			}
			stats.DecisionDistribution[ch.DecisionSource]++
			scored++
		}
	}

	if scored > 0 {
		stats.AIInterventionRate = float64(stats.DecisionDistribution[models.DecisionAI]) / float64(scored)
		stats.FallbackRate = float64(stats.DecisionDistribution[models.DecisionFallback]) / float64(scored)
	}
	if len(summaries) > 0 {
		stats.SystemRiskScore = riskSum / float64(len(summaries))
	}
	return stats
}

func (a *TableScoreAggregator) patterns(summaries []models.TableScoreSummary, canonical []string) models.CrossTablePatterns {
	patterns := models.CrossTablePatterns{
		ColumnRanking:     []models.ColumnRank{},
		SystematicChanges: []models.SystematicChange{},
		Anomalies:         []models.TableAnomaly{},
	}

	for _, col := range canonical {
		var sum, maxScore float64
		var count int
		var hot []string
		var hotSum float64
		for _, s := range summaries {
			agg, ok := s.ColumnScores[col]
			if !ok {
				continue
			}
			sum += agg.AggregatedScore
			maxScore = math.Max(maxScore, agg.AggregatedScore)
			count++
			if agg.AggregatedScore >= highRiskThreshold {
				hot = append(hot, s.TableName)
				hotSum += agg.AggregatedScore
			}
		}
		if count == 0 {
			continue
		}
		patterns.ColumnRanking = append(patterns.ColumnRanking, models.ColumnRank{
			Column:       col,
			AverageScore: sum / float64(count),
			MaxScore:     maxScore,
			TableCount:   count,
		})
		if len(hot) >= 2 {
			patterns.SystematicChanges = append(patterns.SystematicChanges, models.SystematicChange{
				Column:       col,
				Tables:       hot,
				AverageScore: hotSum / float64(len(hot)),
			})
		}
	}

	sort.SliceStable(patterns.ColumnRanking, func(i, j int) bool {
		return patterns.ColumnRanking[i].AverageScore > patterns.ColumnRanking[j].AverageScore
	})
	if len(patterns.ColumnRanking) > rankingLimit {
		patterns.ColumnRanking = patterns.ColumnRanking[:rankingLimit]
	}

	for _, s := range summaries {
		var hot []string
		for _, col := range canonical {
			if agg, ok := s.ColumnScores[col]; ok && agg.AggregatedScore >= highRiskThreshold {
				hot = append(hot, col)
			}
		}
		if len(hot) >= 3 {
			patterns.Anomalies = append(patterns.Anomalies, models.TableAnomaly{Table: s.TableName, HighRiskColumns: hot})
		}
	}

	return patterns
}

// recencyWeightedMean weighs later scores slightly more (1.0, 1.1, 1.2, ...).
func recencyWeightedMean(scores []float64) float64 {
	var sum, weights float64
	for i, s := range scores {
		w := 1.0 + 0.1*float64(i)
		sum += s * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

func minMax(scores []float64) (float64, float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	hi, lo := scores[0], scores[0]
	for _, s := range scores[1:] {
		hi = math.Max(hi, s)
		lo = math.Min(lo, s)
	}
	return hi, lo
}

// scoreTrend compares the last three scores with the ones before them.
func scoreTrend(scores []float64) models.Trend {
	if len(scores) < 3 {
		return models.TrendStable
	}
	recent := mean(scores[len(scores)-3:])
	earlier := scores[0]
	if len(scores) > 3 {
		earlier = mean(scores[:len(scores)-3])
	}
	switch {
	case recent > earlier*1.1:
		return models.TrendIncreasing
	case recent < earlier*0.9:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
