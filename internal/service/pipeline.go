package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"docwatch/internal/models"
	"docwatch/internal/policy"
)

// RunStats are counters for one pipeline run.
type RunStats struct {
	Tables     int           `json:"tables"`
	Failed     int           `json:"failed"`
	Changes    int           `json:"changes"`
	Suppressed int           `json:"suppressed"`
	AIDecided  int           `json:"ai_decided"`
	Fallbacks  int           `json:"fallbacks"`
	Duration   time.Duration `json:"duration"`
}

// RunResult is everything a batch run produces.
type RunResult struct {
	ScoreSet   *models.ComprehensiveScoreSet      `json:"score_set"`
	Heatmap    *models.ClusteredHeatmap           `json:"heatmap"`
	Summaries  []models.TableScoreSummary         `json:"summaries"`
	Alignments map[string]*models.ColumnAlignment `json:"alignments"`
	Stats      RunStats                           `json:"stats"`
}

// Pipeline wires the components into the batch flow: align and diff each
// table, classify every change, aggregate per table, merge, cluster.
type Pipeline struct {
	policy     *policy.Policy
	aligner    *ColumnAligner
	differ     *CellDiffEngine
	classifier *RiskClassifier
	aggregator *TableScoreAggregator
	clusterer  *HeatmapClusterer
	logger     *slog.Logger
}

// NewPipeline creates a pipeline from its components.
func NewPipeline(
	p *policy.Policy,
	aligner *ColumnAligner,
	classifier *RiskClassifier,
	aggregator *TableScoreAggregator,
	clusterer *HeatmapClusterer,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		policy:     p,
		aligner:    aligner,
		differ:     NewCellDiffEngine(),
		classifier: classifier,
		aggregator: aggregator,
		clusterer:  clusterer,
		logger:     logger.With("component", "pipeline"),
	}
}

// Policy returns the policy the pipeline scores against.
func (p *Pipeline) Policy() *policy.Policy {
	return p.policy
}

type preparedTable struct {
	name      string
	totalRows int
	changes   []models.CellChange
}

// CompareResult is the outcome of scoring a single table pair.
type CompareResult struct {
	Summary   models.TableScoreSummary `json:"summary"`
	Alignment *models.ColumnAlignment  `json:"alignment"`
}

// Compare aligns, diffs, classifies and aggregates a single pair.
func (p *Pipeline) Compare(ctx context.Context, pair models.TablePair) (*CompareResult, error) {
	prepared, alignment, err := p.prepare(pair)
	if err != nil {
		return &CompareResult{Alignment: alignment}, err
	}
	scored := p.classifier.ClassifyAll(ctx, prepared.changes)
	summary := p.aggregator.Aggregate(scored, prepared.name, prepared.totalRows)
	return &CompareResult{Summary: summary, Alignment: alignment}, nil
}

// Run scores a batch of table pairs. A pair whose columns cannot be
// aligned is recorded as a failure and the rest of the batch continues.
func (p *Pipeline) Run(ctx context.Context, pairs []models.TablePair) (*RunResult, error) {
	if len(pairs) == 0 {
		return nil, ErrNoTables
	}
	start := time.Now()

	result := &RunResult{Alignments: make(map[string]*models.ColumnAlignment)}
	var tables []preparedTable
	var failures []models.TableFailure
	var all []models.CellChange

	for _, pair := range pairs {
		prepared, alignment, err := p.prepare(pair)
		if alignment != nil {
			result.Alignments[pair.Name] = alignment
		}
		if err != nil {
			if !errors.Is(err, ErrStructuralMismatch) {
				return nil, err
			}
			p.logger.Warn("table skipped", "table", pair.Name, "error", err)
			failures = append(failures, models.TableFailure{
				TableName: pair.Name,
				Status:    models.StatusFailed,
				Reason:    err.Error(),
			})
			continue
		}
		tables = append(tables, prepared)
		all = append(all, prepared.changes...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := p.classifier.ClassifyAll(ctx, all)

	offset := 0
	for _, t := range tables {
		tableScored := scored[offset : offset+len(t.changes)]
		offset += len(t.changes)
		result.Summaries = append(result.Summaries, p.aggregator.Aggregate(tableScored, t.name, t.totalRows))
	}

	set := p.aggregator.Merge(result.Summaries, p.policy.CanonicalColumns())
	set.Failures = failures
	set.Statistics.FailedTables = len(failures)
	result.ScoreSet = set
	result.Heatmap = p.clusterer.Cluster(set)

	result.Stats = RunStats{
		Tables:  len(pairs),
		Failed:  len(failures),
		Changes: len(all),
	}
	for _, s := range scored {
		switch {
		case s.Suppressed:
			result.Stats.Suppressed++
		case s.DecisionSource == models.DecisionAI:
			result.Stats.AIDecided++
		case s.DecisionSource == models.DecisionFallback:
			result.Stats.Fallbacks++
		}
	}
	result.Stats.Duration = time.Since(start)

	p.logger.Info("run complete",
		"run_id", set.Metadata.RunID,
		"tables", result.Stats.Tables,
		"failed", result.Stats.Failed,
		"changes", result.Stats.Changes,
		"ai", result.Stats.AIDecided,
		"fallbacks", result.Stats.Fallbacks,
		"quality", result.Heatmap.Quality,
		"duration", result.Stats.Duration)

	return result, nil
}

func (p *Pipeline) prepare(pair models.TablePair) (preparedTable, *models.ColumnAlignment, error) {
	alignment, err := p.aligner.Align(pair.Baseline.Columns, pair.Current.Columns, p.policy.CanonicalColumns())
	if err != nil {
		var mismatch *StructuralMismatchError
		if errors.As(err, &mismatch) {
			mismatch.Table = pair.Name
		}
		return preparedTable{}, alignment, err
	}

	baseline, current := pair.Baseline, pair.Current
	if current.Name == "" {
		current.Name = pair.Name
	}
	if baseline.Name == "" {
		baseline.Name = pair.Name
	}
	changes := p.differ.Diff(baseline, current, alignment)
	for i := range changes {
		changes[i].Table = pair.Name
	}

	return preparedTable{
		name:      pair.Name,
		totalRows: max(baseline.NumRows(), current.NumRows()),
		changes:   changes,
	}, alignment, nil
}
