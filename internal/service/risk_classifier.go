package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"docwatch/internal/llm"
	"docwatch/internal/models"
	"docwatch/internal/policy"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultAITimeout   = 10 * time.Second
	DefaultBatchSize   = 5
	DefaultWorkers     = 4
	DefaultCacheExpiry = 30 * time.Minute
)

// tierRanges are the score bands of each tier. Bands do not overlap, so a
// higher tier always outscores a lower one.
var tierRanges = map[models.Tier][2]float64{
	models.TierL1: {0.80, 1.00},
	models.TierL2: {0.50, 0.79},
	models.TierL3: {0.10, 0.49},
}

// TierScore places confidence within the score band of tier.
func TierScore(tier models.Tier, confidence float64) float64 {
	r, ok := tierRanges[tier]
	if !ok {
		r = tierRanges[models.TierL3]
	}
	confidence = math.Max(0, math.Min(1, confidence))
	return r[0] + (r[1]-r[0])*confidence
}

// ClassifierOptions tunes RiskClassifier. Zero values select the defaults.
type ClassifierOptions struct {
	Timeout       time.Duration
	BatchSize     int
	Workers       int
	EscalateTiers []models.Tier
	CacheExpiry   time.Duration
}

type cachedVerdict struct {
	verdict   llm.Verdict
	timestamp time.Time
}

// RiskClassifier scores cell changes: format-only edits are suppressed,
// L1 and L3 columns are scored by deterministic heuristics, and L2 columns
// are sent to an AI adjudicator. Any AI failure falls back to the same
// heuristics.
type RiskClassifier struct {
	policy      *policy.Policy
	normalizer  *FormatNormalizer
	adjudicator llm.Adjudicator
	opts        ClassifierOptions
	escalate    map[models.Tier]bool
	keywords    []string
	logger      *slog.Logger

	cache      map[string]cachedVerdict
	cacheMutex sync.RWMutex
}

// NewRiskClassifier creates a classifier. adjudicator may be nil, in which
// case every change that would need AI is scored by fallback.
func NewRiskClassifier(p *policy.Policy, normalizer *FormatNormalizer, adjudicator llm.Adjudicator, opts ClassifierOptions, logger *slog.Logger) *RiskClassifier {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAITimeout
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.CacheExpiry <= 0 {
		opts.CacheExpiry = DefaultCacheExpiry
	}
	if normalizer == nil {
		normalizer = NewFormatNormalizer()
	}
	if logger == nil {
		logger = slog.Default()
	}

	escalate := make(map[models.Tier]bool)
	for _, t := range opts.EscalateTiers {
		escalate[t] = true
	}

	return &RiskClassifier{
		policy:      p,
		normalizer:  normalizer,
		adjudicator: adjudicator,
		opts:        opts,
		escalate:    escalate,
		keywords:    p.HighRiskKeywords(),
		logger:      logger.With("component", "classifier"),
		cache:       make(map[string]cachedVerdict),
	}
}

// Classify scores a single change.
func (c *RiskClassifier) Classify(ctx context.Context, change models.CellChange) models.ScoredChange {
	return c.ClassifyAll(ctx, []models.CellChange{change})[0]
}

// ClassifyAll scores changes, returning results in input order. AI calls
// are batched and run on a bounded worker pool; which path a change takes
// depends only on its content and the adjudicator's answers, never on
// scheduling.
func (c *RiskClassifier) ClassifyAll(ctx context.Context, changes []models.CellChange) []models.ScoredChange {
	results := make([]models.ScoredChange, len(changes))
	var pending []int

	for i, change := range changes {
		scored, needsAI := c.preclassify(change)
		if needsAI {
			pending = append(pending, i)
			continue
		}
		results[i] = scored
	}

	if len(pending) == 0 {
		return results
	}

	if c.adjudicator == nil {
		for _, i := range pending {
			results[i] = c.fallback(changes[i], "ai adjudication disabled")
		}
		return results
	}

	// Identical edits are judged once per run.
	keyOf := func(ch models.CellChange) string {
		return ch.ColumnName + "\x00" + ch.OldValue + "\x00" + ch.NewValue
	}
	verdicts := make(map[string]llm.Verdict)
	var requests []llm.Request
	var requestKeys []string
	for _, i := range pending {
		key := keyOf(changes[i])
		if _, seen := verdicts[key]; seen {
			continue
		}
		if v, ok := c.cached(key); ok {
			verdicts[key] = v
			continue
		}
		verdicts[key] = llm.Verdict{}
		requests = append(requests, llm.Request{
			ID:         len(requests) + 1,
			Table:      changes[i].Table,
			ColumnName: changes[i].ColumnName,
			ColumnTier: string(c.policy.TierOf(changes[i].ColumnName)),
			OldValue:   changes[i].OldValue,
			NewValue:   changes[i].NewValue,
		})
		requestKeys = append(requestKeys, key)
	}

	answers := c.adjudicate(ctx, requests)
	for j, key := range requestKeys {
		verdicts[key] = answers[j]
	}

	for _, i := range pending {
		key := keyOf(changes[i])
		v := verdicts[key]
		scored, err := c.fromVerdict(changes[i], v)
		if err != nil {
			results[i] = c.fallback(changes[i], err.Error())
			continue
		}
		c.store(key, v)
		results[i] = scored
	}

	return results
}

// adjudicate sends requests in batches and returns one verdict per request.
// A failed batch yields verdicts carrying the batch error.
func (c *RiskClassifier) adjudicate(ctx context.Context, requests []llm.Request) []llm.Verdict {
	answers := make([]llm.Verdict, len(requests))
	if len(requests) == 0 {
		return answers
	}

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)

	for start := 0; start < len(requests); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(requests))
		batch := requests[start:end]
		out := answers[start:end]

		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
			defer cancel()

			got, err := c.adjudicator.Adjudicate(bctx, batch)
			if err == nil && len(got) != len(batch) {
				err = fmt.Errorf("adjudicator returned %d verdicts for %d changes", len(got), len(batch))
			}
			if err != nil {
				c.logger.Warn("AI adjudication failed, falling back to heuristics",
					"batch_start", start, "size", len(batch), "error", err)
				for k := range out {
					out[k] = llm.Verdict{Err: err}
				}
				return nil
			}
			copy(out, got)
			return nil
		})
	}
	g.Wait()

	return answers
}

// preclassify resolves everything that does not need AI. The bool result
// reports whether the change must go to the adjudicator.
func (c *RiskClassifier) preclassify(change models.CellChange) (models.ScoredChange, bool) {
	tier := c.policy.TierOf(change.ColumnName)

	if c.normalizer.AreEquivalent(change.OldValue, change.NewValue) {
		return models.ScoredChange{
			CellChange:     change,
			ColumnTier:     tier,
			RiskTier:       tier,
			RiskScore:      0,
			Confidence:     1.0,
			DecisionSource: models.DecisionRule,
			Suppressed:     true,
			Rationale:      "format-only change",
		}, false
	}

	h := c.heuristic(change, tier)
	if tier == models.TierL2 || (c.escalate[tier] && h.ambiguous) {
		return models.ScoredChange{}, true
	}
	return h.scored(change, tier, models.DecisionRule), false
}

// fallback scores a change with the deterministic heuristic after the AI
// path was unavailable.
func (c *RiskClassifier) fallback(change models.CellChange, reason string) models.ScoredChange {
	tier := c.policy.TierOf(change.ColumnName)
	scored := c.heuristic(change, tier).scored(change, tier, models.DecisionFallback)
	scored.DegradedReason = reason
	return scored
}

// fromVerdict validates an AI verdict and turns it into a score.
func (c *RiskClassifier) fromVerdict(change models.CellChange, v llm.Verdict) (models.ScoredChange, error) {
	if v.Err != nil {
		return models.ScoredChange{}, v.Err
	}
	tier, err := models.ParseTier(v.RiskTier)
	if err != nil {
		return models.ScoredChange{}, fmt.Errorf("malformed verdict: %w", err)
	}
	confidence := v.Confidence
	if confidence > 1 && confidence <= 100 {
		confidence /= 100
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return models.ScoredChange{}, fmt.Errorf("malformed verdict: confidence %v out of range", v.Confidence)
	}

	return models.ScoredChange{
		CellChange:     change,
		ColumnTier:     c.policy.TierOf(change.ColumnName),
		RiskTier:       tier,
		RiskScore:      TierScore(tier, confidence),
		Confidence:     confidence,
		DecisionSource: models.DecisionAI,
		Rationale:      v.Rationale,
	}, nil
}

func (c *RiskClassifier) cached(key string) (llm.Verdict, bool) {
	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()

	entry, ok := c.cache[key]
	if !ok || time.Since(entry.timestamp) > c.opts.CacheExpiry {
		return llm.Verdict{}, false
	}
	return entry.verdict, true
}

func (c *RiskClassifier) store(key string, v llm.Verdict) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	if _, ok := c.cache[key]; ok {
		return
	}
	c.cache[key] = cachedVerdict{verdict: v, timestamp: time.Now()}
}

// heuristicResult is the deterministic judgement of one change.
type heuristicResult struct {
	tier       models.Tier
	factor     float64
	confidence float64
	ambiguous  bool
	rationale  string
}

func (h heuristicResult) scored(change models.CellChange, columnTier models.Tier, source models.DecisionSource) models.ScoredChange {
	return models.ScoredChange{
		CellChange:     change,
		ColumnTier:     columnTier,
		RiskTier:       h.tier,
		RiskScore:      TierScore(h.tier, h.confidence),
		Confidence:     h.confidence,
		DecisionSource: source,
		Rationale:      h.rationale,
	}
}

// heuristic scores a change from its shape alone: emptiness transitions,
// numeric and date deltas, star-rating moves, text rewrites and high-risk
// keywords, weighted by column importance. It is a pure function of the
// change, the column tier and the policy.
//
// L1 columns stay L1. An L2 column drops to L3 for minor deltas and rises
// to L1 on a high-risk keyword; an L3 column rises to L2 on a keyword.
func (c *RiskClassifier) heuristic(change models.CellChange, columnTier models.Tier) heuristicResult {
	oldVal, newVal := change.OldValue, change.NewValue
	h := heuristicResult{tier: columnTier}
	minor := false

	switch {
	case oldVal == "" && newVal != "":
		h.factor, h.rationale = 1.0, "value filled in"
	case oldVal != "" && newVal == "":
		h.factor, h.rationale = 1.3, "value cleared"
	default:
		h.factor, h.rationale, minor, h.ambiguous = c.valueFactor(oldVal, newVal)
	}

	keyword := c.hasKeyword(newVal) && !c.hasKeyword(oldVal)
	if keyword {
		h.factor = math.Max(h.factor, 1.5)
		h.rationale = "high-risk keyword in new value"
		h.ambiguous = false
		minor = false
	}

	weighted := h.factor * c.policy.Weight(change.ColumnName)
	h.confidence = math.Max(0.05, math.Min(1.0, weighted/2.0))

	switch columnTier {
	case models.TierL2:
		if keyword {
			h.tier = models.TierL1
		} else if minor {
			h.tier = models.TierL3
		}
	case models.TierL3:
		if keyword {
			h.tier = models.TierL2
		}
	}

	return h
}

// valueFactor rates a change between two non-empty values, dispatching on
// the format family both sides share.
func (c *RiskClassifier) valueFactor(oldVal, newVal string) (factor float64, rationale string, minor, ambiguous bool) {
	oldFmt, newFmt := c.normalizer.DetectFormat(oldVal), c.normalizer.DetectFormat(newVal)
	numeric := func(f string) bool { return f == FormatNumber || f == FormatPercent }

	switch {
	case numeric(oldFmt) && numeric(newFmt):
		o, _ := c.normalizer.ParseNumber(oldVal)
		n, _ := c.normalizer.ParseNumber(newVal)
		rel := 1.0
		if o != 0 {
			rel = math.Abs(n-o) / math.Abs(o)
		} else if n == 0 {
			rel = 0
		}
		switch {
		case rel >= 0.5:
			return 1.3, fmt.Sprintf("numeric change of %.0f%%", rel*100), false, false
		case rel >= 0.2:
			return 1.0, fmt.Sprintf("numeric change of %.0f%%", rel*100), false, false
		case rel >= 0.1:
			return 0.8, fmt.Sprintf("numeric change of %.0f%%", rel*100), false, false
		default:
			return 0.5, fmt.Sprintf("numeric change of %.1f%%", rel*100), true, false
		}

	case oldFmt == FormatDate && newFmt == FormatDate:
		o, _ := c.normalizer.ParseDate(oldVal)
		n, _ := c.normalizer.ParseDate(newVal)
		days := math.Abs(n.Sub(o).Hours()) / 24
		switch {
		case days >= 30:
			return 1.3, fmt.Sprintf("date moved by %.0f days", days), false, false
		case days >= 7:
			return 1.0, fmt.Sprintf("date moved by %.0f days", days), false, false
		default:
			return 0.6, fmt.Sprintf("date moved by %.0f days", days), true, false
		}

	case oldFmt == FormatRating || newFmt == FormatRating:
		// "3" reads as a number, so only one side needs to look like stars.
		o, okOld := c.normalizer.StarCount(oldVal)
		n, okNew := c.normalizer.StarCount(newVal)
		if okOld && okNew {
			delta := n - o
			if delta < 0 {
				delta = -delta
			}
			if delta >= 2 {
				return 1.3, fmt.Sprintf("rating moved by %d", delta), false, false
			}
			return 0.9, fmt.Sprintf("rating moved by %d", delta), false, false
		}
	}

	oldLen, newLen := utf8.RuneCountInString(oldVal), utf8.RuneCountInString(newVal)
	if oldLen < 10 && newLen < 10 {
		return 1.0, "short text changed", false, true
	}
	lengthChange := math.Abs(float64(newLen-oldLen)) / float64(max(oldLen, 1))
	switch {
	case lengthChange > 0.5:
		return 1.1, "text substantially rewritten", false, true
	case lengthChange > 0.2:
		return 0.8, "text partially rewritten", false, true
	default:
		return 0.5, "text lightly edited", false, true
	}
}

func (c *RiskClassifier) hasKeyword(value string) bool {
	v := strings.ToLower(value)
	for _, k := range c.keywords {
		if strings.Contains(v, k) {
			return true
		}
	}
	return false
}
