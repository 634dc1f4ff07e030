package service

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"docwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreSet(m [][]float64) *models.ComprehensiveScoreSet {
	set := &models.ComprehensiveScoreSet{Matrix: m, Background: DefaultBackground}
	set.Metadata.RunID = "run-1"
	for i := range m {
		set.TableNames = append(set.TableNames, fmt.Sprintf("table-%d", i))
	}
	if len(m) > 0 {
		for j := range m[0] {
			set.ColumnNames = append(set.ColumnNames, fmt.Sprintf("col-%d", j))
		}
	}
	return set
}

func TestWardOrder(t *testing.T) {
	order := wardOrder([][]float64{{0}, {10}, {0.1}, {10.1}})
	assert.Equal(t, []int{0, 2, 1, 3}, order)

	assert.Equal(t, []int{0}, wardOrder([][]float64{{1, 2}}))
	assert.Empty(t, wardOrder(nil))
}

func TestClusterMovesHotBlockToCorner(t *testing.T) {
	hot, cold := 0.9, DefaultBackground
	m := [][]float64{
		{cold, cold, cold, cold},
		{cold, hot, cold, hot},
		{cold, cold, cold, cold},
		{cold, hot, cold, hot},
	}

	heatmap := NewHeatmapClusterer(discardLogger()).Cluster(scoreSet(m))

	assert.Equal(t, models.ClusterHierarchical, heatmap.Method)
	assert.Equal(t, "flip_both", heatmap.Orientation)
	assert.False(t, heatmap.Degraded)
	assert.InDelta(t, 0.25, heatmap.BaselineQuality, 1e-9)
	assert.InDelta(t, 3.6/4.2, heatmap.Quality, 1e-9)
	assert.Equal(t, [][]float64{
		{hot, hot, cold, cold},
		{hot, hot, cold, cold},
		{cold, cold, cold, cold},
		{cold, cold, cold, cold},
	}, heatmap.Matrix)
	assert.Equal(t, "run-1", heatmap.RunID)
}

func TestClusterNeverLosesQuality(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	clusterer := NewHeatmapClusterer(discardLogger())

	for trial := 0; trial < 25; trial++ {
		rows, cols := 2+rng.Intn(12), 2+rng.Intn(12)
		m := make([][]float64, rows)
		for i := range m {
			m[i] = make([]float64, cols)
			for j := range m[i] {
				m[i][j] = DefaultBackground
				if rng.Float64() < 0.3 {
					m[i][j] = 0.1 + 0.9*rng.Float64()
				}
			}
		}
		// guarantee some variance
		m[0][0] = 1

		heatmap := clusterer.Cluster(scoreSet(m))
		assert.GreaterOrEqual(t, heatmap.Quality, heatmap.BaselineQuality-1e-12, "trial %d", trial)
		assert.False(t, heatmap.Degraded)
		assertPermutation(t, heatmap.RowOrder, rows)
		assertPermutation(t, heatmap.ColumnOrder, cols)

		for i, r := range heatmap.RowOrder {
			assert.Equal(t, fmt.Sprintf("table-%d", r), heatmap.TableNames[i])
			for j, c := range heatmap.ColumnOrder {
				assert.Equal(t, m[r][c], heatmap.Matrix[i][j])
			}
		}
		for j, c := range heatmap.ColumnOrder {
			assert.Equal(t, fmt.Sprintf("col-%d", c), heatmap.ColumnNames[j])
		}
		assert.GreaterOrEqual(t, heatmap.DiagonalScore, 0.0)
		assert.LessOrEqual(t, heatmap.DiagonalScore, 100.0)
	}
}

func TestClusterIsDeterministic(t *testing.T) {
	m := [][]float64{
		{0.05, 0.8, 0.05},
		{0.6, 0.05, 0.05},
		{0.05, 0.8, 0.3},
	}
	clusterer := NewHeatmapClusterer(discardLogger())
	first := clusterer.Cluster(scoreSet(m))
	for i := 0; i < 5; i++ {
		again := clusterer.Cluster(scoreSet(m))
		assert.Equal(t, first.RowOrder, again.RowOrder)
		assert.Equal(t, first.ColumnOrder, again.ColumnOrder)
		assert.Equal(t, first.Orientation, again.Orientation)
	}
}

func TestClusterDegenerateInput(t *testing.T) {
	clusterer := NewHeatmapClusterer(discardLogger())

	t.Run("single row", func(t *testing.T) {
		heatmap := clusterer.Cluster(scoreSet([][]float64{{0.1, 0.9, 0.5}}))
		assert.True(t, heatmap.Degraded)
		assert.Equal(t, models.ClusterIntensitySort, heatmap.Method)
		assert.Equal(t, []int{1, 2, 0}, heatmap.ColumnOrder)
		assert.Equal(t, [][]float64{{0.9, 0.5, 0.1}}, heatmap.Matrix)
	})

	t.Run("no variance", func(t *testing.T) {
		m := [][]float64{{0, 0}, {0, 0}}
		heatmap := clusterer.Cluster(scoreSet(m))
		assert.True(t, heatmap.Degraded)
		assert.Contains(t, heatmap.DegradedReason, "variance")
		assert.Equal(t, []int{0, 1}, heatmap.RowOrder)
		assert.Equal(t, 0.0, heatmap.Quality)
	})

	t.Run("non-finite", func(t *testing.T) {
		m := [][]float64{{0.2, math.NaN()}, {0.7, 0.1}}
		heatmap := clusterer.Cluster(scoreSet(m))
		assert.True(t, heatmap.Degraded)
		assert.Contains(t, heatmap.DegradedReason, "non-finite")
		assertPermutation(t, heatmap.RowOrder, 2)
	})

	t.Run("nil set", func(t *testing.T) {
		heatmap := clusterer.Cluster(nil)
		require.NotNil(t, heatmap)
		assert.True(t, heatmap.Degraded)
		assert.Empty(t, heatmap.Matrix)
	})
}

func assertPermutation(t *testing.T, order []int, n int) {
	t.Helper()
	require.Len(t, order, n)
	sorted := append([]int{}, order...)
	sort.Ints(sorted)
	for i, v := range sorted {
		require.Equal(t, i, v, "order %v is not a permutation", order)
	}
}
