package service

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"docwatch/internal/models"
)

// diagonalBlocks is the number of diagonal blocks used by the secondary
// block-diagonal score.
const diagonalBlocks = 3

// HeatmapClusterer reorders a score matrix so that tables and columns with
// similar risk profiles sit next to each other and the hottest block lands
// in the top-left corner. It never fails: degenerate input is returned in
// intensity-sorted order and flagged.
type HeatmapClusterer struct {
	logger *slog.Logger
}

// NewHeatmapClusterer creates a new clusterer
func NewHeatmapClusterer(logger *slog.Logger) *HeatmapClusterer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeatmapClusterer{logger: logger.With("component", "clusterer")}
}

type ordering struct {
	rows, cols  []int
	method      models.ClusterMethod
	orientation string
}

// Cluster runs Ward hierarchical clustering on the columns, then on the
// rows of the column-permuted matrix, tries the four flips of the result,
// and keeps the ordering that concentrates the most intensity in the
// top-left quadrant. The unclustered ordering is always a candidate, so the
// reported quality never drops below the baseline.
func (h *HeatmapClusterer) Cluster(set *models.ComprehensiveScoreSet) *models.ClusteredHeatmap {
	var m [][]float64
	var tables, columns []string
	var runID string
	if set != nil {
		m, tables, columns, runID = set.Matrix, set.TableNames, set.ColumnNames, set.Metadata.RunID
	}
	rows := len(m)
	cols := len(columns)
	if rows > 0 && cols == 0 {
		cols = len(m[0])
	}

	identity := ordering{rows: identityOrder(rows), cols: identityOrder(cols), method: models.ClusterIdentity, orientation: "identity"}
	baseline := quadrantQuality(m, identity.rows, identity.cols)

	candidates, reason := h.candidates(m, rows, cols)
	candidates = append(candidates, identity)

	best := candidates[0]
	bestQuality := quadrantQuality(m, best.rows, best.cols)
	bestCorner := cornerScore(m, best.rows, best.cols)
	for _, c := range candidates[1:] {
		q := quadrantQuality(m, c.rows, c.cols)
		corner := cornerScore(m, c.rows, c.cols)
		if q > bestQuality+1e-12 || (math.Abs(q-bestQuality) <= 1e-12 && corner > bestCorner+1e-12) {
			best, bestQuality, bestCorner = c, q, corner
		}
	}

	heatmap := &models.ClusteredHeatmap{
		RunID:           runID,
		TableNames:      permuteStrings(tables, best.rows),
		ColumnNames:     permuteStrings(columns, best.cols),
		Matrix:          permuteMatrix(m, best.rows, best.cols),
		RowOrder:        best.rows,
		ColumnOrder:     best.cols,
		Method:          best.method,
		Orientation:     best.orientation,
		Quality:         bestQuality,
		BaselineQuality: baseline,
		DiagonalScore:   diagonalScore(m, best.rows, best.cols),
		ColorScale:      append([]models.ColorStop{}, models.DefaultColorScale...),
	}
	if set != nil && len(set.ColorScale) > 0 {
		heatmap.ColorScale = append([]models.ColorStop{}, set.ColorScale...)
	}
	if reason != "" {
		heatmap.Degraded = true
		heatmap.DegradedReason = reason
		h.logger.Warn("clustering degraded, using intensity order", "reason", reason, "rows", rows, "cols", cols)
	}

	return heatmap
}

// candidates returns the orderings worth scoring, plus a degradation
// reason when clustering was not possible.
func (h *HeatmapClusterer) candidates(m [][]float64, rows, cols int) ([]ordering, string) {
	if reason := degenerate(m, rows, cols); reason != "" {
		r, c := intensityOrder(m, rows, cols)
		return []ordering{{rows: r, cols: c, method: models.ClusterIntensitySort, orientation: "intensity"}}, reason
	}

	colVectors := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		colVectors[j] = make([]float64, rows)
		for i := 0; i < rows; i++ {
			colVectors[j][i] = m[i][j]
		}
	}
	colOrder := wardOrder(colVectors)

	rowVectors := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		rowVectors[i] = make([]float64, cols)
		for j, c := range colOrder {
			rowVectors[i][j] = m[i][c]
		}
	}
	rowOrder := wardOrder(rowVectors)

	return []ordering{
		{rows: rowOrder, cols: colOrder, method: models.ClusterHierarchical, orientation: "original"},
		{rows: reversed(rowOrder), cols: colOrder, method: models.ClusterHierarchical, orientation: "flip_rows"},
		{rows: rowOrder, cols: reversed(colOrder), method: models.ClusterHierarchical, orientation: "flip_cols"},
		{rows: reversed(rowOrder), cols: reversed(colOrder), method: models.ClusterHierarchical, orientation: "flip_both"},
	}, ""
}

func degenerate(m [][]float64, rows, cols int) string {
	if rows < 2 || cols < 2 {
		return fmt.Sprintf("matrix too small to cluster (%dx%d)", rows, cols)
	}
	first := m[0][0]
	uniform := true
	for i := 0; i < rows; i++ {
		if len(m[i]) != cols {
			return fmt.Sprintf("row %d has %d cells, want %d", i, len(m[i]), cols)
		}
		for j := 0; j < cols; j++ {
			v := m[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Sprintf("non-finite intensity at (%d,%d)", i, j)
			}
			if v != first {
				uniform = false
			}
		}
	}
	if uniform {
		return "matrix has no variance"
	}
	return ""
}

// wardOrder clusters vectors with Ward linkage and returns the dendrogram's
// leaf order. Ties are broken by lowest index, so the result is stable.
func wardOrder(vectors [][]float64) []int {
	n := len(vectors)
	if n <= 1 {
		return identityOrder(n)
	}

	type node struct {
		left, right int
		leaf        int
	}
	nodes := make([]node, 0, 2*n-1)
	for i := 0; i < n; i++ {
		nodes = append(nodes, node{left: -1, right: -1, leaf: i})
	}

	// Squared Euclidean distances, updated with Lance-Williams.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := 0; j < i; j++ {
			var d float64
			for k := range vectors[i] {
				diff := vectors[i][k] - vectors[j][k]
				d += diff * diff
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	slot := make([]int, n)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range slot {
		slot[i], size[i], active[i] = i, 1, true
	}

	for merges := 0; merges < n-1; merges++ {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && dist[i][j] < best {
					best, bi, bj = dist[i][j], i, j
				}
			}
		}

		ni, nj := float64(size[bi]), float64(size[bj])
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			nk := float64(size[k])
			d := ((ni+nk)*dist[k][bi] + (nj+nk)*dist[k][bj] - nk*dist[bi][bj]) / (ni + nj + nk)
			dist[k][bi], dist[bi][k] = d, d
		}

		nodes = append(nodes, node{left: slot[bi], right: slot[bj], leaf: -1})
		slot[bi] = len(nodes) - 1
		size[bi] += size[bj]
		active[bj] = false
	}

	root := slot[0]
	order := make([]int, 0, n)
	stack := []int{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := nodes[id]
		if nd.leaf >= 0 {
			order = append(order, nd.leaf)
			continue
		}
		stack = append(stack, nd.right, nd.left)
	}
	return order
}

// intensityOrder sorts rows and columns by descending total intensity.
func intensityOrder(m [][]float64, rows, cols int) ([]int, []int) {
	rowSums := make([]float64, rows)
	colSums := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols && j < len(m[i]); j++ {
			v := m[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			rowSums[i] += v
			colSums[j] += v
		}
	}
	r := identityOrder(rows)
	c := identityOrder(cols)
	sort.SliceStable(r, func(a, b int) bool { return rowSums[r[a]] > rowSums[r[b]] })
	sort.SliceStable(c, func(a, b int) bool { return colSums[c[a]] > colSums[c[b]] })
	return r, c
}

// quadrantQuality is the share of total intensity that falls in the
// top-left quadrant under the given ordering.
func quadrantQuality(m [][]float64, rowOrder, colOrder []int) float64 {
	qr := (len(rowOrder) + 1) / 2
	qc := (len(colOrder) + 1) / 2
	var inside, total float64
	for i, r := range rowOrder {
		for j, c := range colOrder {
			v := cell(m, r, c)
			total += v
			if i < qr && j < qc {
				inside += v
			}
		}
	}
	if total <= 0 {
		return 0
	}
	return inside / total
}

// cornerScore weighs the top-left 3x3 block, heaviest at the corner.
func cornerScore(m [][]float64, rowOrder, colOrder []int) float64 {
	var score float64
	for i := 0; i < 3 && i < len(rowOrder); i++ {
		for j := 0; j < 3 && j < len(colOrder); j++ {
			score += cell(m, rowOrder[i], colOrder[j]) * float64((3-i)*(3-j))
		}
	}
	return score
}

// diagonalScore is the percentage of intensity inside the diagonal blocks.
func diagonalScore(m [][]float64, rowOrder, colOrder []int) float64 {
	rows, cols := len(rowOrder), len(colOrder)
	if rows == 0 || cols == 0 {
		return 0
	}
	blockR := max(1, rows/diagonalBlocks)
	blockC := max(1, cols/diagonalBlocks)

	var inside, total float64
	for i, r := range rowOrder {
		for j, c := range colOrder {
			v := cell(m, r, c)
			total += v
			if min(i/blockR, diagonalBlocks-1) == min(j/blockC, diagonalBlocks-1) {
				inside += v
			}
		}
	}
	if total <= 0 {
		return 0
	}
	return inside / total * 100
}

func cell(m [][]float64, r, c int) float64 {
	if r >= len(m) || c >= len(m[r]) {
		return 0
	}
	v := m[r][c]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func reversed(order []int) []int {
	out := make([]int, len(order))
	for i, v := range order {
		out[len(order)-1-i] = v
	}
	return out
}

func permuteStrings(values []string, order []int) []string {
	out := make([]string, 0, len(order))
	for _, i := range order {
		if i < len(values) {
			out = append(out, values[i])
		}
	}
	return out
}

func permuteMatrix(m [][]float64, rowOrder, colOrder []int) [][]float64 {
	out := make([][]float64, len(rowOrder))
	for i, r := range rowOrder {
		out[i] = make([]float64, len(colOrder))
		for j, c := range colOrder {
			out[i][j] = cell(m, r, c)
		}
	}
	return out
}
