package models

// ClusterMethod names the ordering that produced a heatmap.
type ClusterMethod string

const (
	ClusterHierarchical  ClusterMethod = "hierarchical"
	ClusterIdentity      ClusterMethod = "identity"
	ClusterIntensitySort ClusterMethod = "intensity_sort"
)

// ClusteredHeatmap is a score matrix with rows and columns reordered so
// that similar risk profiles sit together and hot cells gather top-left.
// RowOrder[i] is the original row index shown at position i; likewise for
// ColumnOrder.
type ClusteredHeatmap struct {
	RunID           string        `json:"run_id"`
	TableNames      []string      `json:"table_names"`
	ColumnNames     []string      `json:"column_names"`
	Matrix          [][]float64   `json:"matrix"`
	RowOrder        []int         `json:"row_order"`
	ColumnOrder     []int         `json:"column_order"`
	Method          ClusterMethod `json:"method"`
	Orientation     string        `json:"orientation"`
	Quality         float64       `json:"quality"`
	BaselineQuality float64       `json:"baseline_quality"`
	DiagonalScore   float64       `json:"diagonal_score"`
	Degraded        bool          `json:"degraded"`
	DegradedReason  string        `json:"degraded_reason,omitempty"`
	ColorScale      []ColorStop   `json:"color_scale"`
}
