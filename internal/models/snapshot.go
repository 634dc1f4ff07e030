package models

// TableSnapshot is one captured version of a spreadsheet-like table.
// Rows are positional; a row shorter than Columns reads as empty cells.
type TableSnapshot struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Source  string     `json:"source,omitempty"`
}

// Cell returns the value at (row, col), or "" when out of range.
func (s TableSnapshot) Cell(row, col int) string {
	if row < 0 || row >= len(s.Rows) || col < 0 {
		return ""
	}
	r := s.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// NumRows returns the number of data rows.
func (s TableSnapshot) NumRows() int {
	return len(s.Rows)
}

// TablePair is a baseline/current snapshot pair for one logical table.
type TablePair struct {
	Name     string        `json:"name"`
	Baseline TableSnapshot `json:"baseline"`
	Current  TableSnapshot `json:"current"`
}
