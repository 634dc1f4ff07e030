package service

import (
	"strconv"
	"strings"

	"docwatch/internal/models"
)

// headerRows is the number of sheet rows above the first data row, used
// when rendering spreadsheet-style cell addresses.
const headerRows = 1

// CellDiffEngine compares two snapshots cell by cell over an alignment.
type CellDiffEngine struct{}

// NewCellDiffEngine creates a new diff engine
func NewCellDiffEngine() *CellDiffEngine {
	return &CellDiffEngine{}
}

// Diff emits one CellChange per differing cell in an aligned column.
// Rows correspond by index. Values are compared after trimming surrounding
// whitespace; a row present only in the current snapshot yields adds for
// its non-empty cells, a row present only in the baseline yields deletes.
// Output is ordered by row, then by canonical column order.
func (e *CellDiffEngine) Diff(baseline, current models.TableSnapshot, alignment *models.ColumnAlignment) []models.CellChange {
	if alignment == nil || len(alignment.Columns) == 0 {
		return nil
	}

	table := current.Name
	if table == "" {
		table = baseline.Name
	}

	rows := max(baseline.NumRows(), current.NumRows())
	var changes []models.CellChange

	for row := 0; row < rows; row++ {
		inBase := row < baseline.NumRows()
		inCur := row < current.NumRows()

		for _, col := range alignment.Columns {
			oldVal := strings.TrimSpace(baseline.Cell(row, col.BaselineIndex))
			newVal := strings.TrimSpace(current.Cell(row, col.CurrentIndex))

			var kind models.ChangeKind
			switch {
			case inBase && inCur:
				if oldVal == newVal {
					continue
				}
				kind = models.ChangeModify
			case inCur:
				if newVal == "" {
					continue
				}
				kind = models.ChangeAdd
			default:
				if oldVal == "" {
					continue
				}
				kind = models.ChangeDelete
			}

			addrCol := col.CurrentIndex
			if !inCur {
				addrCol = col.BaselineIndex
			}
			changes = append(changes, models.CellChange{
				Table:      table,
				Row:        row,
				ColumnName: col.Canonical,
				Cell:       columnLetter(addrCol) + strconv.Itoa(row+headerRows+1),
				OldValue:   oldVal,
				NewValue:   newVal,
				Kind:       kind,
			})
		}
	}

	return changes
}
