package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"docwatch/internal/models"
)

// Side names one half of a snapshot pair.
type Side string

const (
	Baseline Side = "baseline"
	Current  Side = "current"
)

// ParseSide validates a side name from a URL or flag.
func ParseSide(raw string) (Side, error) {
	switch Side(raw) {
	case Baseline, Current:
		return Side(raw), nil
	}
	return "", fmt.Errorf("side must be %q or %q, got %q", Baseline, Current, raw)
}

// StagedTable is the upload state of one table.
type StagedTable struct {
	Name     string                `json:"name"`
	Baseline *models.TableSnapshot `json:"-"`
	Current  *models.TableSnapshot `json:"-"`
	Updated  time.Time             `json:"updated"`
}

// TableStatus describes a staged table without its data.
type TableStatus struct {
	Name           string    `json:"name"`
	BaselineLoaded bool      `json:"baseline_loaded"`
	CurrentLoaded  bool      `json:"current_loaded"`
	BaselineRows   int       `json:"baseline_rows"`
	CurrentRows    int       `json:"current_rows"`
	Ready          bool      `json:"ready"`
	Updated        time.Time `json:"updated"`
}

// Workspace holds snapshots uploaded ahead of a run, keyed by table name.
type Workspace struct {
	mu     sync.RWMutex
	tables map[string]*StagedTable
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{tables: make(map[string]*StagedTable)}
}

// Stage stores one side of a table, replacing any earlier upload.
func (w *Workspace) Stage(name string, side Side, snap models.TableSnapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.tables[name]
	if !ok {
		t = &StagedTable{Name: name}
		w.tables[name] = t
	}
	snap.Name = name
	if side == Baseline {
		t.Baseline = &snap
	} else {
		t.Current = &snap
	}
	t.Updated = time.Now()
}

// Pairs returns every table with both sides loaded, ordered by name.
func (w *Workspace) Pairs() []models.TablePair {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var pairs []models.TablePair
	for _, t := range w.tables {
		if t.Baseline == nil || t.Current == nil {
			continue
		}
		pairs = append(pairs, models.TablePair{Name: t.Name, Baseline: *t.Baseline, Current: *t.Current})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return pairs
}

// Status lists staged tables ordered by name.
func (w *Workspace) Status() []TableStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]TableStatus, 0, len(w.tables))
	for _, t := range w.tables {
		s := TableStatus{
			Name:           t.Name,
			BaselineLoaded: t.Baseline != nil,
			CurrentLoaded:  t.Current != nil,
			Updated:        t.Updated,
		}
		if t.Baseline != nil {
			s.BaselineRows = t.Baseline.NumRows()
		}
		if t.Current != nil {
			s.CurrentRows = t.Current.NumRows()
		}
		s.Ready = s.BaselineLoaded && s.CurrentLoaded
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear removes one table, or every table when name is empty.
func (w *Workspace) Clear(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if name == "" {
		w.tables = make(map[string]*StagedTable)
		return
	}
	delete(w.tables, name)
}
