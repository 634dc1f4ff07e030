package service

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuralMismatch marks a snapshot pair whose columns cannot be
	// reconciled with the canonical schema.
	ErrStructuralMismatch = errors.New("structural mismatch")

	// ErrNoTables is returned when a batch contains nothing to score.
	ErrNoTables = errors.New("no tables to score")
)

// StructuralMismatchError reports how far short of the canonical schema a
// snapshot pair fell.
type StructuralMismatchError struct {
	Table    string
	Matched  int
	Required int
	Total    int
	Reason   string
}

func (e *StructuralMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("table %q: structural mismatch: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("table %q: structural mismatch: %d of %d canonical columns aligned, need %d",
		e.Table, e.Matched, e.Total, e.Required)
}

func (e *StructuralMismatchError) Unwrap() error {
	return ErrStructuralMismatch
}
