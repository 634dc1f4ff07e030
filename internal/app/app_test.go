package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"docwatch/internal/config"
	"docwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndRun(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = filepath.Join(t.TempDir(), "runs.db")

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Store)

	columns := a.Policy.CanonicalColumns()
	row := make([]string, len(columns))
	for i := range row {
		row[i] = "x"
	}
	changed := append([]string{}, row...)
	changed[13] = "90%"

	result, err := a.Run(context.Background(), []models.TablePair{{
		Name:     "进度表",
		Baseline: models.TableSnapshot{Columns: columns, Rows: [][]string{row}},
		Current:  models.TableSnapshot{Columns: columns, Rows: [][]string{changed}},
	}})
	require.NoError(t, err)

	latest, err := a.Store.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.ScoreSet.Metadata.RunID, latest.ID)
	assert.Equal(t, 1, latest.Modifications)
}

func TestNewRejectsBadPolicyFile(t *testing.T) {
	cfg := config.Default()
	cfg.PolicyFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
